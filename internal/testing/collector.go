package testing

import (
	"sync"
	"time"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
)

// resultCollector is a RunWatcher turning dispatcher events into
// TestCaseResults, one per atomic test.
type resultCollector struct {
	mu      sync.Mutex
	order   []string
	cases   map[string]*TestCaseResult
	startAt map[string]time.Time
}

var _ api.RunWatcher = (*resultCollector)(nil)

func newResultCollector() *resultCollector {
	return &resultCollector{
		cases:   make(map[string]*TestCaseResult),
		startAt: make(map[string]time.Time),
	}
}

func testKey(t api.Test) (class, name string) {
	if d := t.Description(); d != nil {
		return d.ClassName, d.DisplayName
	}
	if m := t.Method(); m != nil {
		if c := m.Class(); c != nil {
			class = c.Name
		}
		name = m.Name
	}
	return class, name
}

// entry returns the case of t, creating it on first sight. Callers hold mu.
func (c *resultCollector) entry(t api.Test) (string, *TestCaseResult) {
	class, name := testKey(t)
	key := class + "." + name
	tc, ok := c.cases[key]
	if !ok {
		tc = &TestCaseResult{Class: class, Name: name}
		c.cases[key] = tc
		c.order = append(c.order, key)
	}
	return key, tc
}

func (c *resultCollector) TestStarted(t api.Test) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, tc := c.entry(t)
	tc.Attempts++
	if _, ok := c.startAt[key]; !ok {
		c.startAt[key] = time.Now()
	}
	return nil
}

func (c *resultCollector) TestFinished(t api.Test) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, tc := c.entry(t)
	if start, ok := c.startAt[key]; ok {
		tc.Duration = time.Since(start)
	}
	tc.Error = ""
	switch thrown := t.Thrown(); {
	case thrown == nil:
		tc.Result = ResultPassed
	case framework.IsAssumptionViolated(thrown):
		tc.Result = ResultAssumptionFailed
		tc.Error = thrown.Error()
	default:
		tc.Result = ResultFailed
		tc.Error = thrown.Error()
	}
	return nil
}

func (c *resultCollector) TestFailure(api.Test, error) error { return nil }

func (c *resultCollector) TestAssumptionFailure(api.Test, error) error { return nil }

func (c *resultCollector) TestIgnored(t api.Test, retried bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, tc := c.entry(t)
	if retried {
		tc.Retries++
		return nil
	}
	tc.Result = ResultSkipped
	return nil
}

// results returns the collected cases in first-seen order with their counts.
func (c *resultCollector) results() ([]TestCaseResult, TestCounts) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var counts TestCounts
	cases := make([]TestCaseResult, 0, len(c.order))
	for _, key := range c.order {
		tc := *c.cases[key]
		switch tc.Result {
		case ResultPassed:
			counts.Passed++
		case ResultFailed:
			counts.Failed++
		case ResultAssumptionFailed:
			counts.AssumptionFailed++
		case ResultSkipped:
			counts.Ignored++
		}
		counts.Retried += tc.Retries
		counts.Attempts += tc.Attempts
		cases = append(cases, tc)
	}
	return cases, counts
}
