package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	return nil
}

func (l *eventLog) TestStarted(d *framework.Description) error {
	return l.add("started %s", d.DisplayName)
}

func (l *eventLog) TestFinished(d *framework.Description) error {
	return l.add("finished %s", d.DisplayName)
}

func (l *eventLog) TestFailure(d *framework.Description, err error) error {
	return l.add("failure %s: %v", d.DisplayName, err)
}

func (l *eventLog) TestAssumptionFailure(d *framework.Description, err error) error {
	return l.add("assumption %s", d.DisplayName)
}

func (l *eventLog) TestIgnored(d *framework.Description) error {
	if d.IsRetried() {
		return l.add("retried %s", d.DisplayName)
	}
	return l.add("ignored %s", d.DisplayName)
}

// latchHooks routes parameter selection through a latch, the way the
// lifecycle engine does.
type latchHooks struct {
	framework.NopHooks
	latch *ParameterLatch
}

func (h latchHooks) NextParameter(_ context.Context, r framework.Runner, m *framework.Method, next func() int) int {
	return h.latch.Next(r.Handle(), m.Handle(), next)
}

// failingTimes returns a body failing the first n calls.
func failingTimes(n int, calls *int) framework.Body {
	return func(context.Context, *framework.Instance, []interface{}) error {
		*calls++
		if *calls <= n {
			return fmt.Errorf("attempt %d failed", *calls)
		}
		return nil
	}
}

func runLoop(t *testing.T, class *framework.TestClass, m *framework.Method, maxRetry int, latch *ParameterLatch) (Outcome, []string, error) {
	t.Helper()
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)
	if latch != nil {
		r.SetHooks(latchHooks{latch: latch})
	}
	n := framework.NewRunNotifier()
	log := &eventLog{}
	n.AddListener(log)
	loop := &Loop{Analyzers: []api.RetryAnalyzer{api.RetryAnalyzerFunc(retryAlways)}}
	out, err := loop.Run(context.Background(), r, m, n, maxRetry, latch)
	return out, log.events, err
}

func TestLoop_FailsTwiceThenPasses(t *testing.T) {
	calls := 0
	m := framework.NewMethod("flaky", failingTimes(2, &calls))
	class := framework.NewTestClass("C", nil).AddTest(m)

	out, events, err := runLoop(t, class, m, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, Outcome{Attempts: 3, Retried: 2}, out)
	assert.Equal(t, []string{
		"started flaky", "retried flaky", "finished flaky",
		"started flaky", "retried flaky", "finished flaky",
		"started flaky", "finished flaky",
	}, events)
}

func TestLoop_FailsEveryAttempt(t *testing.T) {
	calls := 0
	m := framework.NewMethod("broken", failingTimes(100, &calls))
	class := framework.NewTestClass("C", nil).AddTest(m)

	out, events, err := runLoop(t, class, m, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 3, out.Retried)
	assert.EqualError(t, out.Failure, "attempt 4 failed")
	assert.Equal(t, "failure broken: attempt 4 failed", events[len(events)-2])
	assert.Equal(t, "finished broken", events[len(events)-1])
}

func TestLoop_NotEligible(t *testing.T) {
	m := framework.NewMethod("assumes", func(context.Context, *framework.Instance, []interface{}) error {
		return framework.Assume("no network")
	})
	class := framework.NewTestClass("C", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)
	n := framework.NewRunNotifier()
	log := &eventLog{}
	n.AddListener(log)

	loop := &Loop{Analyzers: []api.RetryAnalyzer{api.RetryAnalyzerFunc(retryAssertions)}}
	out, err := loop.Run(context.Background(), r, m, n, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{"started assumes", "assumption assumes", "finished assumes"}, log.events)
}

func TestLoop_ParameterStability(t *testing.T) {
	var seen []interface{}
	failedOnce := false
	m := framework.NewMethod("param", func(_ context.Context, _ *framework.Instance, args []interface{}) error {
		seen = append(seen, args[0])
		if args[0] == "b" && !failedOnce {
			failedOnce = true
			return errors.New("flaky on b")
		}
		return nil
	})
	m.Params = [][]interface{}{{"a"}, {"b"}, {"c"}}
	class := framework.NewTestClass("C", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)
	latch := NewParameterLatch()
	r.SetHooks(latchHooks{latch: latch})
	n := framework.NewRunNotifier()
	loop := &Loop{Analyzers: []api.RetryAnalyzer{api.RetryAnalyzerFunc(retryAlways)}}

	for range m.Params {
		_, err := loop.Run(context.Background(), r, m, n, 2, latch)
		require.NoError(t, err)
		latch.Release(r.Handle(), m.Handle())
	}

	assert.Equal(t, []interface{}{"a", "b", "b", "c"}, seen)
	assert.Equal(t, 0, latch.Len())
}

type failingListener struct{ eventLog }

func (l *failingListener) TestIgnored(d *framework.Description) error {
	_ = l.eventLog.TestIgnored(d)
	return errors.New("listener broke")
}

func TestLoop_ListenerErrorDoesNotCutRetryCycle(t *testing.T) {
	calls := 0
	m := framework.NewMethod("flaky", failingTimes(5, &calls))
	class := framework.NewTestClass("C", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)
	n := framework.NewRunNotifier()
	listener := &failingListener{}
	n.AddListener(listener)

	loop := &Loop{Analyzers: []api.RetryAnalyzer{api.RetryAnalyzerFunc(retryAlways)}}
	out, err := loop.Run(context.Background(), r, m, n, 3, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener broke")
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 3, out.Retried)
	assert.EqualError(t, out.Failure, "attempt 4 failed")
	assert.Equal(t, []string{
		"started flaky", "retried flaky", "finished flaky",
		"started flaky", "retried flaky", "finished flaky",
		"started flaky", "retried flaky", "finished flaky",
		"started flaky", "failure flaky: attempt 4 failed", "finished flaky",
	}, listener.events)
}
