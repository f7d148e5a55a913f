package api

import (
	"github.com/giantswarm/testhooks/internal/framework"
)

// TestState is the lifecycle state of one atomic test.
type TestState int

const (
	// StatePending is the state before an attempt starts, and again after a
	// retried attempt was reported as ignored.
	StatePending TestState = iota
	// StateStarted means testStarted was delivered for the current attempt.
	StateStarted
	// StatePassed means the attempt completed without failure.
	StatePassed
	// StateFailed means the attempt reported a failure.
	StateFailed
	// StateAssumptionFailed means the attempt reported an assumption failure.
	StateAssumptionFailed
	// StateFinished means testFinished was delivered for the terminal attempt.
	StateFinished
	// StateIgnored is terminal for tests that never ran.
	StateIgnored
	// StateReleased means every correlation entry of the test was removed.
	StateReleased
)

// String returns the upper-case name of the state.
func (s TestState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateStarted:
		return "STARTED"
	case StatePassed:
		return "PASSED"
	case StateFailed:
		return "FAILED"
	case StateAssumptionFailed:
		return "ASSUMPTION_FAILED"
	case StateFinished:
		return "FINISHED"
	case StateIgnored:
		return "IGNORED"
	case StateReleased:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// Test is the read-only view of an atomic test handed to watchers. It lives
// here, rather than next to the correlator, so that watcher implementations
// do not depend on the correlation store.
type Test interface {
	// Description returns the description of the current attempt.
	Description() *framework.Description
	// Method returns the test method.
	Method() *framework.Method
	// Class returns the declaring class, nil when it is unknown.
	Class() *framework.TestClass
	// Runner returns the runner that owns the test.
	Runner() framework.Runner
	// State returns the current lifecycle state.
	State() TestState
	// Thrown returns the failure captured for the current attempt, if any.
	Thrown() error
	// Attempt returns the 1-based number of the current attempt.
	Attempt() int
	// Retries returns how many attempts were reported as retried so far.
	Retries() int
}

// Invocation describes one call of a test, setup or teardown method body.
type Invocation struct {
	// Test is the atomic test the call belongs to, nil when it could not be correlated.
	Test   Test
	Target *framework.Instance
	Method *framework.Method
	Args   []interface{}
}

// MethodWatcher observes method body invocations.
type MethodWatcher interface {
	BeforeInvocation(inv *Invocation) error
	AfterInvocation(inv *Invocation, err error) error
}

// RunWatcher observes the lifecycle of atomic tests.
type RunWatcher interface {
	TestStarted(test Test) error
	TestFinished(test Test) error
	TestFailure(test Test, err error) error
	TestAssumptionFailure(test Test, err error) error
	// TestIgnored reports a test that will not run, or, with retried set, an
	// attempt that failed and will be executed again.
	TestIgnored(test Test, retried bool) error
}

// RunnerWatcher observes runner executions.
type RunnerWatcher interface {
	RunStarted(runner framework.Runner) error
	RunFinished(runner framework.Runner) error
}

// Filter is implemented by watchers that only want events for some subjects.
// The subject is a framework.Runner for RunnerWatcher events, an api.Test for
// RunWatcher events, and an *Invocation for MethodWatcher events.
type Filter interface {
	Supports(subject any) bool
}

// Supports reports whether w wants events about subject. Watchers without a
// Filter accept everything.
func Supports(w any, subject any) bool {
	if f, ok := w.(Filter); ok {
		return f.Supports(subject)
	}
	return true
}

// RetryAnalyzer decides whether a failure warrants re-execution. An error
// return means the analyzer could not decide; callers treat it as "do not retry".
type RetryAnalyzer interface {
	ShouldRetry(method *framework.Method, failure error) (bool, error)
}

// RetryAnalyzerFunc adapts a function to a RetryAnalyzer.
type RetryAnalyzerFunc func(method *framework.Method, failure error) (bool, error)

// ShouldRetry calls f(method, failure).
func (f RetryAnalyzerFunc) ShouldRetry(method *framework.Method, failure error) (bool, error) {
	return f(method, failure)
}

// WatcherSet holds instantiated watchers classified by the interfaces they
// implement. A single watcher may appear in several lists.
type WatcherSet struct {
	Method []MethodWatcher
	Run    []RunWatcher
	Runner []RunnerWatcher
}

// NewWatcherSet classifies the given watchers.
func NewWatcherSet(watchers ...any) *WatcherSet {
	s := &WatcherSet{}
	for _, w := range watchers {
		s.Add(w)
	}
	return s
}

// Add classifies w. It reports whether w implements at least one watcher interface.
func (s *WatcherSet) Add(w any) bool {
	added := false
	if mw, ok := w.(MethodWatcher); ok {
		s.Method = append(s.Method, mw)
		added = true
	}
	if rw, ok := w.(RunWatcher); ok {
		s.Run = append(s.Run, rw)
		added = true
	}
	if rnw, ok := w.(RunnerWatcher); ok {
		s.Runner = append(s.Runner, rnw)
		added = true
	}
	return added
}

// Empty reports whether the set holds no watcher.
func (s *WatcherSet) Empty() bool {
	return len(s.Method) == 0 && len(s.Run) == 0 && len(s.Runner) == 0
}
