package correlate

import (
	"slices"
	"sync"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
)

// RunContext is one execution of a runner. It is written by the goroutine
// driving the runner and read by goroutines correlating children to it.
type RunContext struct {
	runner   framework.Runner
	notifier *framework.RunNotifier
	parent   *RunContext

	mu       sync.Mutex
	children []*AtomicTest
}

// Runner returns the runner being executed.
func (rc *RunContext) Runner() framework.Runner { return rc.runner }

// Notifier returns the notifier the runner reports through.
func (rc *RunContext) Notifier() *framework.RunNotifier { return rc.notifier }

// Parent returns the enclosing run context, nil for the root.
func (rc *RunContext) Parent() *RunContext { return rc.parent }

// EachTest calls fn for every live child test in creation order until fn
// returns false.
func (rc *RunContext) EachTest(fn func(*AtomicTest) bool) {
	rc.mu.Lock()
	children := slices.Clone(rc.children)
	rc.mu.Unlock()
	for _, at := range children {
		if !fn(at) {
			return
		}
	}
}

// Len returns the number of live child tests.
func (rc *RunContext) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.children)
}

func (rc *RunContext) addChild(at *AtomicTest) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.children = append(rc.children, at)
}

func (rc *RunContext) removeChild(at *AtomicTest) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	i := slices.Index(rc.children, at)
	if i < 0 {
		return false
	}
	rc.children = slices.Delete(rc.children, i, i+1)
	return true
}

// AtomicTest is one executable test: a method, or one permutation of a
// parameterized method, within one run of its runner.
type AtomicTest struct {
	method    *framework.Method
	run       *RunContext
	class     *framework.TestClass
	particles []*framework.Method

	mu      sync.RWMutex
	desc    *framework.Description
	thrown  error
	state   api.TestState
	attempt int
	retries int
}

var _ api.Test = (*AtomicTest)(nil)

func newAtomicTest(method *framework.Method, run *RunContext, class *framework.TestClass) *AtomicTest {
	at := &AtomicTest{method: method, run: run, class: class, state: api.StatePending}
	if class != nil {
		at.particles = append(at.particles, class.Befores()...)
		at.particles = append(at.particles, method)
		at.particles = append(at.particles, class.Afters()...)
	} else {
		at.particles = []*framework.Method{method}
	}
	return at
}

func (at *AtomicTest) Method() *framework.Method { return at.method }

func (at *AtomicTest) Class() *framework.TestClass { return at.class }

// RunContext returns the run the test belongs to.
func (at *AtomicTest) RunContext() *RunContext { return at.run }

func (at *AtomicTest) Runner() framework.Runner {
	if at.run == nil {
		return nil
	}
	return at.run.runner
}

// Particles returns the setup methods, the test method and the teardown
// methods in execution order.
func (at *AtomicTest) Particles() []*framework.Method { return at.particles }

// HasConfiguration reports whether the test has setup or teardown phases.
func (at *AtomicTest) HasConfiguration() bool { return len(at.particles) > 1 }

func (at *AtomicTest) Description() *framework.Description {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.desc
}

// SetDescription records the description of the current attempt.
func (at *AtomicTest) SetDescription(d *framework.Description) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.desc = d
}

func (at *AtomicTest) Thrown() error {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.thrown
}

// SetThrown captures the failure of the current attempt.
func (at *AtomicTest) SetThrown(err error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.thrown = err
}

func (at *AtomicTest) State() api.TestState {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.state
}

// Transition moves the test to state to if its current state is one of
// from, and returns the previous state.
func (at *AtomicTest) Transition(to api.TestState, from ...api.TestState) (api.TestState, error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	prev := at.state
	if !slices.Contains(from, prev) {
		return prev, api.NewIllegalStateError("Dispatcher", "%s cannot move from %s to %s", at.method.Name, prev, to)
	}
	at.state = to
	return prev, nil
}

// BeginAttempt starts a new attempt, clearing the previous failure, and
// returns the attempt number.
func (at *AtomicTest) BeginAttempt() int {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.attempt++
	at.thrown = nil
	return at.attempt
}

func (at *AtomicTest) Attempt() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.attempt
}

// MarkRetried counts an attempt that was reported as retried.
func (at *AtomicTest) MarkRetried() {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.retries++
}

func (at *AtomicTest) Retries() int {
	at.mu.RLock()
	defer at.mu.RUnlock()
	return at.retries
}
