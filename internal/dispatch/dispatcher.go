// Package dispatch turns the host's per-description notifications into
// atomic test lifecycle events and fans them out to the registered watchers.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/correlate"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Dispatcher is the run listener the lifecycle engine attaches to every
// notifier. It drives the state machine of each atomic test:
//
//	PENDING -> STARTED -> PASSED | FAILED | ASSUMPTION_FAILED -> FINISHED -> RELEASED
//	PENDING -> IGNORED -> RELEASED
//	STARTED -> IGNORED (retried) -> PENDING
//
// Correlation entries of a test are released once its terminal event was
// dispatched, even if a watcher fails.
type Dispatcher struct {
	store    *correlate.Store
	watchers *api.WatcherSet
}

var _ framework.RunListener = (*Dispatcher)(nil)

// New creates a dispatcher over store. A nil watcher set dispatches to nobody.
func New(store *correlate.Store, watchers *api.WatcherSet) *Dispatcher {
	if watchers == nil {
		watchers = api.NewWatcherSet()
	}
	return &Dispatcher{store: store, watchers: watchers}
}

// Watchers returns the watchers events are dispatched to.
func (d *Dispatcher) Watchers() *api.WatcherSet {
	return d.watchers
}

func (d *Dispatcher) resolve(desc *framework.Description) (*correlate.AtomicTest, error) {
	at, err := d.store.TestFor(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch event for %s: %w", desc, err)
	}
	return at, nil
}

// TestStarted starts a new attempt of the test.
func (d *Dispatcher) TestStarted(desc *framework.Description) error {
	at, err := d.resolve(desc)
	if err != nil {
		return err
	}
	if _, err := at.Transition(api.StateStarted, api.StatePending); err != nil {
		return err
	}
	attempt := at.BeginAttempt()
	logging.Debug("Dispatcher", "Started %s, attempt %d", desc, attempt)
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestStarted(at)
	})
}

// TestFailure records the failure of the current attempt.
func (d *Dispatcher) TestFailure(desc *framework.Description, failure error) error {
	at, err := d.resolve(desc)
	if err != nil {
		return err
	}
	if _, err := at.Transition(api.StateFailed, api.StateStarted); err != nil {
		return err
	}
	at.SetThrown(failure)
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestFailure(at, failure)
	})
}

// TestAssumptionFailure records an assumption violation of the current attempt.
func (d *Dispatcher) TestAssumptionFailure(desc *framework.Description, failure error) error {
	at, err := d.resolve(desc)
	if err != nil {
		return err
	}
	if _, err := at.Transition(api.StateAssumptionFailed, api.StateStarted); err != nil {
		return err
	}
	at.SetThrown(failure)
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestAssumptionFailure(at, failure)
	})
}

// TestIgnored handles both tests that never run and attempts that failed and
// are about to be retried. The latter carry a retried description.
func (d *Dispatcher) TestIgnored(desc *framework.Description) error {
	at, err := d.resolve(desc)
	if err != nil {
		return err
	}
	if desc.IsRetried() {
		return d.retried(at, desc)
	}

	if _, err := at.Transition(api.StateIgnored, api.StatePending); err != nil {
		return err
	}
	defer d.release(at, desc, api.StateIgnored)
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestIgnored(at, false)
	})
}

func (d *Dispatcher) retried(at *correlate.AtomicTest, desc *framework.Description) error {
	if _, err := at.Transition(api.StateIgnored, api.StateStarted); err != nil {
		return err
	}
	at.SetThrown(desc.Cause())
	at.MarkRetried()
	defer func() {
		if _, err := at.Transition(api.StatePending, api.StateIgnored); err != nil {
			logging.Warn("Dispatcher", "%v", err)
		}
	}()
	logging.Debug("Dispatcher", "Retrying %s after attempt %d", desc, at.Attempt())
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestIgnored(at, true)
	})
}

// TestFinished finishes the test. The finish of an attempt that was reported
// as retried is not forwarded; it only releases that attempt's bindings.
func (d *Dispatcher) TestFinished(desc *framework.Description) error {
	at, err := d.resolve(desc)
	if err != nil {
		return err
	}
	if at.State() == api.StatePending {
		if at.Attempt() == 0 {
			d.store.Release(desc, true)
			return api.NewIllegalStateError("Dispatcher", "%s finished before it started", desc)
		}
		d.store.Release(desc, false)
		return nil
	}

	// An attempt without a failure passed.
	_, _ = at.Transition(api.StatePassed, api.StateStarted)
	if _, err := at.Transition(api.StateFinished, api.StatePassed, api.StateFailed, api.StateAssumptionFailed); err != nil {
		return err
	}
	defer d.release(at, desc, api.StateFinished)
	return d.eachRunWatcher(at, func(w api.RunWatcher) error {
		return w.TestFinished(at)
	})
}

func (d *Dispatcher) release(at *correlate.AtomicTest, desc *framework.Description, from api.TestState) {
	if _, err := at.Transition(api.StateReleased, from); err != nil {
		logging.Warn("Dispatcher", "%v", err)
	}
	d.store.Release(desc, true)
}

// RunStarted notifies runner watchers that runner started.
func (d *Dispatcher) RunStarted(runner framework.Runner) error {
	return d.eachRunnerWatcher(runner, func(w api.RunnerWatcher) error {
		return w.RunStarted(runner)
	})
}

// RunFinished notifies runner watchers that runner finished.
func (d *Dispatcher) RunFinished(runner framework.Runner) error {
	return d.eachRunnerWatcher(runner, func(w api.RunnerWatcher) error {
		return w.RunFinished(runner)
	})
}

// BeforeInvocation notifies method watchers before a method body runs.
func (d *Dispatcher) BeforeInvocation(inv *api.Invocation) error {
	var errs []error
	for _, w := range d.watchers.Method {
		if api.Supports(w, inv) {
			errs = append(errs, call(func() error { return w.BeforeInvocation(inv) }))
		}
	}
	return errors.Join(errs...)
}

// AfterInvocation notifies method watchers after a method body returned
// with result.
func (d *Dispatcher) AfterInvocation(inv *api.Invocation, result error) error {
	var errs []error
	for _, w := range d.watchers.Method {
		if api.Supports(w, inv) {
			errs = append(errs, call(func() error { return w.AfterInvocation(inv, result) }))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) eachRunWatcher(at *correlate.AtomicTest, fn func(api.RunWatcher) error) error {
	var errs []error
	for _, w := range d.watchers.Run {
		if api.Supports(w, at) {
			errs = append(errs, call(func() error { return fn(w) }))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) eachRunnerWatcher(runner framework.Runner, fn func(api.RunnerWatcher) error) error {
	var errs []error
	for _, w := range d.watchers.Runner {
		if api.Supports(w, runner) {
			errs = append(errs, call(func() error { return fn(w) }))
		}
	}
	return errors.Join(errs...)
}

// call runs fn and turns a panic into an error so that one broken watcher
// does not keep the others from being notified.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("watcher panicked: %w", &framework.PanicError{Value: r})
		}
	}()
	return fn()
}
