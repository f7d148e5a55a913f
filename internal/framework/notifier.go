package framework

import (
	"context"
	"errors"
	"sync"
)

// RunListener receives test events from a RunNotifier. A returned error is
// surfaced to the code that fired the event.
type RunListener interface {
	TestStarted(d *Description) error
	TestFinished(d *Description) error
	TestFailure(d *Description, err error) error
	TestAssumptionFailure(d *Description, err error) error
	TestIgnored(d *Description) error
}

// RunNotifier fans test events out to its listeners. It is safe for
// concurrent use by runners executing on several goroutines.
type RunNotifier struct {
	handle Handle

	mu        sync.RWMutex
	listeners []RunListener
}

// NewRunNotifier creates a notifier without listeners.
func NewRunNotifier() *RunNotifier {
	return &RunNotifier{handle: NewHandle()}
}

// Handle returns the notifier identity.
func (n *RunNotifier) Handle() Handle {
	return n.handle
}

// AddListener appends l to the listener list.
func (n *RunNotifier) AddListener(l RunListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// AddListenerOnce appends l unless it is already registered. It reports
// whether l was added.
func (n *RunNotifier) AddListenerOnce(l RunListener) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.listeners {
		if existing == l {
			return false
		}
	}
	n.listeners = append(n.listeners, l)
	return true
}

// RemoveListener removes l if registered.
func (n *RunNotifier) RemoveListener(l RunListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.listeners {
		if existing == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

func (n *RunNotifier) fire(fn func(RunListener) error) error {
	n.mu.RLock()
	listeners := make([]RunListener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := fn(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FireTestStarted notifies listeners that d is about to run.
func (n *RunNotifier) FireTestStarted(d *Description) error {
	return n.fire(func(l RunListener) error { return l.TestStarted(d) })
}

// FireTestFinished notifies listeners that d completed, whatever its outcome.
func (n *RunNotifier) FireTestFinished(d *Description) error {
	return n.fire(func(l RunListener) error { return l.TestFinished(d) })
}

// FireTestFailure notifies listeners that d failed with err.
func (n *RunNotifier) FireTestFailure(d *Description, err error) error {
	return n.fire(func(l RunListener) error { return l.TestFailure(d, err) })
}

// FireTestAssumptionFailed notifies listeners that an assumption of d did not hold.
func (n *RunNotifier) FireTestAssumptionFailed(d *Description, err error) error {
	return n.fire(func(l RunListener) error { return l.TestAssumptionFailure(d, err) })
}

// FireTestIgnored notifies listeners that d will not run.
func (n *RunNotifier) FireTestIgnored(d *Description) error {
	return n.fire(func(l RunListener) error { return l.TestIgnored(d) })
}

// EachTestNotifier binds a RunNotifier to the description of one test attempt.
// Failure and finish events pass through the AddFailure and FireTestFinished
// hooks.
type EachTestNotifier struct {
	handle   Handle
	hooks    Hooks
	notifier *RunNotifier
	desc     *Description
}

// NewEachTestNotifier creates the per-attempt notifier and reports its
// construction to the NotifierConstructed hook.
func NewEachTestNotifier(ctx context.Context, hooks Hooks, notifier *RunNotifier, desc *Description) *EachTestNotifier {
	en := &EachTestNotifier{
		handle:   NewHandle(),
		hooks:    hooks,
		notifier: notifier,
		desc:     desc,
	}
	hooks.NotifierConstructed(ctx, en)
	return en
}

// Handle returns the notifier identity.
func (en *EachTestNotifier) Handle() Handle {
	return en.handle
}

// Description returns the description this notifier reports for.
func (en *EachTestNotifier) Description() *Description {
	return en.desc
}

// Notifier returns the underlying run notifier.
func (en *EachTestNotifier) Notifier() *RunNotifier {
	return en.notifier
}

// FireTestStarted reports the start of the attempt.
func (en *EachTestNotifier) FireTestStarted(ctx context.Context) error {
	return en.notifier.FireTestStarted(en.desc)
}

// AddFailure reports err as a failure of the attempt.
func (en *EachTestNotifier) AddFailure(ctx context.Context, err error) error {
	return en.hooks.AddFailure(ctx, en, err, func() error {
		return en.notifier.FireTestFailure(en.desc, err)
	})
}

// AddFailedAssumption reports err as an assumption failure of the attempt.
func (en *EachTestNotifier) AddFailedAssumption(ctx context.Context, err error) error {
	return en.hooks.AddFailure(ctx, en, err, func() error {
		return en.notifier.FireTestAssumptionFailed(en.desc, err)
	})
}

// FireTestFinished reports the end of the attempt.
func (en *EachTestNotifier) FireTestFinished(ctx context.Context) error {
	return en.hooks.FireTestFinished(ctx, en, func() error {
		return en.notifier.FireTestFinished(en.desc)
	})
}

// FireTestIgnored reports the attempt as ignored.
func (en *EachTestNotifier) FireTestIgnored(ctx context.Context) error {
	return en.notifier.FireTestIgnored(en.desc)
}
