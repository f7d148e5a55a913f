// Package lifecycle implements the interception engine: the framework hooks
// that correlate runners, fixtures and descriptions, retry failing tests,
// manage timeouts and feed the dispatcher.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/correlate"
	"github.com/giantswarm/testhooks/internal/depth"
	"github.com/giantswarm/testhooks/internal/dispatch"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/internal/retry"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore makes the engine share store instead of creating its own.
func WithStore(store *correlate.Store) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithWatchers dispatches to watchers instead of the watchers named in the
// settings.
func WithWatchers(watchers *api.WatcherSet) Option {
	return func(e *Engine) {
		e.watchers = watchers
	}
}

// WithRegistry resolves watchers and retry analyzers from registry instead
// of the default registry.
func WithRegistry(registry *api.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// Engine implements framework.Hooks. Install it on the root runner; it is
// safe for concurrent use by every goroutine of a run.
type Engine struct {
	provider   *config.Provider
	registry   *api.Registry
	store      *correlate.Store
	watchers   *api.WatcherSet
	dispatcher *dispatch.Dispatcher
}

var _ framework.Hooks = (*Engine)(nil)

// New creates an engine reading its settings from provider.
func New(provider *config.Provider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, api.ErrNilProvider
	}
	e := &Engine{provider: provider}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = api.DefaultRegistry()
	}
	if e.store == nil {
		e.store = correlate.NewStore()
	}
	settings := provider.Current()
	if e.watchers == nil {
		watchers, err := e.registry.Watchers(settings.Watchers...)
		if err != nil {
			return nil, fmt.Errorf("failed to create watchers: %w", err)
		}
		e.watchers = watchers
	}
	if _, err := e.registry.RetryAnalyzers(analyzerNames(settings)...); err != nil {
		return nil, fmt.Errorf("failed to resolve retry analyzers: %w", err)
	}
	e.dispatcher = dispatch.New(e.store, e.watchers)
	return e, nil
}

// Install sets the engine as the hooks of r and, for suites, of every
// nested runner.
func (e *Engine) Install(r framework.Runner) {
	r.SetHooks(e)
}

// Store returns the correlation store.
func (e *Engine) Store() *correlate.Store {
	return e.store
}

// Dispatcher returns the dispatcher attached to every notifier.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

func analyzerNames(settings config.Settings) []string {
	if len(settings.Retry.Analyzers) == 0 {
		return []string{config.DefaultAnalyzer}
	}
	return settings.Retry.Analyzers
}

// analyzers resolves the analyzers of the current settings. Settings may be
// reloaded during a run; unknown names disable retrying rather than failing
// the test.
func (e *Engine) analyzers(settings config.Settings) []api.RetryAnalyzer {
	analyzers, err := e.registry.RetryAnalyzers(analyzerNames(settings)...)
	if err != nil {
		logging.Warn("Lifecycle", "Retry disabled: %v", err)
		return nil
	}
	return analyzers
}

func (e *Engine) worker(ctx context.Context) (context.Context, *Worker) {
	if w := WorkerFrom(ctx); w != nil {
		return ctx, w
	}
	w := NewWorker()
	return WithWorker(ctx, w), w
}

// Run registers the run context of the outermost execution of r, attaches
// the dispatcher to n, and tears both down when r completes.
func (e *Engine) Run(ctx context.Context, r framework.Runner, n *framework.RunNotifier, next func(context.Context) error) (err error) {
	ctx, w := e.worker(ctx)
	key := depth.Key{Site: depth.SiteRun, Target: r.Handle()}
	if w.depth.Enter(key) > 1 {
		defer w.leave(key, &err)
		return next(ctx)
	}

	rc := e.store.StartRun(r, n, w.Run())
	w.push(rc)
	n.AddListenerOnce(e.dispatcher)
	defer func() {
		err = errors.Join(err, e.dispatcher.RunFinished(r))
		w.pop()
		e.store.FinishRun(r)
		w.leave(key, &err)
	}()

	logging.Debug("Lifecycle", "Running %s", r.Name())
	startErr := e.dispatcher.RunStarted(r)
	return errors.Join(startErr, next(ctx))
}

// ScheduleChild gives the scheduled child a worker of its own, since it may
// run on another goroutine.
func (e *Engine) ScheduleChild(ctx context.Context, _ framework.Runner, next func(context.Context) error) error {
	return next(WithWorker(ctx, WorkerFrom(ctx).fork()))
}

func (e *Engine) ScheduleFinished(ctx context.Context, r framework.Runner, next func(context.Context) error) error {
	logging.Debug("Lifecycle", "All children of %s completed", r.Name())
	return next(ctx)
}

// CreateTest correlates the fixture created by the outermost creation call
// with the runner and method it was created for.
func (e *Engine) CreateTest(ctx context.Context, r framework.Runner, m *framework.Method, next func(context.Context) (*framework.Instance, error)) (*framework.Instance, error) {
	ctx, w := e.worker(ctx)
	key := depth.Key{Site: depth.SiteCreateTest, Target: r.Handle(), Aux: m.Handle()}
	w.depth.Enter(key)
	inst, err := next(ctx)
	d, exitErr := w.exit(key)
	if exitErr != nil {
		return inst, errors.Join(err, exitErr)
	}
	if d > 0 || err != nil || !w.isActive(r, m) {
		return inst, err
	}
	if err := e.store.RecordTestCreated(r, m, inst); err != nil {
		return inst, fmt.Errorf("failed to correlate fixture of %s: %w", m.Name, err)
	}
	return inst, nil
}

// DescribeChild binds the description of the child currently being run.
// Descriptions built for any other purpose, such as the suite tree, are
// returned untouched.
func (e *Engine) DescribeChild(ctx context.Context, r framework.Runner, child framework.Child, next func(context.Context) *framework.Description) (*framework.Description, error) {
	ctx, w := e.worker(ctx)
	key := depth.Key{Site: depth.SiteDescribeChild, Target: r.Handle(), Aux: child.Handle()}
	w.depth.Enter(key)
	desc := next(ctx)
	d, err := w.exit(key)
	if err != nil {
		return desc, err
	}
	if d > 0 || desc == nil || !w.isActive(r, child) {
		return desc, nil
	}
	m, ok := child.(*framework.Method)
	if !ok {
		return desc, nil
	}
	if _, err := e.store.BindDescription(desc, r, m); err != nil {
		return desc, fmt.Errorf("failed to bind %s: %w", desc, err)
	}
	return desc, nil
}

// RunChild runs one child. For test methods it resolves the effective
// timeout and the retry budget, and runs the retry loop when the method may
// be retried.
func (e *Engine) RunChild(ctx context.Context, r framework.Runner, child framework.Child, n *framework.RunNotifier, next func(context.Context) error) (err error) {
	ctx, w := e.worker(ctx)
	prev := w.setActive(r, child)
	defer func() { w.active = prev }()

	m, ok := child.(*framework.Method)
	if !ok {
		return next(ctx)
	}
	key := depth.Key{Site: depth.SiteRunChild, Target: r.Handle(), Aux: m.Handle()}
	if w.depth.Enter(key) > 1 {
		defer w.leave(key, &err)
		return next(ctx)
	}
	defer w.leave(key, &err)
	defer w.latch.Release(r.Handle(), m.Handle())

	settings := e.provider.Current()
	if d := retry.ApplyTimeout(m, settings); d.Changed {
		logging.Debug("Lifecycle", "Effective timeout of %s is %v (disabled: %t)", m.Name, d.Timeout, d.Disabled)
	}
	maxRetry := retry.MaxRetry(settings, m)
	target, isTarget := r.(retry.Target)
	if maxRetry == 0 || !isTarget {
		return next(ctx)
	}

	loop := &retry.Loop{Analyzers: e.analyzers(settings)}
	out, loopErr := loop.Run(ctx, target, m, n, maxRetry, w.latch)
	if out.Retried > 0 {
		logging.Info("Lifecycle", "%s.%s completed after %d attempts", r.Name(), m.Name, out.Attempts)
	}
	return loopErr
}

// InvokeMethod notifies method watchers around the outermost invocation of
// a method body. Watcher failures are reported as failures of the invocation.
func (e *Engine) InvokeMethod(ctx context.Context, target *framework.Instance, m *framework.Method, args []interface{}, next func(context.Context) error) (err error) {
	ctx, w := e.worker(ctx)
	key := depth.Key{Site: depth.SiteInvoke, Target: target.Handle(), Aux: m.Handle()}
	if w.depth.Enter(key) > 1 {
		defer w.leave(key, &err)
		return next(ctx)
	}
	defer w.leave(key, &err)

	inv := &api.Invocation{Target: target, Method: m, Args: args}
	if at := e.testOf(target); at != nil {
		inv.Test = at
	}
	if err := e.dispatcher.BeforeInvocation(inv); err != nil {
		return fmt.Errorf("method watcher failed before %s: %w", m.Name, err)
	}
	result := next(ctx)
	if err := e.dispatcher.AfterInvocation(inv, result); err != nil {
		return errors.Join(result, fmt.Errorf("method watcher failed after %s: %w", m.Name, err))
	}
	return result
}

func (e *Engine) testOf(target *framework.Instance) *correlate.AtomicTest {
	desc, err := e.store.DescriptionFor(target)
	if err != nil {
		logging.Debug("Lifecycle", "Invocation not correlated: %v", err)
		return nil
	}
	at, err := e.store.TestFor(desc)
	if err != nil {
		logging.Debug("Lifecycle", "Invocation not correlated: %v", err)
		return nil
	}
	return at
}

// NextParameter repeats the parameter set of a failed attempt while it is
// being retried.
func (e *Engine) NextParameter(ctx context.Context, r framework.Runner, m *framework.Method, next func() int) int {
	w := WorkerFrom(ctx)
	if w == nil {
		return next()
	}
	return w.latch.Next(r.Handle(), m.Handle(), next)
}

// Detach gives goroutines started by the host, such as timeout watchdogs, a
// worker of their own.
func (e *Engine) Detach(ctx context.Context) context.Context {
	return WithWorker(ctx, WorkerFrom(ctx).fork())
}

// NotifierConstructed binds the notifier's description when the host built
// it without going through DescribeChild.
func (e *Engine) NotifierConstructed(ctx context.Context, en *framework.EachTestNotifier) {
	desc := en.Description()
	if _, err := e.store.TestFor(desc); err == nil {
		return
	}
	w := WorkerFrom(ctx)
	if w == nil {
		return
	}
	rc := w.Run()
	if rc == nil || rc.Runner().Handle() != w.active.runner {
		return
	}
	for _, m := range classMethods(rc.Runner()) {
		if m.Handle() == w.active.child && m.Name == desc.MethodName {
			if _, err := e.store.BindDescription(desc, rc.Runner(), m); err != nil {
				logging.Warn("Lifecycle", "Late binding of %s failed: %v", desc, err)
			}
			return
		}
	}
}

func classMethods(r framework.Runner) []*framework.Method {
	if class := r.TestClass(); class != nil {
		return class.Tests()
	}
	return nil
}

// AddFailure captures the failure into the atomic test before it is reported.
func (e *Engine) AddFailure(_ context.Context, en *framework.EachTestNotifier, err error, next func() error) error {
	if at, lookupErr := e.store.TestFor(en.Description()); lookupErr == nil {
		at.SetThrown(err)
	}
	return next()
}

// FireTestFinished reports the finish and makes sure the description is
// released afterwards, even when the dispatcher could not release it.
func (e *Engine) FireTestFinished(_ context.Context, en *framework.EachTestNotifier, next func() error) error {
	desc := en.Description()
	defer func() {
		at, err := e.store.TestFor(desc)
		if err != nil {
			return
		}
		e.store.Release(desc, at.State() != api.StatePending)
	}()
	return next()
}
