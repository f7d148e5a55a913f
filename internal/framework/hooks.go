package framework

import "context"

// Child is a runnable child of a runner: a *Method for class runners, a
// Runner for suites.
type Child interface {
	Handle() Handle
	ChildName() string
}

// ChildName implements Child.
func (m *Method) ChildName() string {
	return m.Name
}

// Hooks is the set of interception points the framework calls during a run.
// Each hook receives the live arguments and a next function performing the
// framework's original behavior; an implementation must call next exactly
// once unless it deliberately replaces that behavior.
type Hooks interface {
	// Run wraps the execution of a whole runner.
	Run(ctx context.Context, r Runner, n *RunNotifier, next func(context.Context) error) error
	// ScheduleChild wraps the execution of one child of r, possibly on a
	// goroutine other than the one that drives r.
	ScheduleChild(ctx context.Context, r Runner, next func(context.Context) error) error
	// ScheduleFinished is called once all children of r were scheduled and completed.
	ScheduleFinished(ctx context.Context, r Runner, next func(context.Context) error) error
	// CreateTest wraps fixture creation for one test attempt. It may be re-entered.
	CreateTest(ctx context.Context, r Runner, m *Method, next func(context.Context) (*Instance, error)) (*Instance, error)
	// DescribeChild wraps description construction for a child.
	DescribeChild(ctx context.Context, r Runner, child Child, next func(context.Context) *Description) (*Description, error)
	// RunChild wraps the execution of one child, including its notifications.
	RunChild(ctx context.Context, r Runner, child Child, n *RunNotifier, next func(context.Context) error) error
	// InvokeMethod wraps the call of a test, setup or teardown method body.
	InvokeMethod(ctx context.Context, target *Instance, m *Method, args []interface{}, next func(context.Context) error) error
	// NextParameter wraps the selection of the next parameter set of a
	// parameterized method. next advances the runner's cursor.
	NextParameter(ctx context.Context, r Runner, m *Method, next func() int) int
	// Detach returns the context to use on a goroutine the framework starts
	// on behalf of ctx's work (timeout watchdogs).
	Detach(ctx context.Context) context.Context
	// NotifierConstructed is called when a per-attempt notifier is created.
	NotifierConstructed(ctx context.Context, en *EachTestNotifier)
	// AddFailure wraps failure and assumption-failure reporting.
	AddFailure(ctx context.Context, en *EachTestNotifier, err error, next func() error) error
	// FireTestFinished wraps the finish notification of an attempt.
	FireTestFinished(ctx context.Context, en *EachTestNotifier, next func() error) error
}

// NopHooks performs the framework's original behavior at every point.
type NopHooks struct{}

var _ Hooks = NopHooks{}

func (NopHooks) Run(ctx context.Context, _ Runner, _ *RunNotifier, next func(context.Context) error) error {
	return next(ctx)
}

func (NopHooks) ScheduleChild(ctx context.Context, _ Runner, next func(context.Context) error) error {
	return next(ctx)
}

func (NopHooks) ScheduleFinished(ctx context.Context, _ Runner, next func(context.Context) error) error {
	return next(ctx)
}

func (NopHooks) CreateTest(ctx context.Context, _ Runner, _ *Method, next func(context.Context) (*Instance, error)) (*Instance, error) {
	return next(ctx)
}

func (NopHooks) DescribeChild(ctx context.Context, _ Runner, _ Child, next func(context.Context) *Description) (*Description, error) {
	return next(ctx), nil
}

func (NopHooks) RunChild(ctx context.Context, _ Runner, _ Child, _ *RunNotifier, next func(context.Context) error) error {
	return next(ctx)
}

func (NopHooks) InvokeMethod(ctx context.Context, _ *Instance, _ *Method, _ []interface{}, next func(context.Context) error) error {
	return next(ctx)
}

func (NopHooks) NextParameter(_ context.Context, _ Runner, _ *Method, next func() int) int {
	return next()
}

func (NopHooks) Detach(ctx context.Context) context.Context {
	return ctx
}

func (NopHooks) NotifierConstructed(context.Context, *EachTestNotifier) {}

func (NopHooks) AddFailure(_ context.Context, _ *EachTestNotifier, _ error, next func() error) error {
	return next()
}

func (NopHooks) FireTestFinished(_ context.Context, _ *EachTestNotifier, next func() error) error {
	return next()
}
