package framework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/giantswarm/testhooks/pkg/logging"
)

// DefaultNameTemplate renders the display name of one parameter set.
const DefaultNameTemplate = "{{.Method}}[{{.Index}}]"

// Runner drives the execution of a test class or a suite.
type Runner interface {
	Child
	Name() string
	// Description builds the description tree of the runner.
	Description() *Description
	// Run executes every child and reports through n.
	Run(ctx context.Context, n *RunNotifier) error
	SetHooks(h Hooks)
	Hooks() Hooks
	// TestClass returns the class a class runner drives, nil for suites.
	TestClass() *TestClass
}

// NameData is the value the display name template is executed against.
type NameData struct {
	Class  string
	Method string
	Index  int
	Params []interface{}
}

// ClassRunnerOption configures a ClassRunner.
type ClassRunnerOption func(*ClassRunner) error

// WithNameTemplate sets the template used for display names of parameterized
// methods. Sprig functions are available.
func WithNameTemplate(text string) ClassRunnerOption {
	return func(r *ClassRunner) error {
		if text == "" {
			return nil
		}
		tmpl, err := template.New("name").Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return fmt.Errorf("failed to parse name template: %w", err)
		}
		r.nameTmpl = tmpl
		return nil
	}
}

// WithHooks installs h instead of NopHooks.
func WithHooks(h Hooks) ClassRunnerOption {
	return func(r *ClassRunner) error {
		r.SetHooks(h)
		return nil
	}
}

// ClassRunner runs the test methods of one TestClass. A parameterized method
// contributes one child per parameter set.
type ClassRunner struct {
	handle   Handle
	class    *TestClass
	nameTmpl *template.Template

	mu      sync.RWMutex
	hooks   Hooks
	cursor  map[Handle]int
	current map[Handle]int
}

var _ Runner = (*ClassRunner)(nil)

// NewClassRunner creates a runner for class.
func NewClassRunner(class *TestClass, opts ...ClassRunnerOption) (*ClassRunner, error) {
	if class == nil {
		return nil, fmt.Errorf("class runner requires a test class")
	}
	r := &ClassRunner{
		handle:  NewHandle(),
		class:   class,
		hooks:   NopHooks{},
		cursor:  make(map[Handle]int),
		current: make(map[Handle]int),
	}
	r.nameTmpl = template.Must(template.New("name").Funcs(sprig.TxtFuncMap()).Parse(DefaultNameTemplate))
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *ClassRunner) Handle() Handle { return r.handle }

func (r *ClassRunner) Name() string { return r.class.Name }

func (r *ClassRunner) ChildName() string { return r.class.Name }

func (r *ClassRunner) TestClass() *TestClass { return r.class }

func (r *ClassRunner) SetHooks(h Hooks) {
	if h == nil {
		h = NopHooks{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = h
}

func (r *ClassRunner) Hooks() Hooks {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks
}

// Description returns the class description with one child per executable test.
func (r *ClassRunner) Description() *Description {
	var children []*Description
	for _, m := range r.class.Tests() {
		if !m.IsParameterized() {
			children = append(children, r.describe(m, 0))
			continue
		}
		for i := range m.Params {
			children = append(children, r.describe(m, i))
		}
	}
	return NewSuiteDescription(r.class.Name, children...)
}

// Run executes every test method through the Run, ScheduleChild and
// ScheduleFinished hooks.
func (r *ClassRunner) Run(ctx context.Context, n *RunNotifier) error {
	hooks := r.Hooks()
	return hooks.Run(ctx, r, n, func(ctx context.Context) error {
		r.resetCursors()
		var errs []error
		for _, m := range r.class.Tests() {
			count := 1
			if m.IsParameterized() {
				count = len(m.Params)
			}
			for i := 0; i < count; i++ {
				err := hooks.ScheduleChild(ctx, r, func(ctx context.Context) error {
					return r.runChild(ctx, m, n)
				})
				if err != nil {
					errs = append(errs, err)
				}
			}
		}
		if err := hooks.ScheduleFinished(ctx, r, func(context.Context) error { return nil }); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

func (r *ClassRunner) runChild(ctx context.Context, m *Method, n *RunNotifier) error {
	return r.Hooks().RunChild(ctx, r, m, n, func(ctx context.Context) error {
		return r.RunLeafChild(ctx, m, n)
	})
}

// RunLeafChild runs one attempt of m without any retry: ignored methods are
// reported as ignored, everything else is evaluated through RunLeaf.
func (r *ClassRunner) RunLeafChild(ctx context.Context, m *Method, n *RunNotifier) error {
	if m.Ignored {
		r.selectParameter(ctx, m)
		desc, err := r.DescribeChild(ctx, m)
		if err != nil {
			return err
		}
		return n.FireTestIgnored(desc)
	}
	stmt, err := r.MethodBlock(ctx, m)
	if err != nil {
		return err
	}
	desc, err := r.DescribeChild(ctx, m)
	if err != nil {
		return err
	}
	return r.RunLeaf(ctx, stmt, desc, n)
}

// RunLeaf evaluates stmt and reports one start, at most one failure and one
// finish for desc.
func (r *ClassRunner) RunLeaf(ctx context.Context, stmt Statement, desc *Description, n *RunNotifier) error {
	en := NewEachTestNotifier(ctx, r.Hooks(), n, desc)
	var errs []error
	if err := en.FireTestStarted(ctx); err != nil {
		errs = append(errs, err)
	}
	if failure := stmt.Evaluate(ctx); failure != nil {
		if IsAssumptionViolated(failure) {
			errs = append(errs, en.AddFailedAssumption(ctx, failure))
		} else {
			errs = append(errs, en.AddFailure(ctx, failure))
		}
	}
	errs = append(errs, en.FireTestFinished(ctx))
	return errors.Join(errs...)
}

// MethodBlock builds the statement for one attempt of m: a fresh fixture, the
// parameter set picked through NextParameter, befores, afters and timeouts.
func (r *ClassRunner) MethodBlock(ctx context.Context, m *Method) (Statement, error) {
	if m.Class() != r.class {
		return nil, fmt.Errorf("method %s does not belong to class %s", m.Name, r.class.Name)
	}
	hooks := r.Hooks()
	idx := r.selectParameter(ctx, m)

	target, err := hooks.CreateTest(ctx, r, m, func(context.Context) (*Instance, error) {
		return r.createTest()
	})
	if err != nil {
		return Fail(err), nil
	}

	var args []interface{}
	if m.IsParameterized() {
		args = m.Params[idx]
	}

	stmt := Invoke(hooks, target, m, args)
	stmt = FailOnTimeout(hooks, stmt, m.Name, m.Timeout())
	stmt = RunBefores(hooks, stmt, r.class.Befores(), target)
	stmt = RunAfters(hooks, stmt, r.class.Afters(), target)
	return r.withRules(m, stmt), nil
}

// DescribeChild builds the description of the current attempt of m through
// the DescribeChild hook.
func (r *ClassRunner) DescribeChild(ctx context.Context, m *Method) (*Description, error) {
	idx := r.currentIndex(m)
	return r.Hooks().DescribeChild(ctx, r, m, func(context.Context) *Description {
		return r.describe(m, idx)
	})
}

func (r *ClassRunner) withRules(m *Method, stmt Statement) Statement {
	rule, err := r.class.TimeoutRule()
	if err != nil {
		logging.Warn("Framework", "Timeout rule of %s unavailable: %v", r.class.Name, err)
		return stmt
	}
	if rule == nil || rule.Timeout <= 0 || m.TimeoutManaged() {
		return stmt
	}
	return FailOnTimeout(r.Hooks(), stmt, m.Name, rule.Timeout)
}

func (r *ClassRunner) createTest() (inst *Instance, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("failed to create %s: %w", r.class.Name, &PanicError{Value: p})
		}
	}()
	var v interface{}
	if r.class.New != nil {
		v = r.class.New()
	}
	return NewInstance(v), nil
}

func (r *ClassRunner) selectParameter(ctx context.Context, m *Method) int {
	idx := r.Hooks().NextParameter(ctx, r, m, func() int {
		return r.advance(m)
	})
	if m.IsParameterized() && (idx < 0 || idx >= len(m.Params)) {
		idx = 0
	}
	r.mu.Lock()
	r.current[m.Handle()] = idx
	r.mu.Unlock()
	return idx
}

func (r *ClassRunner) advance(m *Method) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.cursor[m.Handle()]
	if m.IsParameterized() {
		r.cursor[m.Handle()] = (idx + 1) % len(m.Params)
	}
	return idx
}

func (r *ClassRunner) currentIndex(m *Method) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current[m.Handle()]
}

func (r *ClassRunner) resetCursors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = make(map[Handle]int)
	r.current = make(map[Handle]int)
}

func (r *ClassRunner) describe(m *Method, idx int) *Description {
	if !m.IsParameterized() {
		return NewTestDescription(r.class.Name, m.Name, m.Name)
	}
	data := NameData{Class: r.class.Name, Method: m.Name, Index: idx, Params: m.Params[idx]}
	var buf bytes.Buffer
	if err := r.nameTmpl.Execute(&buf, data); err != nil {
		logging.Debug("Framework", "Name template failed for %s: %v", m.Name, err)
		return NewTestDescription(r.class.Name, m.Name, fmt.Sprintf("%s[%d]", m.Name, idx))
	}
	return NewTestDescription(r.class.Name, m.Name, buf.String())
}
