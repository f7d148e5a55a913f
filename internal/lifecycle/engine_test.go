package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/correlate"
	"github.com/giantswarm/testhooks/internal/framework"
)

type recorder struct {
	mu          sync.Mutex
	events      []string
	invocations []string
	finishErr   error
	retriedErr  error
}

func (r *recorder) add(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func name(t api.Test) string {
	return t.Description().ClassName + "." + t.Description().DisplayName
}

func (r *recorder) TestStarted(t api.Test) error {
	r.add("started %s", name(t))
	return nil
}

func (r *recorder) TestFinished(t api.Test) error {
	r.add("finished %s", name(t))
	return r.finishErr
}

func (r *recorder) TestFailure(t api.Test, err error) error {
	r.add("failure %s", name(t))
	return nil
}

func (r *recorder) TestAssumptionFailure(t api.Test, err error) error {
	r.add("assumption %s", name(t))
	return nil
}

func (r *recorder) TestIgnored(t api.Test, retried bool) error {
	if retried {
		r.add("retried %s", name(t))
		return r.retriedErr
	}
	r.add("ignored %s", name(t))
	return nil
}

func (r *recorder) BeforeInvocation(inv *api.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	test := "-"
	if inv.Test != nil {
		test = inv.Test.Method().Name
	}
	r.invocations = append(r.invocations, inv.Method.Name+"@"+test)
	return nil
}

func (r *recorder) AfterInvocation(*api.Invocation, error) error {
	return nil
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func newEngine(t *testing.T, settings config.Settings, rec *recorder) *Engine {
	t.Helper()
	e, err := New(config.NewStaticProvider(settings), WithWatchers(api.NewWatcherSet(rec)))
	require.NoError(t, err)
	return e
}

func retrySettings(max int) config.Settings {
	s := config.GetDefaultSettings()
	s.Retry.MaxRetry = max
	s.Watchers = nil
	return s
}

func flaky(failures int) framework.Body {
	var calls atomic.Int32
	return func(context.Context, *framework.Instance, []interface{}) error {
		if int(calls.Add(1)) <= failures {
			return errors.New("flaky")
		}
		return nil
	}
}

func run(t *testing.T, e *Engine, r framework.Runner) error {
	t.Helper()
	e.Install(r)
	return r.Run(context.Background(), framework.NewRunNotifier())
}

func assertNoLeaks(t *testing.T, store *correlate.Store) {
	t.Helper()
	assert.Equal(t, correlate.Stats{}, store.Len())
}

func TestEngine_PassesAfterRetries(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(3), rec)
	class := framework.NewTestClass("Cart", nil).AddTest(framework.NewMethod("checkout", flaky(2)))
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	require.NoError(t, run(t, e, r))

	assert.Equal(t, []string{
		"started Cart.checkout", "retried Cart.checkout",
		"started Cart.checkout", "retried Cart.checkout",
		"started Cart.checkout", "finished Cart.checkout",
	}, rec.events)
	assertNoLeaks(t, e.Store())
}

func TestEngine_FailsEveryAttempt(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(3), rec)
	class := framework.NewTestClass("Cart", nil).AddTest(framework.NewMethod("checkout", flaky(100)))
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	require.NoError(t, run(t, e, r))

	assert.Equal(t, 4, rec.count("started Cart.checkout"))
	assert.Equal(t, 3, rec.count("retried Cart.checkout"))
	assert.Equal(t, 1, rec.count("failure Cart.checkout"))
	assert.Equal(t, 1, rec.count("finished Cart.checkout"))
	assertNoLeaks(t, e.Store())
}

func TestEngine_OptOut(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(3), rec)
	noRetry := framework.NewMethod("noRetry", flaky(1))
	noRetry.NoRetry = true
	ignored := framework.NewMethod("ignored", flaky(1))
	ignored.Ignored = true
	class := framework.NewTestClass("Cart", nil).AddTest(noRetry).AddTest(ignored)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	require.NoError(t, run(t, e, r))

	assert.Equal(t, []string{
		"started Cart.noRetry", "failure Cart.noRetry", "finished Cart.noRetry",
		"ignored Cart.ignored",
	}, rec.events)
	assertNoLeaks(t, e.Store())
}

func TestEngine_ParameterStability(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(2), rec)

	var mu sync.Mutex
	var seen []interface{}
	failed := map[interface{}]bool{}
	m := framework.NewMethod("param", func(_ context.Context, _ *framework.Instance, args []interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, args[0])
		if args[0] != "a" && !failed[args[0]] {
			failed[args[0]] = true
			return errors.New("first run fails")
		}
		return nil
	})
	m.Params = [][]interface{}{{"a"}, {"b"}, {"c"}}
	class := framework.NewTestClass("Cart", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	require.NoError(t, run(t, e, r))

	assert.Equal(t, []interface{}{"a", "b", "b", "c", "c"}, seen)
	assert.Equal(t, 1, rec.count("retried Cart.param[1]"))
	assert.Equal(t, 1, rec.count("retried Cart.param[2]"))
	assert.Equal(t, 1, rec.count("finished Cart.param[0]"))
	assertNoLeaks(t, e.Store())
}

func TestEngine_SingleCreationUnderReentry(t *testing.T) {
	e := newEngine(t, retrySettings(0), &recorder{})
	m := framework.NewMethod("checkout", nil)
	class := framework.NewTestClass("Cart", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	w := NewWorker()
	w.setActive(r, m)
	ctx := WithWorker(context.Background(), w)

	inner := framework.NewInstance("inner")
	outer := framework.NewInstance("outer")
	got, err := e.CreateTest(ctx, r, m, func(ctx context.Context) (*framework.Instance, error) {
		_, err := e.CreateTest(ctx, r, m, func(context.Context) (*framework.Instance, error) {
			return inner, nil
		})
		return outer, err
	})
	require.NoError(t, err)
	assert.Same(t, outer, got)

	_, err = e.Store().ResolveMethodFor(inner)
	assert.True(t, api.IsNotFound(err))
	resolved, err := e.Store().ResolveMethodFor(outer)
	require.NoError(t, err)
	assert.Same(t, m, resolved)
	assert.Equal(t, 0, w.Depth().Len())
}

func TestEngine_DescriptionsOutsideRunAreNotBound(t *testing.T) {
	e := newEngine(t, retrySettings(0), &recorder{})
	m := framework.NewMethod("checkout", nil)
	class := framework.NewTestClass("Cart", nil).AddTest(m)
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)
	e.Install(r)

	desc, err := r.DescribeChild(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "checkout", desc.DisplayName)
	assertNoLeaks(t, e.Store())
}

func TestEngine_InvocationsAreCorrelated(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(0), rec)
	class := framework.NewTestClass("Cart", nil).
		AddBefore(framework.NewMethod("setUp", nil)).
		AddTest(framework.NewMethod("checkout", nil)).
		AddAfter(framework.NewMethod("tearDown", nil))
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	require.NoError(t, run(t, e, r))

	assert.Equal(t, []string{"setUp@checkout", "checkout@checkout", "tearDown@checkout"}, rec.invocations)
	assertNoLeaks(t, e.Store())
}

func TestEngine_WatcherErrorPropagatesAfterRelease(t *testing.T) {
	rec := &recorder{finishErr: errors.New("reporter down")}
	e := newEngine(t, retrySettings(1), rec)
	class := framework.NewTestClass("Cart", nil).AddTest(framework.NewMethod("checkout", nil))
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	err = run(t, e, r)

	assert.ErrorContains(t, err, "reporter down")
	assertNoLeaks(t, e.Store())
}

func TestEngine_WatcherErrorDuringRetryCycle(t *testing.T) {
	rec := &recorder{retriedErr: errors.New("retry listener down")}
	e := newEngine(t, retrySettings(3), rec)
	class := framework.NewTestClass("Cart", nil).AddTest(framework.NewMethod("checkout", flaky(2)))
	r, err := framework.NewClassRunner(class)
	require.NoError(t, err)

	err = run(t, e, r)

	assert.ErrorContains(t, err, "retry listener down")
	assert.Equal(t, []string{
		"started Cart.checkout", "retried Cart.checkout",
		"started Cart.checkout", "retried Cart.checkout",
		"started Cart.checkout", "finished Cart.checkout",
	}, rec.events)
	assertNoLeaks(t, e.Store())
}

func TestEngine_CreateTestPropagatesCorrelationError(t *testing.T) {
	e := newEngine(t, retrySettings(0), &recorder{})
	m := framework.NewMethod("checkout", nil)
	r, err := framework.NewClassRunner(framework.NewTestClass("Cart", nil).AddTest(m))
	require.NoError(t, err)

	w := NewWorker()
	w.setActive(r, m)
	ctx := WithWorker(context.Background(), w)

	_, err = e.CreateTest(ctx, r, m, func(context.Context) (*framework.Instance, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, api.IsIllegalState(err))
	assert.ErrorContains(t, err, "failed to correlate fixture of checkout")
	assert.Equal(t, 0, w.Depth().Len())
}

func TestEngine_NotifierConstructedBindsLateDescriptions(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(0), rec)
	m := framework.NewMethod("checkout", nil)
	other := framework.NewMethod("refund", nil)
	r, err := framework.NewClassRunner(framework.NewTestClass("Cart", nil).AddTest(m).AddTest(other))
	require.NoError(t, err)
	e.Install(r)

	n := framework.NewRunNotifier()
	n.AddListener(e.Dispatcher())
	w := NewWorker()
	w.push(e.Store().StartRun(r, n, nil))
	w.setActive(r, m)
	ctx := WithWorker(context.Background(), w)

	t.Run("description of another method stays unbound", func(t *testing.T) {
		desc := framework.NewTestDescription("Cart", "refund", "")
		framework.NewEachTestNotifier(ctx, e, n, desc)
		_, err := e.Store().TestFor(desc)
		assert.True(t, api.IsNotFound(err))
	})

	t.Run("description of the active method is bound and released", func(t *testing.T) {
		desc := framework.NewTestDescription("Cart", "checkout", "")
		en := framework.NewEachTestNotifier(ctx, e, n, desc)
		at, err := e.Store().TestFor(desc)
		require.NoError(t, err)
		assert.Same(t, m, at.Method())

		require.NoError(t, en.FireTestStarted(ctx))
		require.NoError(t, en.FireTestFinished(ctx))

		assert.Equal(t, []string{"started Cart.checkout", "finished Cart.checkout"}, rec.events)
		_, err = e.Store().TestFor(desc)
		assert.True(t, api.IsNotFound(err))
		stats := e.Store().Len()
		assert.Equal(t, 0, stats.Tests)
		assert.Equal(t, 0, stats.DescTest)
	})

	w.pop()
	e.Store().FinishRun(r)
	assertNoLeaks(t, e.Store())
}

func TestEngine_TimeoutFollowsReloadedSettings(t *testing.T) {
	testDefault := config.NewDuration(5 * time.Second)
	p, err := config.NewProvider(t.TempDir(), func(s *config.Settings) {
		s.Retry.MaxRetry = 0
		s.Watchers = nil
		s.Timeouts.TestDefault = testDefault
	})
	require.NoError(t, err)
	rec := &recorder{}
	e, err := New(p, WithWatchers(api.NewWatcherSet(rec)))
	require.NoError(t, err)

	m := framework.NewMethod("checkout", nil)
	class := framework.NewTestClass("Cart", nil).AddTest(m)
	runOnce := func() {
		r, err := framework.NewClassRunner(class)
		require.NoError(t, err)
		require.NoError(t, run(t, e, r))
	}

	runOnce()
	assert.Equal(t, 5*time.Second, m.Timeout())

	testDefault = nil
	require.NoError(t, p.Reload())
	runOnce()
	assert.Equal(t, time.Duration(0), m.Timeout())
	assert.Equal(t, 2, rec.count("finished Cart.checkout"))
	assertNoLeaks(t, e.Store())
}

func TestEngine_Timeouts(t *testing.T) {
	sleep := func(d time.Duration) framework.Body {
		return func(ctx context.Context, _ *framework.Instance, _ []interface{}) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	t.Run("longest timeout wins", func(t *testing.T) {
		rec := &recorder{}
		e := newEngine(t, retrySettings(0), rec)
		m := framework.NewMethod("slow", sleep(80*time.Millisecond)).WithTimeout(20 * time.Millisecond)
		class := framework.NewTestClass("Cart", nil).AddTest(m)
		class.Rule = &framework.TimeoutRule{Timeout: 2 * time.Second}
		r, err := framework.NewClassRunner(class)
		require.NoError(t, err)

		require.NoError(t, run(t, e, r))

		assert.Equal(t, []string{"started Cart.slow", "finished Cart.slow"}, rec.events)
		assert.Equal(t, 2*time.Second, m.Timeout())
	})

	t.Run("zero rule disables enforcement", func(t *testing.T) {
		rec := &recorder{}
		e := newEngine(t, retrySettings(0), rec)
		m := framework.NewMethod("slow", sleep(80*time.Millisecond)).WithTimeout(20 * time.Millisecond)
		class := framework.NewTestClass("Cart", nil).AddTest(m)
		class.Rule = &framework.TimeoutRule{Timeout: 0}
		r, err := framework.NewClassRunner(class)
		require.NoError(t, err)

		require.NoError(t, run(t, e, r))

		assert.Equal(t, []string{"started Cart.slow", "finished Cart.slow"}, rec.events)
	})

	t.Run("timeouts are retried", func(t *testing.T) {
		rec := &recorder{}
		s := retrySettings(1)
		s.Retry.Analyzers = []string{"timeout"}
		e := newEngine(t, s, rec)
		m := framework.NewMethod("slow", sleep(time.Second)).WithTimeout(20 * time.Millisecond)
		r, err := framework.NewClassRunner(framework.NewTestClass("Cart", nil).AddTest(m))
		require.NoError(t, err)

		require.NoError(t, run(t, e, r))

		assert.Equal(t, []string{
			"started Cart.slow", "retried Cart.slow",
			"started Cart.slow", "failure Cart.slow", "finished Cart.slow",
		}, rec.events)
		assertNoLeaks(t, e.Store())
	})
}

func TestEngine_ParallelSuite(t *testing.T) {
	rec := &recorder{}
	e := newEngine(t, retrySettings(2), rec)

	var runners []framework.Runner
	for i := 0; i < 8; i++ {
		class := framework.NewTestClass(fmt.Sprintf("Class%d", i), nil).
			AddTest(framework.NewMethod("stable", nil)).
			AddTest(framework.NewMethod("flaky", flaky(1))).
			AddTest(framework.NewMethod("broken", flaky(100)))
		r, err := framework.NewClassRunner(class)
		require.NoError(t, err)
		runners = append(runners, r)
	}
	suite := framework.NewSuite("all", 4, runners...)

	require.NoError(t, run(t, e, suite))

	for i := 0; i < 8; i++ {
		c := fmt.Sprintf("Class%d", i)
		assert.Equal(t, 1, rec.count("finished "+c+".stable"))
		assert.Equal(t, 1, rec.count("finished "+c+".flaky"))
		assert.Equal(t, 1, rec.count("retried "+c+".flaky"))
		assert.Equal(t, 3, rec.count("started "+c+".broken"))
		assert.Equal(t, 1, rec.count("failure "+c+".broken"))
		assert.Equal(t, 1, rec.count("finished "+c+".broken"))
	}
	assertNoLeaks(t, e.Store())
}

func TestNew_UnknownNames(t *testing.T) {
	s := config.GetDefaultSettings()
	s.Watchers = []string{"does-not-exist"}
	_, err := New(config.NewStaticProvider(s))
	assert.True(t, api.IsNotFound(err))

	s = retrySettings(1)
	s.Retry.Analyzers = []string{"nope"}
	_, err = New(config.NewStaticProvider(s))
	assert.True(t, api.IsNotFound(err))

	_, err = New(nil)
	assert.ErrorIs(t, err, api.ErrNilProvider)
}
