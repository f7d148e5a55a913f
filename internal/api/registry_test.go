package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/testhooks/internal/framework"
)

type runnerOnly struct{}

func (runnerOnly) RunStarted(framework.Runner) error  { return nil }
func (runnerOnly) RunFinished(framework.Runner) error { return nil }

type allWatcher struct {
	runnerOnly
	only string
}

func (allWatcher) BeforeInvocation(*Invocation) error       { return nil }
func (allWatcher) AfterInvocation(*Invocation, error) error { return nil }
func (allWatcher) TestStarted(Test) error                   { return nil }
func (allWatcher) TestFinished(Test) error                  { return nil }
func (allWatcher) TestFailure(Test, error) error            { return nil }
func (allWatcher) TestAssumptionFailure(Test, error) error  { return nil }
func (allWatcher) TestIgnored(Test, bool) error             { return nil }
func (w allWatcher) Supports(subject any) bool              { return fmt.Sprint(subject) == w.only }

func TestRegistry_Watchers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterWatcher("runner", func() any { return runnerOnly{} }))
	require.NoError(t, r.RegisterWatcher("all", func() any { return allWatcher{} }))
	require.NoError(t, r.RegisterWatcher("nothing", func() any { return struct{}{} }))

	set, err := r.Watchers("runner", "all")
	require.NoError(t, err)
	assert.Len(t, set.Runner, 2)
	assert.Len(t, set.Run, 1)
	assert.Len(t, set.Method, 1)
	assert.False(t, set.Empty())

	_, err = r.Watchers("missing")
	assert.True(t, IsNotFound(err))

	_, err = r.Watchers("nothing")
	assert.Error(t, err)

	assert.Equal(t, []string{"all", "nothing", "runner"}, r.WatcherNames())
}

func TestRegistry_NilRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.RegisterWatcher("x", nil), ErrNilProvider)
	assert.ErrorIs(t, r.RegisterRetryAnalyzer("x", nil), ErrNilAnalyzer)
}

func TestRegistry_RetryAnalyzers(t *testing.T) {
	r := NewRegistry()
	always := RetryAnalyzerFunc(func(*framework.Method, error) (bool, error) { return true, nil })
	require.NoError(t, r.RegisterRetryAnalyzer("always", always))

	got, err := r.RetryAnalyzers("always")
	require.NoError(t, err)
	require.Len(t, got, 1)
	ok, err := got[0].ShouldRetry(nil, errors.New("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.RetryAnalyzers("always", "never")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "retry analyzer never not found")
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(runnerOnly{}, "anything"))
	assert.True(t, Supports(allWatcher{only: "a"}, "a"))
	assert.False(t, Supports(allWatcher{only: "a"}, "b"))
}

func TestErrors(t *testing.T) {
	nf := fmt.Errorf("lookup: %w", NewNotFoundError("instance", "42"))
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsIllegalState(nf))
	assert.EqualError(t, errors.Unwrap(nf), "instance 42 not found")

	is := NewIllegalStateError("DepthGauge", "decrease at depth %d", 0)
	assert.True(t, IsIllegalState(fmt.Errorf("wrapped: %w", is)))
	assert.EqualError(t, is, "DepthGauge: illegal state: decrease at depth 0")

	assert.Equal(t, "custom", NewNotFoundErrorWithMessage("a", "b", "custom").Error())
}

func TestTestStateString(t *testing.T) {
	assert.Equal(t, "ASSUMPTION_FAILED", StateAssumptionFailed.String())
	assert.Equal(t, "RELEASED", StateReleased.String())
	assert.Equal(t, "UNKNOWN", TestState(99).String())
}
