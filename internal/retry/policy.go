// Package retry decides whether failing tests are executed again, runs the
// retry loop, and resolves the timeout enforced for each test.
package retry

import (
	"fmt"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Built-in analyzer names.
const (
	AnalyzerAlways    = "always"
	AnalyzerAssertion = "assertion"
	AnalyzerTimeout   = "timeout"
)

func init() {
	api.RegisterRetryAnalyzer(AnalyzerAlways, api.RetryAnalyzerFunc(retryAlways))
	api.RegisterRetryAnalyzer(AnalyzerAssertion, api.RetryAnalyzerFunc(retryAssertions))
	api.RegisterRetryAnalyzer(AnalyzerTimeout, api.RetryAnalyzerFunc(retryTimeouts))
}

// retryAlways retries every failure, assumption violations included.
func retryAlways(_ *framework.Method, failure error) (bool, error) {
	return failure != nil, nil
}

// retryAssertions retries failures but not assumption violations.
func retryAssertions(_ *framework.Method, failure error) (bool, error) {
	return failure != nil && !framework.IsAssumptionViolated(failure), nil
}

// retryTimeouts retries only timeouts.
func retryTimeouts(_ *framework.Method, failure error) (bool, error) {
	return framework.IsTimeout(failure), nil
}

// Eligible reports whether any analyzer wants failure retried. An analyzer
// that errors or panics counts as "not eligible" and is logged.
func Eligible(analyzers []api.RetryAnalyzer, method *framework.Method, failure error) bool {
	for _, a := range analyzers {
		ok, err := consult(a, method, failure)
		if err != nil {
			logging.Warn("Retry", "Retry analyzer failed for %s, not retrying on its behalf: %v", method.Name, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func consult(a api.RetryAnalyzer, method *framework.Method, failure error) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("analyzer panicked: %v", r)
		}
	}()
	return a.ShouldRetry(method, failure)
}

// MaxRetry returns the number of retries m gets: zero when the method or its
// class opts out, or when the method is ignored; the configured maximum
// otherwise.
func MaxRetry(settings config.Settings, m *framework.Method) int {
	if m.Ignored || m.NoRetry {
		return 0
	}
	if class := m.Class(); class != nil && class.NoRetry {
		return 0
	}
	if settings.Retry.MaxRetry < 0 {
		return 0
	}
	return settings.Retry.MaxRetry
}

// State is the countdown of one atomic test's retry cycle.
type State struct {
	remaining int
	attempt   int
	desc      *framework.Description
}

// NewState starts a cycle allowing maxRetry retries.
func NewState(maxRetry int) *State {
	return &State{remaining: maxRetry}
}

// NextAttempt starts the next attempt and returns its 1-based number.
func (s *State) NextAttempt() int {
	s.attempt++
	return s.attempt
}

// Consume uses up one retry. It reports false when none remain.
func (s *State) Consume() bool {
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

func (s *State) Remaining() int { return s.remaining }

func (s *State) Attempt() int { return s.attempt }

// Description returns the description reported for the current attempt.
func (s *State) Description() *framework.Description { return s.desc }

func (s *State) SetDescription(d *framework.Description) { s.desc = d }
