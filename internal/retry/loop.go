package retry

import (
	"context"
	"errors"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Target is what the loop needs from the runner that owns the method.
type Target interface {
	Handle() framework.Handle
	Hooks() framework.Hooks
	// MethodBlock builds a fresh statement, with a fresh fixture, for one attempt.
	MethodBlock(ctx context.Context, m *framework.Method) (framework.Statement, error)
	// DescribeChild builds the description of the current attempt.
	DescribeChild(ctx context.Context, m *framework.Method) (*framework.Description, error)
}

var _ Target = (*framework.ClassRunner)(nil)

// Loop executes a method until it passes, its failure is not eligible for
// retry, or the retry budget is used up.
type Loop struct {
	Analyzers []api.RetryAnalyzer
}

// Outcome summarizes a completed loop.
type Outcome struct {
	Attempts int
	Retried  int
	// Failure is the error of the last attempt, nil when it passed.
	Failure error
}

// Run executes m with up to maxRetry retries. Every attempt reports exactly
// one start and one finish; a retried attempt is reported as ignored with a
// retried description in between, and only the last attempt reports its
// failure. latch pins the parameter set between attempts and may be nil.
// The returned error carries notification failures, not test failures; they
// are collected across attempts and returned once the cycle has reported its
// terminal result.
func (l *Loop) Run(ctx context.Context, target Target, m *framework.Method, n *framework.RunNotifier, maxRetry int, latch *ParameterLatch) (Outcome, error) {
	state := NewState(maxRetry)
	var (
		out        Outcome
		notifyErrs []error
	)
	for {
		attempt := state.NextAttempt()
		out.Attempts = attempt

		stmt, err := target.MethodBlock(ctx, m)
		if err != nil {
			return out, errors.Join(append(notifyErrs, err)...)
		}
		desc, err := target.DescribeChild(ctx, m)
		if err != nil {
			return out, errors.Join(append(notifyErrs, err)...)
		}
		state.SetDescription(desc)

		en := framework.NewEachTestNotifier(ctx, target.Hooks(), n, desc)
		var errs []error
		errs = append(errs, en.FireTestStarted(ctx))

		failure := stmt.Evaluate(ctx)
		out.Failure = failure
		retrying := false
		switch {
		case failure == nil:
		case Eligible(l.Analyzers, m, failure) && state.Consume():
			retrying = true
			out.Retried++
			if latch != nil {
				latch.Hold(target.Handle(), m.Handle())
			}
			logging.Info("Retry", "Attempt %d of %s failed, %d retries left: %v", attempt, desc, state.Remaining(), failure)
			errs = append(errs, n.FireTestIgnored(desc.Retried(failure)))
		case framework.IsAssumptionViolated(failure):
			errs = append(errs, en.AddFailedAssumption(ctx, failure))
		default:
			if attempt > 1 {
				logging.Info("Retry", "%s failed after %d attempts", desc, attempt)
			}
			errs = append(errs, en.AddFailure(ctx, failure))
		}
		errs = append(errs, en.FireTestFinished(ctx))

		if err := errors.Join(errs...); err != nil {
			logging.Warn("Retry", "Notification of attempt %d of %s failed: %v", attempt, desc, err)
			notifyErrs = append(notifyErrs, err)
		}
		if !retrying {
			return out, errors.Join(notifyErrs...)
		}
	}
}
