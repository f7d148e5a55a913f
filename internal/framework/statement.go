package framework

import (
	"context"
	"errors"
	"time"
)

// Statement is one step of test execution. Statements compose: befores,
// afters and timeout watchdogs each wrap the statement they decorate.
type Statement interface {
	Evaluate(ctx context.Context) error
}

// StatementFunc adapts a function to a Statement.
type StatementFunc func(ctx context.Context) error

// Evaluate calls f(ctx).
func (f StatementFunc) Evaluate(ctx context.Context) error {
	return f(ctx)
}

// Fail returns a statement that always fails with err.
func Fail(err error) Statement {
	return StatementFunc(func(context.Context) error {
		return err
	})
}

// Invoke returns the statement that calls method on target through the
// InvokeMethod hook.
func Invoke(hooks Hooks, target *Instance, method *Method, args []interface{}) Statement {
	return StatementFunc(func(ctx context.Context) error {
		return hooks.InvokeMethod(ctx, target, method, args, func(ctx context.Context) error {
			return callBody(ctx, target, method, args)
		})
	})
}

func callBody(ctx context.Context, target *Instance, method *Method, args []interface{}) (err error) {
	if method.Body == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return method.Body(ctx, target, args)
}

// RunBefores runs every setup method before next; the first failure aborts.
func RunBefores(hooks Hooks, next Statement, befores []*Method, target *Instance) Statement {
	if len(befores) == 0 {
		return next
	}
	return StatementFunc(func(ctx context.Context) error {
		for _, before := range befores {
			if err := Invoke(hooks, target, before, nil).Evaluate(ctx); err != nil {
				return err
			}
		}
		return next.Evaluate(ctx)
	})
}

// RunAfters runs every teardown method after next, even when next fails.
// All failures are joined.
func RunAfters(hooks Hooks, next Statement, afters []*Method, target *Instance) Statement {
	if len(afters) == 0 {
		return next
	}
	return StatementFunc(func(ctx context.Context) error {
		errs := []error{next.Evaluate(ctx)}
		for _, after := range afters {
			errs = append(errs, Invoke(hooks, target, after, nil).Evaluate(ctx))
		}
		return errors.Join(errs...)
	})
}

// FailOnTimeout evaluates next on a watchdog goroutine and fails with a
// TimeoutError when it does not complete within timeout. The abandoned
// goroutine observes cancellation through its context.
func FailOnTimeout(hooks Hooks, next Statement, name string, timeout time.Duration) Statement {
	if timeout <= 0 {
		return next
	}
	return StatementFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan error, 1)
		detached := hooks.Detach(ctx)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- &PanicError{Value: r}
				}
			}()
			done <- next.Evaluate(detached)
		}()

		select {
		case err := <-done:
			// Bodies that return ctx.Err() race the watchdog.
			if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Name: name, Timeout: timeout}
			}
			return err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Name: name, Timeout: timeout}
			}
			return ctx.Err()
		}
	})
}
