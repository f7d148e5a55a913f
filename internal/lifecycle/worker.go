package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/giantswarm/testhooks/internal/correlate"
	"github.com/giantswarm/testhooks/internal/depth"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/internal/retry"
)

type workerKey struct{}

// Worker is the interception state of one goroutine: its depth gauges, the
// stack of runs it is nested in, the child it is currently running, and the
// parameter latch of its retries. A Worker is never shared between
// goroutines; every goroutine the host starts gets its own through the
// ScheduleChild and Detach hooks.
type Worker struct {
	depth  *depth.Table
	runs   []*correlate.RunContext
	active activeChild
	latch  *retry.ParameterLatch
}

type activeChild struct {
	runner framework.Handle
	child  framework.Handle
}

// NewWorker creates an empty worker.
func NewWorker() *Worker {
	return &Worker{
		depth: depth.NewTable(),
		latch: retry.NewParameterLatch(),
	}
}

// WithWorker returns a context carrying w.
func WithWorker(ctx context.Context, w *Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// WorkerFrom returns the worker carried by ctx, nil when there is none.
func WorkerFrom(ctx context.Context) *Worker {
	w, _ := ctx.Value(workerKey{}).(*Worker)
	return w
}

// fork creates the worker of a goroutine started on behalf of w. It inherits
// the run stack only.
func (w *Worker) fork() *Worker {
	child := NewWorker()
	if w != nil {
		child.runs = slices.Clone(w.runs)
	}
	return child
}

// Run returns the innermost run context, nil outside of any run.
func (w *Worker) Run() *correlate.RunContext {
	if len(w.runs) == 0 {
		return nil
	}
	return w.runs[len(w.runs)-1]
}

func (w *Worker) push(rc *correlate.RunContext) {
	w.runs = append(w.runs, rc)
}

func (w *Worker) pop() {
	if len(w.runs) > 0 {
		w.runs = w.runs[:len(w.runs)-1]
	}
}

func (w *Worker) setActive(r framework.Runner, child framework.Child) activeChild {
	prev := w.active
	w.active = activeChild{runner: r.Handle(), child: child.Handle()}
	return prev
}

func (w *Worker) isActive(r framework.Runner, child framework.Child) bool {
	return w.active == activeChild{runner: r.Handle(), child: child.Handle()}
}

// Depth returns the gauges of the worker.
func (w *Worker) Depth() *depth.Table {
	return w.depth
}

// Latch returns the parameter latch of the worker.
func (w *Worker) Latch() *retry.ParameterLatch {
	return w.latch
}

// exit leaves key and returns the remaining depth. An unbalanced exit is an
// instrumentation bug and fails the current call.
func (w *Worker) exit(key depth.Key) (int, error) {
	d, err := w.depth.Exit(key)
	if err != nil {
		return d, fmt.Errorf("unbalanced interception at %s: %w", key, err)
	}
	return d, nil
}

// leave exits key and joins an unbalanced exit into *err. Meant for defer.
func (w *Worker) leave(key depth.Key, err *error) {
	if _, exitErr := w.exit(key); exitErr != nil {
		*err = errors.Join(*err, exitErr)
	}
}
