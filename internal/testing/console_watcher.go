package testing

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
)

// ConsoleWatcherName is the name the console watcher is registered under.
const ConsoleWatcherName = "console"

func init() {
	api.RegisterWatcher(ConsoleWatcherName, func() any {
		return NewConsoleWatcher(os.Stdout, false)
	})
}

// ConsoleWatcher prints test events as they are dispatched. Passing tests
// are only printed in verbose mode.
type ConsoleWatcher struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

var (
	_ api.RunWatcher    = (*ConsoleWatcher)(nil)
	_ api.RunnerWatcher = (*ConsoleWatcher)(nil)
)

// NewConsoleWatcher creates a console watcher writing to out.
func NewConsoleWatcher(out io.Writer, verbose bool) *ConsoleWatcher {
	return &ConsoleWatcher{out: out, verbose: verbose}
}

func (w *ConsoleWatcher) printf(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

func displayName(t api.Test) string {
	class, name := testKey(t)
	return class + "." + name
}

func (w *ConsoleWatcher) TestStarted(t api.Test) error {
	if w.verbose {
		w.printf("    ▶ %s (attempt %d)\n", displayName(t), t.Attempt())
	}
	return nil
}

func (w *ConsoleWatcher) TestFinished(t api.Test) error {
	if w.verbose && t.Thrown() == nil {
		w.printf("    ✅ %s\n", displayName(t))
	}
	return nil
}

func (w *ConsoleWatcher) TestFailure(t api.Test, err error) error {
	w.printf("    ❌ %s: %v\n", displayName(t), err)
	return nil
}

func (w *ConsoleWatcher) TestAssumptionFailure(t api.Test, err error) error {
	w.printf("    ⚠️  %s: %v\n", displayName(t), err)
	return nil
}

func (w *ConsoleWatcher) TestIgnored(t api.Test, retried bool) error {
	if retried {
		w.printf("    🔁 %s failed on attempt %d, retrying: %v\n", displayName(t), t.Attempt(), t.Thrown())
		return nil
	}
	w.printf("    ⏭️  %s ignored\n", displayName(t))
	return nil
}

func (w *ConsoleWatcher) RunStarted(r framework.Runner) error {
	if w.verbose {
		w.printf("  🏃 %s\n", r.Name())
	}
	return nil
}

func (w *ConsoleWatcher) RunFinished(framework.Runner) error { return nil }
