// Package api holds the contracts shared between the lifecycle engine and its
// collaborators.
//
// It defines the error taxonomy of the engine and the observer SPI:
//
//   - **NotFoundError**: a lookup against correlation or registry state found
//     no entry. Always surfaced to the caller.
//   - **IllegalStateError**: mismatched enter/exit instrumentation or an
//     impossible lifecycle transition. Fatal to the current call.
//
// # Watchers
//
// Observers implement one or more of MethodWatcher, RunWatcher and
// RunnerWatcher. Each may also implement Filter to restrict the subjects it
// is notified about. Watchers are discovered through a Registry by name:
//
//	func init() {
//	    api.RegisterWatcher("console", func() any { return NewConsoleWatcher(os.Stdout) })
//	}
//
// The engine instantiates the configured names with Registry.Watchers and
// receives a WatcherSet classified by interface.
//
// # Retry analyzers
//
// A RetryAnalyzer decides whether a failure is eligible for another attempt.
// Analyzers are registered by name as well; the retry package contributes the
// built-in "always", "assertion" and "timeout" analyzers.
//
// # Thread Safety
//
// Registry operations are safe for concurrent use. Watchers are called from
// whatever goroutine drives the test they observe and must be safe for
// concurrent use when suites run in parallel.
package api
