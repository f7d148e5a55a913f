// Package logging provides the subsystem-tagged structured logger used across
// testhooks.
//
// The logger is built on Go's standard slog package. Every entry carries a
// subsystem attribute so output from the correlation store, the retry engine
// and the dispatcher can be told apart when several suites run in parallel.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Lifecycle", "run started for %s", runner.Name())
//	logging.Debug("Correlator", "bound description %d to instance %d", desc, inst)
//	logging.Warn("Retry", "retry analyzer %s panicked: %v", name, r)
//	logging.Error("Dispatcher", err, "watcher failed for %s", test)
//
// # Subsystems
//
//   - Lifecycle: interception hooks and run bookkeeping
//   - Correlator: identity correlation store
//   - DepthGauge: reentrancy depth tracking
//   - Retry / Timeout: retry decisions and timeout resolution
//   - Dispatcher: watcher fan-out
//   - Config: configuration loading and reload
//   - ScenarioRunner: suite execution from the command line
//
// Before InitForCLI is called only error-level messages are written, to stderr.
package logging
