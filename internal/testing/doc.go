// Package testing runs YAML test scenarios through the lifecycle engine.
//
// A scenario describes test classes whose methods play back scripted
// outcomes, attempt by attempt:
//
//	name: flaky-checkout
//	max_retry: 2
//	classes:
//	  - name: Cart
//	    rule_timeout: 200ms
//	    befores:
//	      - name: setUp
//	    methods:
//	      - name: checkout
//	        outcomes: [fail, fail, pass]
//	      - name: pay
//	        params: [[visa], [amex]]
//	        param_outcomes:
//	          1: [timeout, pass]
//	      - name: legacy
//	        ignored: true
//	expect:
//	  passed: 3
//	  ignored: 1
//	  retried: 3
//
// Every scenario runs as one suite under a fresh engine, so retries,
// timeouts and watcher dispatch behave exactly as in a real run. The runner
// collects per-test results from the dispatched events, checks the
// correlation store for leaked entries and compares the counts with the
// scenario's expectations.
//
// # Outcomes
//
//   - pass: the call succeeds
//   - fail: the call returns an assertion failure
//   - assume: the call violates an assumption
//   - timeout: the call blocks until its timeout fires
//   - panic: the call panics
//
// The last outcome of a list repeats for further calls. Parameterized
// methods count calls per parameter set.
//
// # Components
//
//   - TestScenarioLoader loads scenarios from files, directories and
//     doublestar glob patterns, and filters them by name and tags.
//   - TestRunner executes scenarios sequentially or on a worker pool.
//   - TestReporter prints progress and a summary table; the structured
//     reporter captures results for JSON or YAML output.
//   - ConsoleWatcher is registered as the "console" watcher and prints
//     dispatched test events.
package testing
