// Package framework is a small in-process test framework shaped like JUnit 4.
//
// Runners describe and execute test classes; every extension point the
// lifecycle engine cares about is routed through the Hooks interface, which
// receives the live arguments and a next function that performs the
// framework's original behavior. With NopHooks installed the framework runs
// tests exactly as it would without any interception.
//
// The main pieces are:
//
//   - TestClass / Method / Instance: what is executed
//   - Description: the reporting identity listeners key on
//   - Statement: composable execution (befores, afters, timeout watchdogs)
//   - RunNotifier / EachTestNotifier: event delivery to RunListeners
//   - ClassRunner / Suite: the runners
package framework
