// Package config provides configuration management for testhooks.
//
// Settings are loaded from a single YAML or TOML file over built-in
// defaults. The format is chosen by extension; a directory may be given
// instead, in which case testhooks.yaml, testhooks.yml or testhooks.toml is
// looked up inside it.
//
// # Settings
//
//	retry:
//	  maxRetry: 3
//	  analyzers: [always]
//	timeouts:
//	  ruleDefault: 2s
//	  testDefault: 500ms
//	watchers: [console, metrics]
//	parameterNameTemplate: '{{ .Method }}[{{ .Index }}]'
//	parallel: 4
//
// Timeouts are optional. An unset timeout does not take part in timeout
// resolution; an explicit "0s" disables timeout enforcement.
//
// # Provider
//
// A Provider holds the current Settings behind an atomic pointer so that
// goroutines running tests read them without locking. Watch reloads the
// file on change (debounced); a failing reload keeps the previous settings.
package config
