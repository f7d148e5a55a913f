package testing

import (
	"context"
	"time"
)

// TestResult represents the result of a scenario or of a single test
type TestResult string

const (
	// ResultPassed indicates the test passed, possibly after retries
	ResultPassed TestResult = "PASSED"
	// ResultFailed indicates the test failed on its last attempt
	ResultFailed TestResult = "FAILED"
	// ResultAssumptionFailed indicates the last attempt violated an assumption
	ResultAssumptionFailed TestResult = "ASSUMPTION_FAILED"
	// ResultSkipped indicates the test or scenario was not executed
	ResultSkipped TestResult = "SKIPPED"
	// ResultError indicates an error occurred while executing the scenario
	ResultError TestResult = "ERROR"
)

// Outcome is the scripted result of one attempt of a scenario method
type Outcome string

const (
	// OutcomePass returns without error
	OutcomePass Outcome = "pass"
	// OutcomeFail returns an assertion failure
	OutcomeFail Outcome = "fail"
	// OutcomeAssume violates an assumption
	OutcomeAssume Outcome = "assume"
	// OutcomeTimeout blocks until the method's timeout fires
	OutcomeTimeout Outcome = "timeout"
	// OutcomePanic panics
	OutcomePanic Outcome = "panic"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeAssume, OutcomeTimeout, OutcomePanic:
		return true
	}
	return false
}

// TestLogger provides centralized logging for test execution
type TestLogger interface {
	// Debug logs debug-level messages (only shown when debug=true)
	Debug(format string, args ...interface{})
	// Info logs info-level messages (shown when verbose=true or debug=true)
	Info(format string, args ...interface{})
	// Error logs error-level messages (always shown)
	Error(format string, args ...interface{})
	// IsDebugEnabled returns whether debug logging is enabled
	IsDebugEnabled() bool
	// IsVerboseEnabled returns whether verbose logging is enabled
	IsVerboseEnabled() bool
}

// TestConfiguration defines the overall test execution configuration
type TestConfiguration struct {
	// Timeout is the overall test execution timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// Scenario filter for specific scenario execution
	Scenario string `yaml:"scenario,omitempty" json:"scenario,omitempty"`
	// Tags restricts execution to scenarios carrying one of the tags
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Parallel is the number of scenarios executed concurrently
	Parallel int `yaml:"parallel" json:"parallel"`
	// FailFast stops execution on first failure
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
	// Verbose enables detailed output
	Verbose bool `yaml:"verbose" json:"verbose"`
	// Debug enables debug logging
	Debug bool `yaml:"debug" json:"debug"`
	// ReportPath is the directory to save detailed test reports to
	ReportPath string `yaml:"report_path,omitempty" json:"report_path,omitempty"`
	// ReportFormat is the format of saved reports, json or yaml
	ReportFormat string `yaml:"report_format,omitempty" json:"report_format,omitempty"`
}

// TestScenario defines a single test scenario: a suite of test classes run
// under the interception engine, optionally with expected counts
type TestScenario struct {
	// Name is the unique identifier for the scenario
	Name string `yaml:"name" json:"name"`
	// Description provides human-readable scenario description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Classes are the test classes of the scenario
	Classes []ClassSpec `yaml:"classes" json:"classes"`
	// Expect holds the counts the run must produce, if any
	Expect *Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`
	// MaxRetry overrides the configured retry budget for this scenario
	MaxRetry *int `yaml:"max_retry,omitempty" json:"max_retry,omitempty"`
	// Analyzers overrides the configured retry analyzers for this scenario
	Analyzers []string `yaml:"analyzers,omitempty" json:"analyzers,omitempty"`
	// Timeout for this specific scenario
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Tags for additional categorization
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Skip indicates whether this scenario should be skipped
	Skip bool `yaml:"skip,omitempty" json:"skip,omitempty"`
	// SourceFile is the file the scenario was loaded from
	SourceFile string `yaml:"-" json:"source_file,omitempty"`
}

// ClassSpec describes one test class
type ClassSpec struct {
	Name string `yaml:"name" json:"name"`
	// NoRetry opts every method of the class out of retry
	NoRetry bool `yaml:"no_retry,omitempty" json:"no_retry,omitempty"`
	// RuleTimeout declares a class timeout rule; zero disables timeouts
	RuleTimeout *time.Duration `yaml:"rule_timeout,omitempty" json:"rule_timeout,omitempty"`
	// Befores run before every test method
	Befores []MethodSpec `yaml:"befores,omitempty" json:"befores,omitempty"`
	// Methods are the test methods
	Methods []MethodSpec `yaml:"methods" json:"methods"`
	// Afters run after every test method
	Afters []MethodSpec `yaml:"afters,omitempty" json:"afters,omitempty"`
}

// MethodSpec describes a method and the outcome of each of its attempts
type MethodSpec struct {
	Name string `yaml:"name" json:"name"`
	// Outcomes lists the outcome per attempt; the last one repeats. Empty means pass.
	Outcomes []Outcome `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`
	// Params are the parameter sets of a parameterized method
	Params [][]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	// ParamOutcomes overrides Outcomes for the parameter set with the given index
	ParamOutcomes map[int][]Outcome `yaml:"param_outcomes,omitempty" json:"param_outcomes,omitempty"`
	// Sleep delays every attempt before its outcome
	Sleep time.Duration `yaml:"sleep,omitempty" json:"sleep,omitempty"`
	// Timeout is the declared method timeout
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Ignored bool          `yaml:"ignored,omitempty" json:"ignored,omitempty"`
	NoRetry bool          `yaml:"no_retry,omitempty" json:"no_retry,omitempty"`
}

// Expectation holds expected test counts of a scenario. nil fields are not checked.
type Expectation struct {
	Passed           *int `yaml:"passed,omitempty" json:"passed,omitempty"`
	Failed           *int `yaml:"failed,omitempty" json:"failed,omitempty"`
	AssumptionFailed *int `yaml:"assumption_failed,omitempty" json:"assumption_failed,omitempty"`
	Ignored          *int `yaml:"ignored,omitempty" json:"ignored,omitempty"`
	Retried          *int `yaml:"retried,omitempty" json:"retried,omitempty"`
	Attempts         *int `yaml:"attempts,omitempty" json:"attempts,omitempty"`
}

// TestCounts aggregates test-level results
type TestCounts struct {
	Passed           int `json:"passed"`
	Failed           int `json:"failed"`
	AssumptionFailed int `json:"assumption_failed"`
	Ignored          int `json:"ignored"`
	// Retried counts attempts that were reported as retried
	Retried int `json:"retried"`
	// Attempts counts every started attempt
	Attempts int `json:"attempts"`
}

// Add accumulates other into c.
func (c *TestCounts) Add(other TestCounts) {
	c.Passed += other.Passed
	c.Failed += other.Failed
	c.AssumptionFailed += other.AssumptionFailed
	c.Ignored += other.Ignored
	c.Retried += other.Retried
	c.Attempts += other.Attempts
}

// TestSuiteResult represents the overall result of test suite execution
type TestSuiteResult struct {
	// RunID identifies this execution in reports
	RunID string `json:"run_id"`
	// StartTime when test execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when test execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of test execution
	Duration time.Duration `json:"duration"`
	// TotalScenarios is the total number of scenarios executed
	TotalScenarios int `json:"total_scenarios"`
	// PassedScenarios is the number of scenarios that passed
	PassedScenarios int `json:"passed_scenarios"`
	// FailedScenarios is the number of scenarios that failed
	FailedScenarios int `json:"failed_scenarios"`
	// SkippedScenarios is the number of scenarios that were skipped
	SkippedScenarios int `json:"skipped_scenarios"`
	// ErrorScenarios is the number of scenarios that had errors
	ErrorScenarios int `json:"error_scenarios"`
	// Tests aggregates the test counts of every scenario
	Tests TestCounts `json:"tests"`
	// ScenarioResults contains individual scenario results
	ScenarioResults []TestScenarioResult `json:"scenario_results"`
	// Configuration used for this test run
	Configuration TestConfiguration `json:"configuration"`
}

// Succeeded reports whether no scenario failed or errored.
func (r *TestSuiteResult) Succeeded() bool {
	return r.FailedScenarios == 0 && r.ErrorScenarios == 0
}

// TestScenarioResult represents the result of a single test scenario
type TestScenarioResult struct {
	// Scenario is the scenario that was executed
	Scenario TestScenario `json:"scenario"`
	// Result is the overall result of the scenario
	Result TestResult `json:"result"`
	// StartTime when scenario execution began
	StartTime time.Time `json:"start_time"`
	// EndTime when scenario execution completed
	EndTime time.Time `json:"end_time"`
	// Duration of scenario execution
	Duration time.Duration `json:"duration"`
	// Tests contains the results of the scenario's atomic tests
	Tests []TestCaseResult `json:"tests"`
	// Counts aggregates Tests
	Counts TestCounts `json:"counts"`
	// Leaked is the number of correlation entries left after the run
	Leaked int `json:"leaked,omitempty"`
	// Error message if the scenario failed or had an error
	Error string `json:"error,omitempty"`
}

// TestCaseResult is the result of one atomic test
type TestCaseResult struct {
	Class    string        `json:"class"`
	Name     string        `json:"name"`
	Result   TestResult    `json:"result"`
	Attempts int           `json:"attempts"`
	Retries  int           `json:"retries"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// TestRunner interface defines the test execution engine
type TestRunner interface {
	// Run executes test scenarios according to the configuration
	Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error)
}

// TestScenarioLoader interface defines how test scenarios are loaded
type TestScenarioLoader interface {
	// LoadScenarios loads test scenarios from files, directories or glob patterns
	LoadScenarios(paths ...string) ([]TestScenario, error)
	// FilterScenarios filters scenarios based on the configuration
	FilterScenarios(scenarios []TestScenario, config TestConfiguration) []TestScenario
}

// TestReporter interface defines how test results are reported
type TestReporter interface {
	// ReportStart is called when test execution begins
	ReportStart(config TestConfiguration)
	// ReportScenarioStart is called when a scenario begins
	ReportScenarioStart(scenario TestScenario)
	// ReportScenarioResult is called when a scenario completes
	ReportScenarioResult(scenarioResult TestScenarioResult)
	// ReportSuiteResult is called when all tests complete
	ReportSuiteResult(suiteResult TestSuiteResult)
	// SetParallelMode enables or disables parallel output buffering
	SetParallelMode(parallel bool)
}

// StructuredTestReporter extends TestReporter with methods for structured data access
type StructuredTestReporter interface {
	TestReporter
	// GetCurrentSuiteResult returns the current test suite result
	GetCurrentSuiteResult() *TestSuiteResult
	// GetCurrentResults returns the current scenario results
	GetCurrentResults() []TestScenarioResult
	// Render returns the current results in the given format, json or yaml
	Render(format string) ([]byte, error)
}
