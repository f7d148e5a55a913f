package testing

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/testhooks/internal/formatting"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// structuredReporter implements StructuredTestReporter. It captures all
// reporting data without writing anything, for JSON and YAML output modes.
type structuredReporter struct {
	mu             sync.RWMutex
	reportPath     string
	config         TestConfiguration
	scenarioStates map[string]*ScenarioState
	suiteResult    *TestSuiteResult
	currentResults []TestScenarioResult
}

// ScenarioState tracks the state of a running scenario
type ScenarioState struct {
	Scenario  TestScenario `json:"scenario"`
	StartTime time.Time    `json:"start_time"`
	Status    string       `json:"status"` // "running", "completed", "failed"
}

// NewStructuredReporter creates a reporter that captures structured data.
// The final suite result is also saved to reportPath when set.
func NewStructuredReporter(reportPath string) StructuredTestReporter {
	return &structuredReporter{
		reportPath:     reportPath,
		scenarioStates: make(map[string]*ScenarioState),
		currentResults: make([]TestScenarioResult, 0),
	}
}

// ReportStart is called when test execution begins
func (r *structuredReporter) ReportStart(config TestConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = config
	r.suiteResult = &TestSuiteResult{
		StartTime:       time.Now(),
		ScenarioResults: make([]TestScenarioResult, 0),
		Configuration:   config,
	}
}

// ReportScenarioStart is called when a scenario begins
func (r *structuredReporter) ReportScenarioStart(scenario TestScenario) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scenarioStates[scenario.Name] = &ScenarioState{
		Scenario:  scenario,
		StartTime: time.Now(),
		Status:    "running",
	}
}

// ReportScenarioResult is called when a scenario completes
func (r *structuredReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, exists := r.scenarioStates[scenarioResult.Scenario.Name]; exists {
		if failed(scenarioResult) {
			state.Status = "failed"
		} else {
			state.Status = "completed"
		}
	}

	r.currentResults = append(r.currentResults, scenarioResult)

	if r.suiteResult != nil {
		r.suiteResult.ScenarioResults = append(r.suiteResult.ScenarioResults, scenarioResult)
		r.updateSuiteCounters(scenarioResult)
	}
}

// ReportSuiteResult is called when all tests complete
func (r *structuredReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	r.mu.Lock()
	r.suiteResult = &suiteResult
	for _, state := range r.scenarioStates {
		if state.Status == "running" {
			state.Status = "completed"
		}
	}
	format := formatting.OutputFormat(r.config.ReportFormat)
	r.mu.Unlock()

	if r.reportPath != "" {
		if !format.Structured() {
			format = formatting.FormatJSON
		}
		// Nothing may be written to stdout in structured mode; failures go to
		// the log, which writes to stderr.
		if _, err := saveDetailedReport(r.reportPath, format, suiteResult); err != nil {
			logging.Warn("ScenarioRunner", "Failed to save detailed report: %v", err)
		}
	}
}

// GetCurrentSuiteResult returns the current test suite result
func (r *structuredReporter) GetCurrentSuiteResult() *TestSuiteResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.suiteResult == nil {
		return nil
	}

	result := *r.suiteResult
	result.ScenarioResults = make([]TestScenarioResult, len(r.suiteResult.ScenarioResults))
	copy(result.ScenarioResults, r.suiteResult.ScenarioResults)

	return &result
}

// GetScenarioStates returns the current state of all scenarios
func (r *structuredReporter) GetScenarioStates() map[string]*ScenarioState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]*ScenarioState, len(r.scenarioStates))
	for name, state := range r.scenarioStates {
		stateCopy := *state
		states[name] = &stateCopy
	}

	return states
}

// GetCurrentResults returns the current scenario results
func (r *structuredReporter) GetCurrentResults() []TestScenarioResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]TestScenarioResult, len(r.currentResults))
	copy(results, r.currentResults)
	return results
}

// Render returns the current suite result in format, json or yaml
func (r *structuredReporter) Render(format string) ([]byte, error) {
	f, err := formatting.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if !f.Structured() {
		return nil, fmt.Errorf("format %s is not a structured format", f)
	}

	var data interface{} = map[string]string{"status": "no_results", "message": "No test results available"}
	if result := r.GetCurrentSuiteResult(); result != nil {
		data = result
	}

	var buf bytes.Buffer
	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: f})
	if err := formatter.FormatData(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetParallelMode is a no-op: results are captured, never printed
func (r *structuredReporter) SetParallelMode(bool) {}

// updateSuiteCounters updates the suite-level counters based on scenario result
func (r *structuredReporter) updateSuiteCounters(scenarioResult TestScenarioResult) {
	switch scenarioResult.Result {
	case ResultPassed:
		r.suiteResult.PassedScenarios++
	case ResultFailed:
		r.suiteResult.FailedScenarios++
	case ResultSkipped:
		r.suiteResult.SkippedScenarios++
	case ResultError:
		r.suiteResult.ErrorScenarios++
	}

	r.suiteResult.TotalScenarios = len(r.suiteResult.ScenarioResults)
	r.suiteResult.Tests.Add(scenarioResult.Counts)
}
