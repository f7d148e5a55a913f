package testing

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/testhooks/internal/formatting"
)

// testReporter implements the TestReporter interface
type testReporter struct {
	out          io.Writer
	verbose      bool
	debug        bool
	reportPath   string
	reportFormat formatting.OutputFormat

	mu           sync.Mutex
	parallelMode bool
}

// NewTestReporter creates a new test reporter writing to stdout. Reports
// saved to reportPath are JSON.
func NewTestReporter(verbose, debug bool, reportPath string) TestReporter {
	return NewTestReporterWithWriter(os.Stdout, verbose, debug, reportPath, formatting.FormatJSON)
}

// NewTestReporterWithWriter creates a test reporter writing to out and saving
// reports in reportFormat, json or yaml.
func NewTestReporterWithWriter(out io.Writer, verbose, debug bool, reportPath string, reportFormat formatting.OutputFormat) TestReporter {
	if !reportFormat.Structured() {
		reportFormat = formatting.FormatJSON
	}
	return &testReporter{
		out:          out,
		verbose:      verbose,
		debug:        debug,
		reportPath:   reportPath,
		reportFormat: reportFormat,
	}
}

func (r *testReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// SetParallelMode enables or disables parallel output buffering. In parallel
// mode scenario start lines are suppressed, since results arrive out of order.
func (r *testReporter) SetParallelMode(parallel bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parallelMode = parallel
}

// ReportStart is called when test execution begins
func (r *testReporter) ReportStart(config TestConfiguration) {
	r.printf("🧪 Starting testhooks scenario run\n")

	if r.verbose {
		r.printf("\n⚙️  Configuration:\n")
		r.printf("   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		if len(config.Tags) > 0 {
			r.printf("   • Tags: %v\n", config.Tags)
		}
		r.printf("   • Parallel workers: %d\n", config.Parallel)
		r.printf("   • Fail fast: %t\n", config.FailFast)
		r.printf("   • Debug mode: %t\n", r.debug)
		r.printf("   • Verbose mode: %t\n", r.verbose)
		r.printf("   • Timeout: %v\n", config.Timeout)
		if config.ReportPath != "" {
			r.printf("   • Report path: %s\n", config.ReportPath)
		}
		r.printf("\n")
	}
}

// ReportScenarioStart is called when a scenario begins
func (r *testReporter) ReportScenarioStart(scenario TestScenario) {
	r.mu.Lock()
	parallel := r.parallelMode
	r.mu.Unlock()

	if !r.verbose || parallel {
		return
	}
	r.printf("🎯 Starting scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		r.printf("   📝 %s\n", scenario.Description)
	}
}

// ReportScenarioResult is called when a scenario completes
func (r *testReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol := getResultSymbol(scenarioResult.Result)
	c := scenarioResult.Counts
	r.printf("%s %s (%v): %d passed, %d failed, %d assumptions, %d ignored, %d retried\n",
		symbol, scenarioResult.Scenario.Name, scenarioResult.Duration.Round(time.Millisecond),
		c.Passed, c.Failed, c.AssumptionFailed, c.Ignored, c.Retried)

	if scenarioResult.Error != "" {
		r.printf("   ❌ %s\n", scenarioResult.Error)
	}

	if !r.verbose {
		return
	}
	for _, tc := range scenarioResult.Tests {
		if tc.Result == ResultPassed && tc.Retries == 0 && !r.debug {
			continue
		}
		r.printf("   %s %s.%s: %d attempts", getResultSymbol(tc.Result), tc.Class, tc.Name, tc.Attempts)
		if tc.Error != "" {
			r.printf(" - %s", formatting.Truncate(tc.Error, 200))
		}
		r.printf("\n")
	}
}

// ReportSuiteResult is called when all tests complete
func (r *testReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	r.printf("\n🏁 Test Suite Complete\n")
	r.printf("⏱️  Duration: %v\n", suiteResult.Duration.Round(time.Millisecond))

	table := formatting.NewTableFormatter(formatting.Options{Format: formatting.FormatTable})
	if err := table.FormatTable(r.out, summaryTable(suiteResult)); err != nil {
		r.printf("⚠️  Failed to render summary: %v\n", err)
	}

	successRate := 0.0
	if suiteResult.TotalScenarios > 0 {
		successRate = float64(suiteResult.PassedScenarios) / float64(suiteResult.TotalScenarios) * 100
	}
	r.printf("📏 Success Rate: %.1f%%\n", successRate)

	if suiteResult.Succeeded() {
		r.printf("\n🎉 All scenarios passed!\n")
	} else {
		r.printf("\n💔 Some scenarios failed\n")
	}

	if r.reportPath != "" {
		path, err := saveDetailedReport(r.reportPath, r.reportFormat, suiteResult)
		if err != nil {
			r.printf("⚠️  Failed to save detailed report: %v\n", err)
		} else {
			r.printf("📄 Detailed report saved to: %s\n", path)
		}
	}
}

// summaryTable lays out one row per scenario and the suite totals
func summaryTable(suiteResult TestSuiteResult) formatting.Table {
	t := formatting.Table{
		Title:  "Run " + suiteResult.RunID,
		Header: []string{"Scenario", "Result", "Passed", "Failed", "Assumptions", "Ignored", "Retried", "Duration"},
	}
	for _, sr := range suiteResult.ScenarioResults {
		c := sr.Counts
		t.Rows = append(t.Rows, []string{
			sr.Scenario.Name,
			string(sr.Result),
			strconv.Itoa(c.Passed),
			strconv.Itoa(c.Failed),
			strconv.Itoa(c.AssumptionFailed),
			strconv.Itoa(c.Ignored),
			strconv.Itoa(c.Retried),
			sr.Duration.Round(time.Millisecond).String(),
		})
	}
	c := suiteResult.Tests
	t.Footer = []string{
		fmt.Sprintf("%d scenarios", suiteResult.TotalScenarios),
		fmt.Sprintf("%d failed", suiteResult.FailedScenarios+suiteResult.ErrorScenarios),
		strconv.Itoa(c.Passed),
		strconv.Itoa(c.Failed),
		strconv.Itoa(c.AssumptionFailed),
		strconv.Itoa(c.Ignored),
		strconv.Itoa(c.Retried),
		suiteResult.Duration.Round(time.Millisecond).String(),
	}
	return t
}

// saveDetailedReport writes the suite result into dir and returns the file path
func saveDetailedReport(dir string, format formatting.OutputFormat, suiteResult TestSuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := suiteResult.StartTime.Format("20060102-150405")
	fullPath := filepath.Join(dir, fmt.Sprintf("testhooks-report-%s.%s", timestamp, format))

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{Format: format})
	if err := formatter.FormatData(f, suiteResult); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return fullPath, nil
}

// getResultSymbol returns an appropriate symbol for the test result
func getResultSymbol(result TestResult) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultAssumptionFailed:
		return "⚠️"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}

// NewQuietReporter creates a reporter that only outputs essential information
func NewQuietReporter(out io.Writer) TestReporter {
	return &quietReporter{out: out}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
}

func (r *quietReporter) ReportStart(TestConfiguration) {}

func (r *quietReporter) ReportScenarioStart(TestScenario) {}

func (r *quietReporter) ReportScenarioResult(scenarioResult TestScenarioResult) {
	if failed(scenarioResult) {
		fmt.Fprintf(r.out, "%s %s: %s\n", getResultSymbol(scenarioResult.Result), scenarioResult.Scenario.Name, scenarioResult.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(suiteResult TestSuiteResult) {
	if suiteResult.Succeeded() {
		fmt.Fprintf(r.out, "✅ All %d scenarios passed (%v)\n", suiteResult.TotalScenarios, suiteResult.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(r.out, "❌ %d/%d scenarios failed (%v)\n",
		suiteResult.FailedScenarios+suiteResult.ErrorScenarios,
		suiteResult.TotalScenarios,
		suiteResult.Duration.Round(time.Millisecond))
}

func (r *quietReporter) SetParallelMode(bool) {}
