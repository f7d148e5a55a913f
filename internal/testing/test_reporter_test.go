package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/formatting"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

func sampleSuiteResult() TestSuiteResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scenario := TestScenarioResult{
		Scenario: TestScenario{Name: "flaky"},
		Result:   ResultPassed,
		Duration: 1500 * time.Millisecond,
		Tests: []TestCaseResult{
			{Class: "Cart", Name: "checkout", Result: ResultPassed, Attempts: 3, Retries: 2},
		},
		Counts: TestCounts{Passed: 1, Retried: 2, Attempts: 3},
	}
	return TestSuiteResult{
		RunID:           "run-1",
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		Duration:        2 * time.Second,
		TotalScenarios:  1,
		PassedScenarios: 1,
		Tests:           scenario.Counts,
		ScenarioResults: []TestScenarioResult{scenario},
	}
}

func TestTestReporter_SuiteSummary(t *testing.T) {
	var out bytes.Buffer
	dir := t.TempDir()
	r := NewTestReporterWithWriter(&out, true, false, dir, formatting.FormatYAML)

	suite := sampleSuiteResult()
	r.ReportStart(DefaultTestConfiguration())
	r.ReportScenarioResult(suite.ScenarioResults[0])
	r.ReportSuiteResult(suite)

	text := out.String()
	assert.Contains(t, text, "✅ flaky (1.5s): 1 passed, 0 failed, 0 assumptions, 0 ignored, 2 retried")
	assert.Contains(t, text, "✅ Cart.checkout: 3 attempts")
	assert.Contains(t, text, "Run run-1")
	assert.Contains(t, text, "🎉 All scenarios passed!")

	path := filepath.Join(dir, "testhooks-report-20260301-120000.yaml")
	assert.Contains(t, text, "📄 Detailed report saved to: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved TestSuiteResult
	require.NoError(t, yaml.Unmarshal(data, &saved))
	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, 2, saved.Tests.Retried)
}

func TestQuietReporter(t *testing.T) {
	var out bytes.Buffer
	r := NewQuietReporter(&out)

	suite := sampleSuiteResult()
	r.ReportScenarioResult(suite.ScenarioResults[0])
	r.ReportScenarioResult(TestScenarioResult{Scenario: TestScenario{Name: "broken"}, Result: ResultError, Error: "boom"})
	r.ReportSuiteResult(suite)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "💥 broken: boom", lines[0])
	assert.Equal(t, "✅ All 1 scenarios passed (2s)", lines[1])
}

func TestStructuredReporter_Render(t *testing.T) {
	r := NewStructuredReporter("")

	out, err := r.Render("json")
	require.NoError(t, err)
	assert.Contains(t, string(out), "no_results")

	r.ReportStart(DefaultTestConfiguration())
	r.ReportScenarioStart(TestScenario{Name: "flaky"})
	suite := sampleSuiteResult()
	r.ReportScenarioResult(suite.ScenarioResults[0])

	current := r.GetCurrentSuiteResult()
	require.NotNil(t, current)
	assert.Equal(t, 1, current.PassedScenarios)
	assert.Equal(t, 2, current.Tests.Retried)
	assert.Len(t, r.GetCurrentResults(), 1)

	r.ReportSuiteResult(suite)

	out, err = r.Render("json")
	require.NoError(t, err)
	var decoded TestSuiteResult
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)

	out, err = r.Render("yaml")
	require.NoError(t, err)
	assert.Contains(t, string(out), "run_id: run-1")

	_, err = r.Render("table")
	assert.Error(t, err)
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestStructuredReporter_ReportSaveFailureIsLogged(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var logs bytes.Buffer
	logging.InitForCLI(logging.LevelWarn, &logs)
	t.Cleanup(func() { logging.InitForCLI(logging.LevelInfo, os.Stderr) })

	stdout := captureStdout(t, func() {
		r := NewStructuredReporter(filepath.Join(blocker, "reports"))
		r.ReportStart(DefaultTestConfiguration())
		r.ReportSuiteResult(sampleSuiteResult())
	})

	assert.Empty(t, stdout)
	assert.Contains(t, logs.String(), "Failed to save detailed report")
}

func TestConsoleWatcher_Registered(t *testing.T) {
	assert.Contains(t, api.DefaultRegistry().WatcherNames(), ConsoleWatcherName)
}

func TestConsoleWatcher_PrintsRetries(t *testing.T) {
	var out bytes.Buffer
	watcher := NewConsoleWatcher(&out, false)

	registry := api.NewRegistry()
	require.NoError(t, registry.RegisterWatcher("buffered", func() any { return watcher }))
	require.NoError(t, registry.RegisterRetryAnalyzer("always", api.RetryAnalyzerFunc(
		func(*framework.Method, error) (bool, error) { return true, nil })))

	settings := config.GetDefaultSettings()
	settings.Retry.MaxRetry = 1
	settings.Watchers = []string{"buffered"}
	runner := &testRunner{
		provider: config.NewStaticProvider(settings),
		registry: registry,
		loader:   newQuietLoader(),
		reporter: NewQuietReporter(io.Discard),
		logger:   NewSilentLogger(false, false),
	}

	scenario := TestScenario{
		Name: "flaky",
		Classes: cart(
			MethodSpec{Name: "checkout", Outcomes: []Outcome{OutcomeFail, OutcomePass}},
			MethodSpec{Name: "legacy", Ignored: true},
		),
	}
	result, err := runner.Run(context.Background(), DefaultTestConfiguration(), []TestScenario{scenario})
	require.NoError(t, err)
	require.Equal(t, ResultPassed, result.ScenarioResults[0].Result, result.ScenarioResults[0].Error)

	assert.Equal(t,
		"    🔁 Cart.checkout failed on attempt 1, retrying: checkout failed on call 1\n"+
			"    ⏭️  Cart.legacy ignored\n",
		out.String())
}
