package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/internal/lifecycle"
)

// testRunner implements the TestRunner interface. Every scenario runs as its
// own suite under a fresh lifecycle engine.
type testRunner struct {
	provider *config.Provider
	registry *api.Registry
	loader   TestScenarioLoader
	reporter TestReporter
	debug    bool
	logger   TestLogger
}

// NewTestRunner creates a new test runner reading engine settings from provider
func NewTestRunner(provider *config.Provider, loader TestScenarioLoader, reporter TestReporter, debug bool) TestRunner {
	return NewTestRunnerWithLogger(provider, loader, reporter, debug, NewStdoutLogger(false, debug))
}

// NewTestRunnerWithLogger creates a new test runner with custom logger
func NewTestRunnerWithLogger(provider *config.Provider, loader TestScenarioLoader, reporter TestReporter, debug bool, logger TestLogger) TestRunner {
	return &testRunner{
		provider: provider,
		registry: api.DefaultRegistry(),
		loader:   loader,
		reporter: reporter,
		debug:    debug,
		logger:   logger,
	}
}

// Run executes test scenarios according to the configuration
func (r *testRunner) Run(ctx context.Context, config TestConfiguration, scenarios []TestScenario) (*TestSuiteResult, error) {
	if r.provider == nil {
		return nil, api.ErrNilProvider
	}

	result := &TestSuiteResult{
		RunID:           uuid.NewString(),
		StartTime:       time.Now(),
		ScenarioResults: make([]TestScenarioResult, 0, len(scenarios)),
		Configuration:   config,
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	r.reporter.ReportStart(config)

	filteredScenarios := r.loader.FilterScenarios(scenarios, config)
	result.TotalScenarios = len(filteredScenarios)

	if len(filteredScenarios) == 0 {
		r.finish(result)
		return result, nil
	}

	if config.Parallel <= 1 {
		r.reporter.SetParallelMode(false)
		for _, scenario := range filteredScenarios {
			scenarioResult := r.runScenario(ctx, scenario)
			result.ScenarioResults = append(result.ScenarioResults, scenarioResult)
			r.updateCounters(result, scenarioResult)
			r.reporter.ReportScenarioResult(scenarioResult)

			if config.FailFast && failed(scenarioResult) {
				break
			}
		}
	} else {
		r.reporter.SetParallelMode(true)
		result.ScenarioResults = r.runScenariosParallel(ctx, filteredScenarios, config, result)
	}

	r.finish(result)
	return result, nil
}

func (r *testRunner) finish(result *TestSuiteResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.reporter.ReportSuiteResult(*result)
}

func failed(result TestScenarioResult) bool {
	return result.Result == ResultFailed || result.Result == ResultError
}

// runScenariosParallel executes scenarios with a worker pool. Once fail-fast
// triggers, scenarios not yet picked up are skipped.
func (r *testRunner) runScenariosParallel(ctx context.Context, scenarios []TestScenario, config TestConfiguration, suiteResult *TestSuiteResult) []TestScenarioResult {
	scenarioChan := make(chan TestScenario, len(scenarios))
	resultChan := make(chan TestScenarioResult, len(scenarios))

	for _, scenario := range scenarios {
		scenarioChan <- scenario
	}
	close(scenarioChan)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	numWorkers := min(config.Parallel, len(scenarios))

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for scenario := range scenarioChan {
				if ctx.Err() != nil {
					return
				}
				r.logger.Debug("🔄 Worker %d executing scenario: %s\n", workerID, scenario.Name)
				resultChan <- r.runScenario(ctx, scenario)
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var results []TestScenarioResult
	stopped := false
	for result := range resultChan {
		results = append(results, result)
		if stopped {
			r.logger.Debug("📋 Collected remaining result: %s (not reported due to fail-fast)\n", result.Scenario.Name)
			continue
		}

		r.updateCounters(suiteResult, result)
		r.reporter.ReportScenarioResult(result)

		if config.FailFast && failed(result) {
			r.logger.Debug("🛑 Fail-fast triggered by scenario: %s\n", result.Scenario.Name)
			stopped = true
			stop()
		}
	}

	return results
}

// settingsFor applies the scenario's overrides to the current settings
func (r *testRunner) settingsFor(scenario TestScenario) config.Settings {
	settings := r.provider.Current()
	if scenario.MaxRetry != nil {
		settings.Retry.MaxRetry = *scenario.MaxRetry
	}
	if len(scenario.Analyzers) > 0 {
		settings.Retry.Analyzers = scenario.Analyzers
	}
	return settings
}

// runScenario executes a single test scenario
func (r *testRunner) runScenario(ctx context.Context, scenario TestScenario) TestScenarioResult {
	result := TestScenarioResult{
		Scenario:  scenario,
		StartTime: time.Now(),
		Result:    ResultPassed,
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	r.reporter.ReportScenarioStart(scenario)

	if scenario.Skip {
		result.Result = ResultSkipped
		return result
	}

	scenarioCtx := ctx
	if scenario.Timeout > 0 {
		var cancel context.CancelFunc
		scenarioCtx, cancel = context.WithTimeout(ctx, scenario.Timeout)
		defer cancel()
	}

	settings := r.settingsFor(scenario)
	collector := newResultCollector()

	watchers, err := r.registry.Watchers(settings.Watchers...)
	if err != nil {
		return errored(result, fmt.Errorf("failed to create watchers: %w", err))
	}
	watchers.Add(collector)

	engine, err := lifecycle.New(config.NewStaticProvider(settings),
		lifecycle.WithRegistry(r.registry),
		lifecycle.WithWatchers(watchers),
	)
	if err != nil {
		return errored(result, err)
	}

	suite, err := buildSuite(scenario, settings)
	if err != nil {
		return errored(result, err)
	}
	engine.Install(suite)

	r.logger.Debug("🏗️  Running scenario %s with %d classes (max retry %d)\n",
		scenario.Name, len(scenario.Classes), settings.Retry.MaxRetry)

	runErr := suite.Run(scenarioCtx, framework.NewRunNotifier())
	result.Tests, result.Counts = collector.results()
	result.Leaked = engine.Store().Len().Total()

	switch {
	case runErr != nil:
		return errored(result, runErr)
	case result.Leaked > 0:
		return errored(result, fmt.Errorf("%d correlation entries leaked: %+v", result.Leaked, engine.Store().Len()))
	}

	if scenario.Expect != nil {
		if mismatches := checkExpectation(*scenario.Expect, result.Counts); len(mismatches) > 0 {
			result.Result = ResultFailed
			result.Error = "unexpected counts: " + strings.Join(mismatches, ", ")
		}
		return result
	}

	if result.Counts.Failed > 0 {
		result.Result = ResultFailed
		result.Error = fmt.Sprintf("%d tests failed", result.Counts.Failed)
	}
	return result
}

func errored(result TestScenarioResult, err error) TestScenarioResult {
	result.Result = ResultError
	result.Error = err.Error()
	return result
}

func buildSuite(scenario TestScenario, settings config.Settings) (*framework.Suite, error) {
	var opts []framework.ClassRunnerOption
	if settings.ParameterNameTemplate != "" {
		opts = append(opts, framework.WithNameTemplate(settings.ParameterNameTemplate))
	}

	runners := make([]framework.Runner, 0, len(scenario.Classes))
	for _, spec := range scenario.Classes {
		runner, err := framework.NewClassRunner(buildClass(spec), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create runner for %s: %w", spec.Name, err)
		}
		runners = append(runners, runner)
	}
	return framework.NewSuite(scenario.Name, settings.Parallel, runners...), nil
}

// checkExpectation returns a description of every count that differs
func checkExpectation(expect Expectation, got TestCounts) []string {
	var mismatches []string
	check := func(name string, want *int, actual int) {
		if want != nil && *want != actual {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %d, got %d", name, *want, actual))
		}
	}
	check("passed", expect.Passed, got.Passed)
	check("failed", expect.Failed, got.Failed)
	check("assumption_failed", expect.AssumptionFailed, got.AssumptionFailed)
	check("ignored", expect.Ignored, got.Ignored)
	check("retried", expect.Retried, got.Retried)
	check("attempts", expect.Attempts, got.Attempts)
	return mismatches
}

// updateCounters updates the result counters based on a scenario result
func (r *testRunner) updateCounters(suiteResult *TestSuiteResult, scenarioResult TestScenarioResult) {
	switch scenarioResult.Result {
	case ResultPassed:
		suiteResult.PassedScenarios++
	case ResultFailed:
		suiteResult.FailedScenarios++
	case ResultSkipped:
		suiteResult.SkippedScenarios++
	case ResultError:
		suiteResult.ErrorScenarios++
	}
	suiteResult.Tests.Add(scenarioResult.Counts)
}
