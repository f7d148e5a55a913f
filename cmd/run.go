package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/formatting"
	"github.com/giantswarm/testhooks/internal/metrics"
	"github.com/giantswarm/testhooks/internal/testing"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// runOptions holds the flags of the run command
type runOptions struct {
	configPath   string
	watchConfig  bool
	maxRetry     int
	analyzers    []string
	watchers     []string
	timeout      time.Duration
	parallel     int
	scenario     string
	tags         []string
	failFast     bool
	verbose      bool
	debug        bool
	quiet        bool
	output       string
	reportPath   string
	reportFormat string
	metricsFile  string
}

// completeScenarioFlag completes scenario names found in the paths already on the command line
func completeScenarioFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	loader := testing.NewTestScenarioLoaderWithLogger(false, testing.NewSilentLogger(false, false))
	scenarios, err := loader.LoadScenarios(args...)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, scenario := range scenarios {
		names = append(names, scenario.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func completeScenarioFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenario paths...>",
		Short: "Run test scenarios under the retry and timeout engine",
		Long: `The run command loads test scenarios and runs each one as a suite under a
fresh interception engine.

Paths may be scenario files, directories (searched recursively for .yaml and
.yml files) or glob patterns such as "scenarios/**/*.yaml".

Engine settings (retry budget, analyzers, timeouts, watchers) are read from
--config and may be overridden with flags. With --watch-config, changes to the
config file apply to scenarios started afterwards.

Example usage:
  testhooks run scenarios/                          # Run every scenario
  testhooks run scenarios/ --scenario=flaky         # Run matching scenarios
  testhooks run 'scenarios/**/*.yaml' --tags=smoke  # Run tagged scenarios
  testhooks run scenarios/ --max-retry=3 --parallel=4
  testhooks run scenarios/ --output=json            # Print the result as JSON
  testhooks run scenarios/ --metrics-file=testhooks.prom

The command exits with status 2 when any scenario fails.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeScenarioFiles,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.parallel < 1 || opts.parallel > 50 {
				return fmt.Errorf("parallel workers must be between 1 and 50, got %d", opts.parallel)
			}
			if _, err := formatting.ParseFormat(opts.output); err != nil {
				return err
			}
			if opts.watchConfig && opts.configPath == "" {
				return fmt.Errorf("--watch-config requires --config")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	flags := cmd.Flags()

	// Engine settings
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML or TOML settings file, or a directory containing one")
	flags.BoolVar(&opts.watchConfig, "watch-config", false, "Reload the settings file when it changes")
	flags.IntVar(&opts.maxRetry, "max-retry", 0, "Override the number of retries a failing test gets")
	flags.StringSliceVar(&opts.analyzers, "analyzers", nil, "Override the retry analyzers consulted for eligibility")
	flags.StringSliceVar(&opts.watchers, "watchers", nil, "Override the watchers attached to every run")

	// Scenario selection and execution
	flags.StringVar(&opts.scenario, "scenario", "", "Run scenarios whose name contains this value")
	flags.StringSliceVar(&opts.tags, "tags", nil, "Run scenarios carrying any of these tags")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Overall execution timeout")
	flags.IntVar(&opts.parallel, "parallel", 1, "Number of scenarios run concurrently (1-50)")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Stop execution on the first failing scenario")

	// Output and reporting
	flags.BoolVar(&opts.verbose, "verbose", false, "Print every test and attempt")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print failures and the final result")
	flags.StringVarP(&opts.output, "output", "o", "console", "Output format (console, json, yaml)")
	flags.StringVar(&opts.reportPath, "report-path", "", "Directory to save a detailed report to")
	flags.StringVar(&opts.reportFormat, "report-format", "json", "Format of the saved report (json, yaml)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics of the run to this textfile")

	_ = cmd.RegisterFlagCompletionFunc("scenario", completeScenarioFlag)
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("report-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose")
	cmd.MarkFlagsMutuallyExclusive("quiet", "output")

	return cmd
}

// overrides turns the flags that were set into settings overrides
func (o *runOptions) overrides(cmd *cobra.Command, output formatting.OutputFormat) []config.Override {
	var overrides []config.Override
	if cmd.Flags().Changed("max-retry") {
		maxRetry := o.maxRetry
		overrides = append(overrides, func(s *config.Settings) { s.Retry.MaxRetry = maxRetry })
	}
	if len(o.analyzers) > 0 {
		analyzers := slices.Clone(o.analyzers)
		overrides = append(overrides, func(s *config.Settings) { s.Retry.Analyzers = analyzers })
	}
	if len(o.watchers) > 0 {
		watchers := slices.Clone(o.watchers)
		overrides = append(overrides, func(s *config.Settings) { s.Watchers = watchers })
	}
	if o.metricsFile != "" {
		overrides = append(overrides, func(s *config.Settings) {
			if !slices.Contains(s.Watchers, metrics.WatcherName) {
				s.Watchers = append(s.Watchers, metrics.WatcherName)
			}
		})
	}
	if output.Structured() {
		// The console watcher would corrupt structured output.
		overrides = append(overrides, func(s *config.Settings) {
			s.Watchers = slices.DeleteFunc(slices.Clone(s.Watchers), func(name string) bool {
				return name == testing.ConsoleWatcherName
			})
		})
	}
	return overrides
}

func runScenarios(cmd *cobra.Command, opts *runOptions, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	output, err := formatting.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			if !output.Structured() {
				fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt signal, stopping tests gracefully...")
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	provider, err := config.NewProvider(opts.configPath, opts.overrides(cmd, output)...)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	defer provider.Close()

	if opts.watchConfig {
		if err := provider.Watch(ctx); err != nil {
			return err
		}
		provider.OnChange(func(s config.Settings) {
			logging.Info("Run", "Settings reloaded: max retry %d, analyzers %v", s.Retry.MaxRetry, s.Retry.Analyzers)
		})
	}

	testConfig := testing.TestConfiguration{
		Timeout:      opts.timeout,
		Scenario:     opts.scenario,
		Tags:         opts.tags,
		Parallel:     opts.parallel,
		FailFast:     opts.failFast,
		Verbose:      opts.verbose,
		Debug:        opts.debug,
		ReportPath:   opts.reportPath,
		ReportFormat: opts.reportFormat,
	}
	if err := testing.ValidateConfiguration(testConfig); err != nil {
		return err
	}

	fw, err := testing.NewTestFramework(provider, testing.FrameworkOptions{
		Verbose:      opts.verbose,
		Debug:        opts.debug,
		Quiet:        opts.quiet,
		Output:       output,
		ReportPath:   opts.reportPath,
		ReportFormat: formatting.OutputFormat(opts.reportFormat),
		Out:          cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create test framework: %w", err)
	}

	scenarios, err := fw.Loader.LoadScenarios(args...)
	if err != nil {
		return fmt.Errorf("failed to load test scenarios: %w", err)
	}
	if len(scenarios) == 0 && !output.Structured() {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠️  No test scenarios found in %v\n", args)
		return nil
	}

	result, err := fw.Runner.Run(ctx, testConfig, scenarios)
	if err != nil {
		return fmt.Errorf("test execution failed: %w", err)
	}

	if structured, ok := fw.Reporter.(testing.StructuredTestReporter); ok && output.Structured() {
		data, err := structured.Render(string(output))
		if err != nil {
			return fmt.Errorf("failed to render results: %w", err)
		}
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	}

	if opts.metricsFile != "" {
		if err := metrics.Default().WriteToTextfile(opts.metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		logging.Info("Run", "Metrics written to %s", opts.metricsFile)
	}

	if !result.Succeeded() {
		return &TestsFailedError{
			Failed: result.FailedScenarios + result.ErrorScenarios,
			Total:  result.TotalScenarios,
		}
	}
	return nil
}
