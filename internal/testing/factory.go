package testing

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/formatting"
)

// DefaultTestConfiguration returns a default test configuration
func DefaultTestConfiguration() TestConfiguration {
	return TestConfiguration{
		Timeout:      5 * time.Minute,
		Parallel:     1,
		ReportFormat: string(formatting.FormatJSON),
	}
}

// TestFramework holds all components needed for testing
type TestFramework struct {
	Runner   TestRunner
	Loader   TestScenarioLoader
	Reporter TestReporter
	Logger   TestLogger
}

// FrameworkOptions configures NewTestFramework.
type FrameworkOptions struct {
	Verbose bool
	Debug   bool
	Quiet   bool
	// Output selects console output or a structured format, json or yaml.
	Output       formatting.OutputFormat
	ReportPath   string
	ReportFormat formatting.OutputFormat
	// Out receives console output. Defaults to stdout.
	Out io.Writer
}

// NewTestFramework creates a fully configured test framework. Structured
// output modes use the silent logger and the structured reporter, so nothing
// but the rendered result reaches stdout.
func NewTestFramework(provider *config.Provider, opts FrameworkOptions) (*TestFramework, error) {
	if provider == nil {
		return nil, fmt.Errorf("test framework requires a settings provider")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var (
		logger   TestLogger
		reporter TestReporter
	)
	switch {
	case opts.Output.Structured():
		logger = NewSilentLogger(opts.Verbose, opts.Debug)
		reporter = NewStructuredReporter(opts.ReportPath)
	case opts.Quiet:
		logger = NewWriterLogger(out, os.Stderr, false, opts.Debug)
		reporter = NewQuietReporter(out)
	default:
		logger = NewWriterLogger(out, os.Stderr, opts.Verbose, opts.Debug)
		reporter = NewTestReporterWithWriter(out, opts.Verbose, opts.Debug, opts.ReportPath, opts.ReportFormat)
	}

	loader := NewTestScenarioLoaderWithLogger(opts.Debug, logger)
	runner := NewTestRunnerWithLogger(provider, loader, reporter, opts.Debug, logger)

	return &TestFramework{
		Runner:   runner,
		Loader:   loader,
		Reporter: reporter,
		Logger:   logger,
	}, nil
}

// ValidateConfiguration validates a test configuration
func ValidateConfiguration(config TestConfiguration) error {
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	if config.Parallel < 1 {
		return fmt.Errorf("parallel workers must be at least 1")
	}

	if config.ReportFormat != "" {
		f, err := formatting.ParseFormat(config.ReportFormat)
		if err != nil {
			return err
		}
		if !f.Structured() {
			return fmt.Errorf("report format must be json or yaml, got %s", f)
		}
	}

	return nil
}
