package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/testhooks/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid arguments, unreadable
	// configuration or scenarios).
	ExitCodeError = 1
	// ExitCodeTestsFailed indicates the run completed but scenarios failed.
	ExitCodeTestsFailed = 2
)

// TestsFailedError is returned by commands whose scenarios failed or errored.
type TestsFailedError struct {
	Failed int
	Total  int
}

func (e *TestsFailedError) Error() string {
	return fmt.Sprintf("%d of %d scenarios failed", e.Failed, e.Total)
}

var logLevel string

// rootCmd represents the base command for the testhooks application.
var rootCmd = &cobra.Command{
	Use:   "testhooks",
	Short: "Run test suites with automatic retry and timeout management",
	Long: `testhooks runs test suites under an interception engine that correlates
every test with its runner, retries failing tests and enforces the longest
applicable timeout.

Suites are described as YAML scenarios; engine behavior is configured with a
YAML or TOML settings file.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
		return nil
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "testhooks version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var testsFailed *TestsFailedError
	if errors.As(err, &testsFailed) {
		return ExitCodeTestsFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
}
