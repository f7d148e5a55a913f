package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/testhooks/internal/testing"
)

func newValidateCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate <scenario paths...>",
		Short: "Validate test scenarios without running them",
		Long: `The validate command loads test scenarios and checks them for missing
names, unknown outcomes, invalid durations and other mistakes, without
running anything.

Paths accept the same files, directories and glob patterns as run.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeScenarioFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := testing.NewTestScenarioLoaderWithLogger(false, testing.NewSilentLogger(false, false))
			scenarios, err := loader.LoadScenarios(args...)
			if err != nil {
				errs, ok := testing.AsValidationErrors(err)
				if !ok {
					return fmt.Errorf("failed to load test scenarios: %w", err)
				}
				results := &testing.ScenarioValidationResults{
					TotalScenarios: 1,
					TotalErrors:    len(errs),
					ScenarioResults: []testing.ScenarioValidationResult{
						{ScenarioName: err.Error(), Errors: errs},
					},
					ValidationSummary: make(map[string]int),
				}
				for _, e := range errs {
					results.ValidationSummary[e.Type]++
				}
				fmt.Fprint(cmd.OutOrStdout(), testing.FormatValidationResults(results, verbose))
				return fmt.Errorf("scenario validation failed")
			}

			results := testing.ValidateScenarios(scenarios)
			fmt.Fprint(cmd.OutOrStdout(), testing.FormatValidationResults(results, verbose))
			if results.TotalErrors > 0 {
				return fmt.Errorf("%d scenarios are invalid", results.TotalScenarios-results.ValidScenarios)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "List every scenario, not only invalid ones")
	return cmd
}
