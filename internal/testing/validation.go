package testing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ScenarioValidationResults represents the results of validating multiple scenarios
type ScenarioValidationResults struct {
	TotalScenarios    int                        `json:"total_scenarios"`
	ValidScenarios    int                        `json:"valid_scenarios"`
	TotalErrors       int                        `json:"total_errors"`
	ScenarioResults   []ScenarioValidationResult `json:"scenario_results"`
	ValidationSummary map[string]int             `json:"validation_summary"`
}

// ScenarioValidationResult represents the validation result for a single scenario
type ScenarioValidationResult struct {
	ScenarioName string            `json:"scenario_name"`
	Valid        bool              `json:"valid"`
	Errors       []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in a scenario.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

func (ve *ValidationErrors) add(kind, field, message, suggestion string) {
	*ve = append(*ve, ValidationError{Type: kind, Field: field, Message: message, Suggestion: suggestion})
}

// ValidateScenario checks the structure of a scenario.
func ValidateScenario(scenario TestScenario) ValidationErrors {
	var errs ValidationErrors

	if scenario.Name == "" {
		errs.add("missing_field", "name", "scenario name is required", "")
	}
	if len(scenario.Classes) == 0 {
		errs.add("missing_field", "classes", "at least one class is required", "")
	}

	classes := make(map[string]bool, len(scenario.Classes))
	for i, class := range scenario.Classes {
		field := fmt.Sprintf("classes[%d]", i)
		if class.Name == "" {
			errs.add("missing_field", field+".name", "class name is required", "")
		} else if classes[class.Name] {
			errs.add("duplicate", field+".name", fmt.Sprintf("duplicate class %q", class.Name), "")
		}
		classes[class.Name] = true

		if class.RuleTimeout != nil && *class.RuleTimeout < 0 {
			errs.add("invalid_value", field+".rule_timeout", "rule timeout must not be negative", "use 0 to disable timeouts")
		}
		if len(class.Methods) == 0 {
			errs.add("missing_field", field+".methods", "at least one test method is required", "")
		}

		validateMethods(&errs, field+".befores", class.Befores, false)
		validateMethods(&errs, field+".methods", class.Methods, true)
		validateMethods(&errs, field+".afters", class.Afters, false)
	}

	if e := scenario.Expect; e != nil {
		for name, v := range map[string]*int{
			"passed":            e.Passed,
			"failed":            e.Failed,
			"assumption_failed": e.AssumptionFailed,
			"ignored":           e.Ignored,
			"retried":           e.Retried,
			"attempts":          e.Attempts,
		} {
			if v != nil && *v < 0 {
				errs.add("invalid_value", "expect."+name, "expected count must not be negative", "")
			}
		}
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func validateMethods(errs *ValidationErrors, field string, methods []MethodSpec, tests bool) {
	names := make(map[string]bool, len(methods))
	for i, m := range methods {
		f := fmt.Sprintf("%s[%d]", field, i)
		if m.Name == "" {
			errs.add("missing_field", f+".name", "method name is required", "")
		} else if names[m.Name] {
			errs.add("duplicate", f+".name", fmt.Sprintf("duplicate method %q", m.Name), "")
		}
		names[m.Name] = true

		validateOutcomes(errs, f+".outcomes", m.Outcomes)
		for idx, outcomes := range m.ParamOutcomes {
			if idx < 0 || idx >= len(m.Params) {
				errs.add("invalid_value", f+".param_outcomes", fmt.Sprintf("parameter index %d out of range", idx), "")
			}
			validateOutcomes(errs, fmt.Sprintf("%s.param_outcomes[%d]", f, idx), outcomes)
		}

		if !tests && (len(m.Params) > 0 || m.Ignored) {
			errs.add("invalid_value", f, "setup and teardown methods cannot be parameterized or ignored", "")
		}
		if m.Timeout < 0 || m.Sleep < 0 {
			errs.add("invalid_value", f, "durations must not be negative", "")
		}
	}
}

func validateOutcomes(errs *ValidationErrors, field string, outcomes []Outcome) {
	for _, o := range outcomes {
		if !o.Valid() {
			errs.add("invalid_value", field, fmt.Sprintf("unknown outcome %q", o),
				"use one of pass, fail, assume, timeout, panic")
		}
	}
}

// ValidateScenarios validates every scenario and collects the results.
func ValidateScenarios(scenarios []TestScenario) *ScenarioValidationResults {
	results := &ScenarioValidationResults{
		TotalScenarios:    len(scenarios),
		ValidationSummary: make(map[string]int),
	}

	for _, scenario := range scenarios {
		errs := ValidateScenario(scenario)
		result := ScenarioValidationResult{
			ScenarioName: scenario.Name,
			Valid:        !errs.HasErrors(),
			Errors:       errs,
		}
		if result.Valid {
			results.ValidScenarios++
		}
		results.TotalErrors += len(errs)
		for _, e := range errs {
			results.ValidationSummary[e.Type]++
		}
		results.ScenarioResults = append(results.ScenarioResults, result)
	}

	return results
}

// AsValidationErrors extracts the validation errors wrapped in err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// FormatValidationResults formats validation results for CLI output
func FormatValidationResults(results *ScenarioValidationResults, verbose bool) string {
	var output strings.Builder

	output.WriteString("🔍 Scenario Validation Results\n")
	output.WriteString("══════════════════════════════\n")
	output.WriteString(fmt.Sprintf("Total scenarios: %d\n", results.TotalScenarios))
	output.WriteString(fmt.Sprintf("Valid scenarios: %d\n", results.ValidScenarios))
	output.WriteString(fmt.Sprintf("Invalid scenarios: %d\n", results.TotalScenarios-results.ValidScenarios))
	output.WriteString(fmt.Sprintf("Total errors: %d\n", results.TotalErrors))

	if len(results.ValidationSummary) > 0 {
		kinds := make([]string, 0, len(results.ValidationSummary))
		for kind := range results.ValidationSummary {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		output.WriteString("\n📊 Validation Summary:\n")
		for _, kind := range kinds {
			output.WriteString(fmt.Sprintf("  %s: %d\n", kind, results.ValidationSummary[kind]))
		}
	}

	if verbose || results.TotalErrors > 0 {
		output.WriteString("\n📋 Scenario Details:\n")
		for _, scenarioResult := range results.ScenarioResults {
			status := "✅"
			if !scenarioResult.Valid {
				status = "❌"
			}
			output.WriteString(fmt.Sprintf("  %s %s\n", status, scenarioResult.ScenarioName))

			for _, err := range scenarioResult.Errors {
				output.WriteString(fmt.Sprintf("    • %s: %s\n", err.Type, err.Error()))
				if err.Suggestion != "" {
					output.WriteString(fmt.Sprintf("      💡 %s\n", err.Suggestion))
				}
			}
		}
	}

	return output.String()
}
