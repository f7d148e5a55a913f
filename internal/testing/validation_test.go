package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScenario(t *testing.T) {
	negative := -time.Second
	count := -1

	tests := []struct {
		name     string
		scenario TestScenario
		fields   []string
	}{
		{
			name: "valid",
			scenario: TestScenario{Name: "ok", Classes: []ClassSpec{{
				Name:    "Cart",
				Methods: []MethodSpec{{Name: "checkout", Outcomes: []Outcome{OutcomeFail, OutcomePass}}},
			}}},
		},
		{
			name:     "missing name and classes",
			scenario: TestScenario{},
			fields:   []string{"classes", "name"},
		},
		{
			name: "duplicates",
			scenario: TestScenario{Name: "dup", Classes: []ClassSpec{
				{Name: "Cart", Methods: []MethodSpec{{Name: "a"}, {Name: "a"}}},
				{Name: "Cart", Methods: []MethodSpec{{Name: "b"}}},
			}},
			fields: []string{"classes[0].methods[1].name", "classes[1].name"},
		},
		{
			name: "bad values",
			scenario: TestScenario{
				Name: "bad",
				Classes: []ClassSpec{{
					Name:        "Cart",
					RuleTimeout: &negative,
					Befores:     []MethodSpec{{Name: "setUp", Ignored: true}},
					Methods: []MethodSpec{{
						Name:          "pay",
						Params:        [][]interface{}{{"visa"}},
						ParamOutcomes: map[int][]Outcome{3: {OutcomePass}},
					}},
				}},
				Expect: &Expectation{Failed: &count},
			},
			fields: []string{
				"classes[0].befores[0]",
				"classes[0].methods[0].param_outcomes",
				"classes[0].rule_timeout",
				"expect.failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateScenario(tt.scenario)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidateScenarios(t *testing.T) {
	results := ValidateScenarios([]TestScenario{
		{Name: "ok", Classes: []ClassSpec{{Name: "Cart", Methods: []MethodSpec{{Name: "m"}}}}},
		{Name: "broken", Classes: []ClassSpec{{Name: "Cart"}}},
	})

	assert.Equal(t, 2, results.TotalScenarios)
	assert.Equal(t, 1, results.ValidScenarios)
	assert.Equal(t, 1, results.TotalErrors)
	assert.Equal(t, map[string]int{"missing_field": 1}, results.ValidationSummary)
	require.Len(t, results.ScenarioResults, 2)
	assert.False(t, results.ScenarioResults[1].Valid)

	out := FormatValidationResults(results, false)
	assert.Contains(t, out, "Invalid scenarios: 1")
	assert.Contains(t, out, "❌ broken")
	assert.Contains(t, out, "classes[0].methods: at least one test method is required")
}
