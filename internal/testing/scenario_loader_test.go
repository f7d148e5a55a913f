package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkoutScenario = `
name: checkout
tags: [smoke]
max_retry: 2
classes:
  - name: Cart
    rule_timeout: 250ms
    methods:
      - name: checkout
        outcomes: [fail, pass]
      - name: pay
        params: [[visa], [amex]]
        param_outcomes:
          1: [timeout, pass]
expect:
  passed: 3
  retried: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newQuietLoader() TestScenarioLoader {
	return NewTestScenarioLoaderWithLogger(false, NewSilentLogger(false, false))
}

func TestLoadScenarios_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "checkout.yaml", checkoutScenario)

	scenarios, err := newQuietLoader().LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	s := scenarios[0]
	assert.Equal(t, "checkout", s.Name)
	assert.Equal(t, path, s.SourceFile)
	require.NotNil(t, s.MaxRetry)
	assert.Equal(t, 2, *s.MaxRetry)

	class := s.Classes[0]
	require.NotNil(t, class.RuleTimeout)
	assert.Equal(t, 250*time.Millisecond, *class.RuleTimeout)
	assert.Equal(t, []Outcome{OutcomeFail, OutcomePass}, class.Methods[0].Outcomes)
	assert.Equal(t, [][]interface{}{{"visa"}, {"amex"}}, class.Methods[1].Params)
	assert.Equal(t, []Outcome{OutcomeTimeout, OutcomePass}, class.Methods[1].ParamOutcomes[1])
	require.NotNil(t, s.Expect.Passed)
	assert.Equal(t, 3, *s.Expect.Passed)
	assert.Nil(t, s.Expect.Failed)
}

func TestLoadScenarios_DirectoryAndGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: a\nclasses: [{name: A, methods: [{name: one}]}]\n")
	writeFile(t, dir, "nested/b.yml", "name: b\nclasses: [{name: B, methods: [{name: one}]}]\n")
	writeFile(t, dir, "nested/notes.txt", "not a scenario")

	loader := newQuietLoader()

	scenarios, err := loader.LoadScenarios(dir)
	require.NoError(t, err)
	assert.Len(t, scenarios, 2)

	scenarios, err = loader.LoadScenarios(filepath.Join(dir, "**", "*.yml"))
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "b", scenarios[0].Name)

	_, err = loader.LoadScenarios(filepath.Join(dir, "**", "*.json"))
	assert.ErrorContains(t, err, "no scenario files match")
}

func TestLoadScenarios_Errors(t *testing.T) {
	dir := t.TempDir()
	loader := newQuietLoader()

	_, err := loader.LoadScenarios(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")

	dup := writeFile(t, dir, "dup/one.yaml", "name: same\nclasses: [{name: A, methods: [{name: m}]}]\n")
	writeFile(t, dir, "dup/two.yaml", "name: same\nclasses: [{name: A, methods: [{name: m}]}]\n")
	_, err = loader.LoadScenarios(filepath.Dir(dup))
	assert.ErrorContains(t, err, `duplicate scenario name "same"`)

	bad := writeFile(t, dir, "bad.yaml", "name: bad\nclasses: [{name: A, methods: [{name: m, outcomes: [explode]}]}]\n")
	_, err = loader.LoadScenarios(bad)
	require.Error(t, err)
	errs, ok := AsValidationErrors(err)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "classes[0].methods[0].outcomes", errs[0].Field)
}

func TestFilterScenarios(t *testing.T) {
	scenarios := []TestScenario{
		{Name: "checkout-flaky", Tags: []string{"smoke"}},
		{Name: "checkout-timeout", Tags: []string{"slow"}},
		{Name: "refund"},
	}
	loader := newQuietLoader()

	names := func(ss []TestScenario) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.Name)
		}
		return out
	}

	assert.Len(t, loader.FilterScenarios(scenarios, TestConfiguration{}), 3)
	assert.Equal(t, []string{"checkout-flaky", "checkout-timeout"},
		names(loader.FilterScenarios(scenarios, TestConfiguration{Scenario: "checkout"})))
	assert.Equal(t, []string{"checkout-timeout"},
		names(loader.FilterScenarios(scenarios, TestConfiguration{Tags: []string{"slow", "nightly"}})))
	assert.Empty(t, loader.FilterScenarios(scenarios, TestConfiguration{Scenario: "refund", Tags: []string{"smoke"}}))
}
