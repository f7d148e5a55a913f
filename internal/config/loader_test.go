package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const yamlConfig = `
retry:
  maxRetry: 3
  analyzers: [assertion, timeout]
timeouts:
  ruleDefault: 2s
  testDefault: 0s
watchers: [console, metrics]
parameterNameTemplate: '{{ .Method | upper }}#{{ .Index }}'
parallel: 4
`

const tomlConfig = `
watchers = ["console", "metrics"]
parameter_name_template = '{{ .Method | upper }}#{{ .Index }}'
parallel = 4

[retry]
max_retry = 3
analyzers = ["assertion", "timeout"]

[timeouts]
rule_default = "2s"
test_default = "0s"
`

func TestLoadSettings_DefaultOnly(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultSettings(), s)

	s, err = LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetDefaultSettings(), s)
}

func TestLoadSettings_YAMLAndTOMLAreEquivalent(t *testing.T) {
	dir := t.TempDir()
	fromYAML, err := LoadSettings(createTempConfigFile(t, dir, "a.yaml", yamlConfig))
	require.NoError(t, err)
	fromTOML, err := LoadSettings(createTempConfigFile(t, dir, "b.toml", tomlConfig))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromTOML)
	assert.Equal(t, 3, fromYAML.Retry.MaxRetry)
	assert.Equal(t, []string{"assertion", "timeout"}, fromYAML.Retry.Analyzers)
	require.NotNil(t, fromYAML.Timeouts.RuleDefault)
	assert.Equal(t, 2*time.Second, fromYAML.Timeouts.RuleDefault.Std())
	require.NotNil(t, fromYAML.Timeouts.TestDefault)
	assert.Equal(t, time.Duration(0), fromYAML.Timeouts.TestDefault.Std())
}

func TestLoadSettings_Directory(t *testing.T) {
	dir := t.TempDir()
	createTempConfigFile(t, dir, "testhooks.yaml", "retry:\n  maxRetry: 2\n")

	s, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Retry.MaxRetry)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, []string{DefaultAnalyzer}, s.Retry.Analyzers)
}

func TestLoadSettings_IntegerDurationIsMilliseconds(t *testing.T) {
	path := createTempConfigFile(t, t.TempDir(), "c.yaml", "timeouts:\n  testDefault: 400\n")
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 400*time.Millisecond, s.Timeouts.TestDefault.Std())
}

func TestLoadSettings_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		errType string
	}{
		{"malformed yaml", "bad.yaml", "retry: [", "parse"},
		{"bad duration", "dur.yaml", "timeouts:\n  ruleDefault: soon\n", "parse"},
		{"negative retry", "neg.yaml", "retry:\n  maxRetry: -1\n", "validation"},
		{"bad template", "tmpl.yaml", "parameterNameTemplate: '{{ .Method'\n", "validation"},
		{"unknown format", "c.json", "{}", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(createTempConfigFile(t, dir, tt.file, tt.content))
			require.Error(t, err)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.errType, ce.ErrorType)
			assert.Contains(t, ce.DetailedError(), tt.file)
		})
	}

	_, err := LoadSettings(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	s := GetDefaultSettings()
	s.Retry.MaxRetry = -1
	s.Parallel = -2
	s.Watchers = []string{""}
	s.Timeouts.TestDefault = NewDuration(-time.Second)

	err := Validate(s)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
	assert.Contains(t, err.Error(), "retry.maxRetry")
}
