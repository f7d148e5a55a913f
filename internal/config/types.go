package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level configuration of the lifecycle engine.
type Settings struct {
	Retry    RetryConfig   `yaml:"retry" toml:"retry"`
	Timeouts TimeoutConfig `yaml:"timeouts" toml:"timeouts"`
	// Watchers lists the registered watchers to instantiate, by name.
	Watchers []string `yaml:"watchers,omitempty" toml:"watchers"`
	// ParameterNameTemplate renders display names of parameterized tests.
	ParameterNameTemplate string `yaml:"parameterNameTemplate,omitempty" toml:"parameter_name_template"`
	// Parallel is the number of suites run concurrently; 0 or 1 runs them sequentially.
	Parallel int `yaml:"parallel,omitempty" toml:"parallel"`
}

// RetryConfig controls automatic retry of failing tests.
type RetryConfig struct {
	// MaxRetry is the number of additional attempts a failing test gets.
	MaxRetry int `yaml:"maxRetry" toml:"max_retry"`
	// Analyzers names the retry analyzers consulted for eligibility.
	Analyzers []string `yaml:"analyzers,omitempty" toml:"analyzers"`
}

// TimeoutConfig holds the configured timeout sources. A nil value is unset;
// an explicit zero disables timeout enforcement.
type TimeoutConfig struct {
	// RuleDefault applies as the rule timeout of classes that declare none.
	RuleDefault *Duration `yaml:"ruleDefault,omitempty" toml:"rule_default"`
	// TestDefault is the global default timeout of every test.
	TestDefault *Duration `yaml:"testDefault,omitempty" toml:"test_default"`
}

// Duration is a time.Duration written as "1m30s" in configuration files. A
// bare integer is read as milliseconds.
type Duration time.Duration

// NewDuration returns a pointer to d, for populating optional fields.
func NewDuration(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	parsed, err := parseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func parseDuration(s string) (Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(time.Duration(ms) * time.Millisecond), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return Duration(v), nil
}
