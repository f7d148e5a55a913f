package config

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks settings for values the engine cannot work with. All
// problems are reported together.
func Validate(s Settings) error {
	var errs ValidationErrors

	if s.Retry.MaxRetry < 0 {
		errs.Add("retry.maxRetry", "must not be negative", s.Retry.MaxRetry)
	}
	for i, name := range s.Retry.Analyzers {
		if strings.TrimSpace(name) == "" {
			errs.Add(fmt.Sprintf("retry.analyzers[%d]", i), "must not be empty")
		}
	}
	if d := s.Timeouts.RuleDefault; d != nil && *d < 0 {
		errs.Add("timeouts.ruleDefault", "must not be negative", d.String())
	}
	if d := s.Timeouts.TestDefault; d != nil && *d < 0 {
		errs.Add("timeouts.testDefault", "must not be negative", d.String())
	}
	for i, name := range s.Watchers {
		if strings.TrimSpace(name) == "" {
			errs.Add(fmt.Sprintf("watchers[%d]", i), "must not be empty")
		}
	}
	if s.Parallel < 0 {
		errs.Add("parallel", "must not be negative", s.Parallel)
	}
	if s.ParameterNameTemplate != "" {
		if _, err := template.New("name").Funcs(sprig.TxtFuncMap()).Parse(s.ParameterNameTemplate); err != nil {
			errs.Add("parameterNameTemplate", err.Error(), s.ParameterNameTemplate)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
