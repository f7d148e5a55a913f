// Package formatting renders report data for the CLI in console, JSON, YAML
// or table form.
package formatting

import (
	"fmt"
	"io"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
	FormatTable   OutputFormat = "table"   // Rich table output
)

// ParseFormat parses a format name, case-insensitively. An empty name is
// the console format.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatConsole, nil
	case FormatConsole, FormatJSON, FormatYAML, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use console, json, yaml or table)", s)
	}
}

// Structured reports whether the format is machine readable.
func (f OutputFormat) Structured() bool {
	return f == FormatJSON || f == FormatYAML
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
}

// Table is tabular data. Rows and Footer cells line up with Header.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer []string
}

// records returns the rows as header-keyed records, for structured formats.
func (t Table) records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				record[strings.ToLower(h)] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// Formatter renders data and tables in one output format
type Formatter interface {
	// FormatData writes arbitrary data
	FormatData(w io.Writer, data interface{}) error
	// FormatTable writes tabular data
	FormatTable(w io.Writer, t Table) error

	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates a new formatter factory
func NewFactory() Factory {
	return &factory{}
}

// factory implements the Factory interface
type factory struct{}

// CreateFormatter creates the appropriate formatter based on options
func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}
