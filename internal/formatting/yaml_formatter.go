package formatting

import (
	"io"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter provides YAML output formatting. Data is converted through
// its JSON representation, so json struct tags apply.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatData writes data as YAML
func (f *YAMLFormatter) FormatData(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// FormatTable writes the rows as a YAML list of records
func (f *YAMLFormatter) FormatTable(w io.Writer, t Table) error {
	return f.FormatData(w, t.records())
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
