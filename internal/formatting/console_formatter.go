package formatting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatData formats generic data (fallback to simple text representation)
func (f *ConsoleFormatter) FormatData(w io.Writer, data interface{}) error {
	var err error
	switch d := data.(type) {
	case string:
		_, err = fmt.Fprintln(w, d)
	case fmt.Stringer:
		_, err = fmt.Fprintln(w, d.String())
	default:
		_, err = fmt.Fprintln(w, PrettyJSON(d))
	}
	return err
}

// FormatTable writes the table as aligned plain-text columns
func (f *ConsoleFormatter) FormatTable(w io.Writer, t Table) error {
	if t.Title != "" && !f.options.Quiet {
		if _, err := fmt.Fprintln(w, t.Title); err != nil {
			return err
		}
	}
	if len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No entries.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if len(t.Footer) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Footer, "\t"))
	}
	return tw.Flush()
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}
