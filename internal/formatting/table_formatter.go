package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatData formats generic data using table logic
func (f *TableFormatter) FormatData(w io.Writer, data interface{}) error {
	switch d := data.(type) {
	case map[string]interface{}:
		return f.formatObjectData(w, d)
	case string:
		_, err := fmt.Fprintln(w, d)
		return err
	default:
		_, err := fmt.Fprintln(w, PrettyJSON(d))
		return err
	}
}

// FormatTable renders t with rounded borders
func (f *TableFormatter) FormatTable(w io.Writer, t Table) error {
	if len(t.Rows) == 0 {
		_, err := fmt.Fprint(w, f.formatEmptyMessage("📋", "No entries found"))
		return err
	}

	tw := f.createTable(w)
	if t.Title != "" && !f.options.Quiet {
		tw.SetTitle(t.Title)
	}
	tw.AppendHeader(f.row(t.Header, f.header))
	for _, r := range t.Rows {
		tw.AppendRow(f.row(r, nil))
	}
	if len(t.Footer) > 0 {
		tw.AppendFooter(f.row(t.Footer, nil))
	}
	tw.Render()
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	if !f.options.Color {
		return s
	}
	return text.FgHiCyan.Sprint(s)
}

func (f *TableFormatter) row(cells []string, style func(string) string) table.Row {
	row := make(table.Row, 0, len(cells))
	for _, c := range cells {
		if style != nil {
			c = style(c)
		}
		row = append(row, c)
	}
	return row
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	if !f.options.Color {
		return fmt.Sprintf("%s %s\n", icon, message)
	}
	return fmt.Sprintf("%s %s\n", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
}

// formatObjectData formats object data as key-value pairs
func (f *TableFormatter) formatObjectData(w io.Writer, data map[string]interface{}) error {
	t := f.createTable(w)
	t.AppendHeader(table.Row{f.header("KEY"), f.header("VALUE")})
	t.SortBy([]table.SortBy{{Number: 1, Mode: table.Asc}})

	for key, value := range data {
		t.AppendRow(table.Row{key, Truncate(fmt.Sprintf("%v", value), 100)})
	}

	t.Render()
	return nil
}
