package formatting

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Table{
	Title:  "Results",
	Header: []string{"Name", "Result"},
	Rows: [][]string{
		{"checkout", "PASSED"},
		{"refund", "FAILED"},
	},
	Footer: []string{"Total", "2"},
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{
		"":        FormatConsole,
		"JSON":    FormatJSON,
		" yaml ":  FormatYAML,
		"table":   FormatTable,
		"console": FormatConsole,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.True(t, FormatYAML.Structured())
	assert.False(t, FormatTable.Structured())
}

func TestJSONFormatter_FormatTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory().CreateFormatter(Options{Format: FormatJSON})
	require.NoError(t, f.FormatTable(&buf, sample))

	var records []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	assert.Equal(t, []map[string]string{
		{"name": "checkout", "result": "PASSED"},
		{"name": "refund", "result": "FAILED"},
	}, records)
}

func TestYAMLFormatter_UsesJSONTags(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory().CreateFormatter(Options{Format: FormatYAML})
	data := struct {
		RunID string `json:"run_id"`
	}{RunID: "abc"}
	require.NoError(t, f.FormatData(&buf, data))
	assert.Equal(t, "run_id: abc\n", buf.String())
}

func TestConsoleFormatter_FormatTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory().CreateFormatter(Options{Format: FormatConsole})
	require.NoError(t, f.FormatTable(&buf, sample))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Results", lines[0])
	assert.Equal(t, "Name      Result", lines[1])
	assert.Equal(t, "checkout  PASSED", lines[2])
}

func TestTableFormatter_FormatTable(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory().CreateFormatter(Options{Format: FormatTable})
	require.NoError(t, f.FormatTable(&buf, sample))

	out := buf.String()
	assert.Contains(t, out, "checkout")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "╭")

	buf.Reset()
	require.NoError(t, f.FormatTable(&buf, Table{Header: []string{"Name"}}))
	assert.Equal(t, "📋 No entries found\n", buf.String())
}
