package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  yaml  ", want: FormatYAML},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type blobInfo struct {
	Key  string `json:"key" yaml:"key"`
	Size int64  `json:"size" yaml:"size"`
}

func TestPrint(t *testing.T) {
	data := blobInfo{Key: "abcd", Size: 1024}

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatJSON, data))
		assert.Contains(t, buf.String(), `"key": "abcd"`)
		assert.Contains(t, buf.String(), `"size": 1024`)
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatYAML, data))
		assert.Equal(t, "key: abcd\nsize: 1024\n", buf.String())
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatTable, data))
		assert.Contains(t, buf.String(), `"key": "abcd"`)
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.Error(t, Print(&bytes.Buffer{}, Format("xml"), data))
	})
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Name", "Kind", "Size")
	table.AddRow("app/Procfile", "file", "12B")
	table.AddRow("app/lib/", "directory", "0B")

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, table))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "app/Procfile")
	assert.Contains(t, out, "directory")
	assert.Len(t, table.Rows(), 2)
}
