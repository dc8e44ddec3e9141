package cmdutil

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bitsgate/internal/cli/output"
	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/config"
)

func TestPrintOutput(t *testing.T) {
	defer func(prev string) { Flags.Output = prev }(Flags.Output)

	table := output.NewTableData("Key", "Size")
	table.AddRow("abcd", "1KiB")

	Flags.Output = "table"
	var buf bytes.Buffer
	require.NoError(t, PrintOutput(&buf, table))
	assert.Contains(t, buf.String(), "abcd")

	Flags.Output = "xml"
	assert.Error(t, PrintOutput(&bytes.Buffer{}, table))
}

func TestNewLoggerLevel(t *testing.T) {
	defer func(prev bool) { Flags.Verbose = prev }(Flags.Verbose)

	var stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&stderr)

	Flags.Verbose = false
	NewLogger(cmd).Info("quiet")
	assert.Empty(t, stderr.String())

	Flags.Verbose = true
	NewLogger(cmd).Debug("loud")
	assert.Contains(t, stderr.String(), "loud")
}

func TestCodec(t *testing.T) {
	cfg := config.GetDefaultConfig()

	codec, err := Codec(cfg)
	require.NoError(t, err)
	assert.IsType(t, &archive.NativeCodec{}, codec)

	cfg.Archive.Codec = "rar"
	_, err = Codec(cfg)
	assert.Error(t, err)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	require.NoError(t, cmd.Flags().Set("config", t.TempDir()+"/missing.yaml"))

	_, err := LoadConfig(cmd)
	assert.ErrorContains(t, err, "configuration file not found")
}
