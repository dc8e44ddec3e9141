package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "bitsgate", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(Cmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func fixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	_, err = w.Create("app/")
	require.NoError(t, err)
	out, err := w.Create("app/Procfile")
	require.NoError(t, err)
	_, err = out.Write([]byte("web: bundle exec rackup"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLsJSON(t *testing.T) {
	out, err := run(t, "archive", "ls", fixture(t), "-o", "json")
	require.NoError(t, err)

	var entries []EntryView
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "app/", entries[0].Name)
	assert.Equal(t, "directory", entries[0].Kind)
	assert.Equal(t, int64(23), entries[1].Size)
}

func TestLsTable(t *testing.T) {
	out, err := run(t, "archive", "ls", fixture(t), "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "app/Procfile")
	assert.Contains(t, out, "23B")
}

func TestSize(t *testing.T) {
	path := fixture(t)

	out, err := run(t, "archive", "size", path, "--bytes")
	require.NoError(t, err)
	assert.Equal(t, "23\n", out)
}

func TestStripThenExtractAppend(t *testing.T) {
	path := fixture(t)

	_, err := run(t, "archive", "strip", path, "--batch-size", "1")
	require.NoError(t, err)

	out, err := run(t, "archive", "ls", path, "-o", "json")
	require.NoError(t, err)
	var entries []EntryView
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "app/Procfile", entries[0].Name)

	dest := t.TempDir()
	_, err = run(t, "archive", "extract", path, dest)
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dest, "app", "Procfile"))
	require.NoError(t, err)
	assert.Equal(t, "web: bundle exec rackup", string(b))

	rebuilt := filepath.Join(t.TempDir(), "rebuilt.zip")
	_, err = run(t, "archive", "append", rebuilt, dest)
	require.NoError(t, err)
	out, err = run(t, "archive", "size", rebuilt, "--bytes")
	require.NoError(t, err)
	assert.Equal(t, "23\n", out)
}

func TestExtractRejectsEscape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	out, err := w.Create("../../escape")
	require.NoError(t, err)
	_, err = out.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = run(t, "archive", "extract", path, t.TempDir())
	assert.Error(t, err)
}
