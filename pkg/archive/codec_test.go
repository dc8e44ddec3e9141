package archive

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

func TestSize(t *testing.T) {
	ctx := context.Background()
	codec := NewNativeCodec()

	t.Run("SumsEntries", func(t *testing.T) {
		archive := writeZip(t,
			fixture{name: "dir/", dir: true},
			fixture{name: "dir/a", body: strings.Repeat("a", 10)},
			fixture{name: "b", body: strings.Repeat("b", 20)},
			fixture{name: "c", body: strings.Repeat("c", 30)},
		)
		size, err := Size(ctx, codec, archive)
		require.NoError(t, err)
		assert.Equal(t, int64(60), size)
	})

	t.Run("SingleKilobyteEntry", func(t *testing.T) {
		archive := writeZip(t, fixture{name: "blob", body: strings.Repeat("x", 1024)})
		size, err := Size(ctx, codec, archive)
		require.NoError(t, err)
		assert.Equal(t, int64(1024), size)
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.zip")
		require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04broken"), 0o644))
		_, err := Size(ctx, codec, path)
		assert.True(t, bitserrors.IsInvalidArchive(err))
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Size(ctx, codec, filepath.Join(t.TempDir(), "none.zip"))
		assert.True(t, bitserrors.IsInvalidArchive(err))
	})
}

func TestNativeCodec_ListKinds(t *testing.T) {
	archive := writeZip(t,
		fixture{name: "d/", dir: true},
		fixture{name: "d/f", body: "abc", mode: 0o640},
		fixture{name: "l", link: "d/f"},
	)
	entries, err := NewNativeCodec().List(context.Background(), archive)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, EntryDirectory, entries[0].Kind)
	assert.Equal(t, EntryFile, entries[1].Kind)
	assert.Equal(t, os.FileMode(0o640), entries[1].Mode)
	assert.Equal(t, int64(3), entries[1].Size)
	assert.Equal(t, EntrySymlink, entries[2].Kind)
	assert.Equal(t, "d/f", entries[2].LinkTarget)
}

func TestCleanEntryName(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"a/b/c", "a/b/c", false},
		{"dir/", "dir", false},
		{"foo/../bar/cat", "bar/cat", false},
		{`win\style\path`, "win/style/path", false},
		{"../../escape", "", true},
		{"a/../../b", "", true},
		{"/abs", "", true},
		{`C:\evil`, "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanEntryName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInside(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.Symlink("..", filepath.Join(root, "a", "up")))
	require.NoError(t, os.Symlink("up/..", filepath.Join(root, "a", "escape")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))
	require.NoError(t, os.Symlink("/etc", filepath.Join(root, "abs")))

	got, err := resolveInside(root, "a/up/a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "b"), got)

	got, err = resolveInside(root, "a/new/file")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a", "new", "file"), got)

	_, err = resolveInside(root, "a/escape")
	assert.ErrorIs(t, err, ErrEscapesRoot)

	_, err = resolveInside(root, "loop/x")
	assert.ErrorIs(t, err, ErrTooManyLinks)

	_, err = resolveInside(root, "abs/passwd")
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}

func TestExecCodec(t *testing.T) {
	requireTools(t, "zip", "unzip")
	ctx := context.Background()
	codec := NewExecCodec()

	t.Run("AppendExtractRoundTrip", func(t *testing.T) {
		src := buildTree(t)
		archive := filepath.Join(t.TempDir(), "exec.zip")
		require.NoError(t, NewBuilder(codec, nil).Append(ctx, archive, src))

		names := entryNames(t, codec, archive)
		assert.Contains(t, names, "Procfile")
		assert.Contains(t, names, "lib/shortcut")

		dest := t.TempDir()
		require.NoError(t, NewExtractor(codec, nil).Extract(ctx, archive, dest))
		assert.Equal(t, "deep", readFile(t, filepath.Join(dest, "lib", "nested", "deep.txt")))
		target, err := os.Readlink(filepath.Join(dest, "lib", "shortcut"))
		require.NoError(t, err)
		assert.Equal(t, "nested/deep.txt", target)
	})

	t.Run("DeleteIsLiteral", func(t *testing.T) {
		archive := writeZip(t,
			fixture{name: "a*", body: "star"},
			fixture{name: "ab", body: "ab"},
		)
		require.NoError(t, codec.Delete(ctx, archive, []string{"a*"}))
		assert.Equal(t, []string{"ab"}, entryNames(t, codec, archive))
	})

	t.Run("FailureCarriesOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.zip")
		require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

		err := codec.Unpack(ctx, path, t.TempDir())
		var ce *CommandError
		require.ErrorAs(t, err, &ce)
		assert.NotZero(t, ce.ExitCode)
		assert.NotEmpty(t, ce.Output)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		c := NewExecCodec(WithUnzipBinary(filepath.Join(t.TempDir(), "no-unzip")))
		archive := writeZip(t, fixture{name: "a", body: "a"})
		err := NewExtractor(c, nil).Extract(ctx, archive, t.TempDir())
		assert.True(t, bitserrors.IsInvalidArchive(err))
	})
}
