package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

func buildTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Procfile"), []byte("web: ./run"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "nested", "deep.txt"), []byte("deep"), 0o600))
	require.NoError(t, os.Symlink("nested/deep.txt", filepath.Join(dir, "lib", "shortcut")))
	return dir
}

func entryNames(t *testing.T, codec Codec, archive string) []string {
	t.Helper()
	entries, err := codec.List(context.Background(), archive)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func TestBuilder_Append(t *testing.T) {
	ctx := context.Background()
	codec := NewNativeCodec()
	b := NewBuilder(codec, nil)

	t.Run("RoundTrip", func(t *testing.T) {
		src := buildTree(t)
		archive := filepath.Join(t.TempDir(), "out.zip")

		require.NoError(t, b.Append(ctx, archive, src))
		assert.Equal(t,
			[]string{"Procfile", "lib/", "lib/nested/", "lib/nested/deep.txt", "lib/shortcut"},
			entryNames(t, codec, archive))

		dest := t.TempDir()
		require.NoError(t, NewExtractor(codec, nil).Extract(ctx, archive, dest))
		assert.Equal(t, "web: ./run", readFile(t, filepath.Join(dest, "Procfile")))
		assert.Equal(t, "deep", readFile(t, filepath.Join(dest, "lib", "nested", "deep.txt")))

		target, err := os.Readlink(filepath.Join(dest, "lib", "shortcut"))
		require.NoError(t, err)
		assert.Equal(t, "nested/deep.txt", target)
	})

	t.Run("EmptySourceIsNoop", func(t *testing.T) {
		archive := filepath.Join(t.TempDir(), "out.zip")
		require.NoError(t, b.Append(ctx, archive, t.TempDir()))
		assert.NoFileExists(t, archive)
	})

	t.Run("ReplacesSameNamedEntries", func(t *testing.T) {
		archive := writeZip(t,
			fixture{name: "Procfile", body: "old"},
			fixture{name: "keep.txt", body: "keep"},
		)
		src := buildTree(t)

		require.NoError(t, b.Append(ctx, archive, src))
		names := entryNames(t, codec, archive)
		assert.Contains(t, names, "keep.txt")
		assert.Equal(t, 1, countOf(names, "Procfile"))

		dest := t.TempDir()
		require.NoError(t, NewExtractor(codec, nil).Extract(ctx, archive, dest))
		assert.Equal(t, "web: ./run", readFile(t, filepath.Join(dest, "Procfile")))
	})

	t.Run("MissingSourceIsPackageInvalid", func(t *testing.T) {
		err := b.Append(ctx, filepath.Join(t.TempDir(), "out.zip"), filepath.Join(t.TempDir(), "gone"))
		assert.True(t, bitserrors.IsPackageInvalid(err))
	})
}

func countOf(names []string, name string) int {
	n := 0
	for _, s := range names {
		if s == name {
			n++
		}
	}
	return n
}
