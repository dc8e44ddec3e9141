package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	name string
	body string
	mode fs.FileMode
	link string
	dir  bool
}

// writeZip writes entries to a new archive under t.TempDir and returns its path.
func writeZip(t *testing.T, entries ...fixture) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for _, e := range entries {
		h := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		mode := e.mode
		switch {
		case e.dir:
			if mode == 0 {
				mode = 0o755
			}
			h.SetMode(fs.ModeDir | mode)
		case e.link != "":
			h.SetMode(fs.ModeSymlink | 0o777)
		default:
			if mode == 0 {
				mode = 0o644
			}
			h.SetMode(mode)
		}
		out, err := w.CreateHeader(h)
		require.NoError(t, err)
		content := e.body
		if e.link != "" {
			content = e.link
		}
		_, err = out.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

// nestedRoot returns an existing destination two levels below a fresh temp
// dir, so "../../x" lands in the returned base.
func nestedRoot(t *testing.T) (base, root string) {
	t.Helper()
	base = t.TempDir()
	root = filepath.Join(base, "x", "y")
	require.NoError(t, os.MkdirAll(root, 0o755))
	return base, root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
