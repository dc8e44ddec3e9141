package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/marmos91/bitsgate/pkg/bufpool"
)

// maxLinkTargetSize caps how much of a symlink entry is read as its target.
const maxLinkTargetSize = 4096

// NativeCodec is an in-process Codec backed by klauspost/compress/zip.
type NativeCodec struct{}

// NewNativeCodec returns a NativeCodec.
func NewNativeCodec() *NativeCodec {
	return &NativeCodec{}
}

var _ Codec = (*NativeCodec)(nil)

// List returns the entries of the archive.
func (c *NativeCodec) List(ctx context.Context, archivePath string) ([]Entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := entryOf(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func entryOf(f *zip.File) (Entry, error) {
	mode := f.Mode()
	e := Entry{
		Name: f.Name,
		Mode: mode.Perm(),
		Size: int64(f.UncompressedSize64),
	}
	switch {
	case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
		e.Kind = EntryDirectory
	case mode&fs.ModeSymlink != 0:
		e.Kind = EntrySymlink
		target, err := readLinkTarget(f)
		if err != nil {
			return Entry{}, fmt.Errorf("read symlink %q: %w", f.Name, err)
		}
		e.LinkTarget = target
	default:
		e.Kind = EntryFile
	}
	return e, nil
}

func readLinkTarget(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(io.LimitReader(rc, maxLinkTargetSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unpack extracts every entry beneath destRoot.
//
// Each entry's parent is resolved physically before anything is written, so
// a symlink created by an earlier entry cannot redirect a later one outside
// the root. Files that already exist are left untouched.
func (c *NativeCodec) Unpack(ctx context.Context, archivePath, destRoot string) error {
	root, err := canonicalRoot(destRoot)
	if err != nil {
		return err
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := unpackEntry(root, f); err != nil {
			return err
		}
	}
	return nil
}

func unpackEntry(root string, f *zip.File) error {
	name, err := cleanEntryName(f.Name)
	if err != nil {
		return err
	}
	if name == "." {
		return nil
	}

	e, err := entryOf(f)
	if err != nil {
		return err
	}

	parent, err := resolveInside(root, filepath.Dir(name))
	if err != nil {
		return err
	}
	target := filepath.Join(parent, filepath.Base(name))

	switch e.Kind {
	case EntryDirectory:
		dir, err := resolveInside(root, name)
		if err != nil {
			return err
		}
		return os.MkdirAll(dir, e.Mode|0o700)

	case EntrySymlink:
		if err := checkLinkTarget(name, e.LinkTarget); err != nil {
			return err
		}
		if _, err := resolveInside(root, filepath.Join(filepath.Dir(name), e.LinkTarget)); err != nil {
			return err
		}
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
		if err := os.Symlink(e.LinkTarget, target); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		return nil

	default:
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
		return writeEntry(target, f, e.Mode)
	}
}

// writeEntry creates path exclusively. An existing path is skipped.
func writeEntry(path string, f *zip.File, mode fs.FileMode) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return err
	}

	rc, err := f.Open()
	if err != nil {
		_ = out.Close()
		return err
	}
	defer func() { _ = rc.Close() }()

	if _, err := bufpool.CopySmall(out, io.LimitReader(rc, int64(f.UncompressedSize64))); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Append adds the tree under sourceDir to the archive. The result is written
// to a temporary file next to the archive and renamed over it.
func (c *NativeCodec) Append(ctx context.Context, archivePath, sourceDir string) error {
	headers, err := collectTree(sourceDir)
	if err != nil {
		return err
	}
	replaced := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		replaced[h.header.Name] = struct{}{}
	}

	return rewrite(archivePath, func(w *zip.Writer, existing []*zip.File) error {
		for _, f := range existing {
			if _, ok := replaced[f.Name]; ok {
				continue
			}
			if err := w.Copy(f); err != nil {
				return err
			}
		}
		for _, h := range headers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := h.write(w); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the named entries. Names are matched exactly.
func (c *NativeCodec) Delete(ctx context.Context, archivePath string, names []string) error {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	return rewrite(archivePath, func(w *zip.Writer, existing []*zip.File) error {
		matched := 0
		for _, f := range existing {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, ok := drop[f.Name]; ok {
				matched++
				continue
			}
			if err := w.Copy(f); err != nil {
				return err
			}
		}
		if matched == 0 && len(names) > 0 {
			return ErrNothingToDelete
		}
		return nil
	})
}

// rewrite streams a new version of archivePath through fn and renames it
// into place. A missing archive is treated as empty.
func rewrite(archivePath string, fn func(w *zip.Writer, existing []*zip.File) error) error {
	var existing []*zip.File
	r, err := zip.OpenReader(archivePath)
	switch {
	case err == nil:
		defer func() { _ = r.Close() }()
		existing = r.File
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".bitsgate-zip-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := zip.NewWriter(tmp)
	if err := fn(w, existing); err != nil {
		_ = w.Close()
		_ = tmp.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, archivePath)
}

type treeEntry struct {
	header *zip.FileHeader
	path   string
	link   string
}

func (t treeEntry) write(w *zip.Writer) error {
	out, err := w.CreateHeader(t.header)
	if err != nil {
		return err
	}
	switch {
	case t.link != "":
		_, err = io.WriteString(out, t.link)
		return err
	case t.header.Mode().IsDir():
		return nil
	}
	in, err := os.Open(t.path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	_, err = bufpool.CopySmall(out, in)
	return err
}

// collectTree builds zip headers for everything under dir, names relative to
// dir. Symlinks are recorded as links, never followed.
func collectTree(dir string) ([]treeEntry, error) {
	var out []treeEntry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		h, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		h.Name = filepath.ToSlash(rel)

		te := treeEntry{header: h, path: p}
		switch {
		case d.IsDir():
			h.Name += "/"
			h.Method = zip.Store
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			te.link = target
			h.Method = zip.Store
		default:
			h.Method = zip.Deflate
		}
		out = append(out, te)
		return nil
	})
	return out, err
}
