package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Extractor unpacks untrusted archives into a caller-owned directory.
type Extractor struct {
	codec  Codec
	logger *slog.Logger
}

// NewExtractor returns an Extractor. A nil logger discards output.
func NewExtractor(codec Codec, logger *slog.Logger) *Extractor {
	return &Extractor{codec: codec, logger: orDiscard(logger)}
}

// Extract unpacks archivePath beneath destRoot.
//
// destRoot must already exist. Nothing is ever written outside it: names,
// parent directories and symlink targets that escape, lexically or through
// symlinks already under destRoot, are rejected before unpacking. A symlink
// created by the archive that escapes once the tree is on disk is removed
// and the call fails. Symlinks the caller placed under destRoot are kept.
// Existing files are never overwritten. On success every file under destRoot
// is owner read/write and every directory owner read/write/execute.
//
// All failures are InvalidArchive errors.
func (x *Extractor) Extract(ctx context.Context, archivePath, destRoot string) error {
	fi, err := os.Stat(destRoot)
	if err != nil || !fi.IsDir() {
		return bitserrors.NewInvalidArchiveError(destRoot, "destination does not exist", err)
	}
	root, err := canonicalRoot(destRoot)
	if err != nil {
		return bitserrors.NewInvalidArchiveError(destRoot, "destination does not exist", err)
	}

	entries, err := x.codec.List(ctx, archivePath)
	if err != nil {
		x.logger.Warn("cannot read archive", "archive", archivePath, "error", err)
		return invalidArchive(archivePath, "cannot read archive", err)
	}
	if len(entries) == 0 {
		return bitserrors.NewInvalidArchiveError(archivePath, "archive is empty", nil)
	}

	links, err := x.checkEntries(root, archivePath, entries)
	if err != nil {
		return err
	}

	if err := x.codec.Unpack(ctx, archivePath, root); err != nil {
		x.logger.Warn("unpack failed", "archive", archivePath, "error", err, "output", diagnostic(err))
		return invalidArchive(archivePath, "unpack failed", err)
	}

	// Directory modes restored by the codec may lock the owner out, so
	// permissions are fixed before the links are resolved.
	if err := normalizePermissions(root); err != nil {
		x.logger.Error("permission normalization failed", "root", root, "error", err)
		return invalidArchive(archivePath, "cannot normalize permissions", err)
	}

	if err := removeEscapingLinks(root, links); err != nil {
		x.logger.Warn("archive produced an escaping symlink", "archive", archivePath, "error", err)
		return invalidArchive(archivePath, "symlink escapes destination", err)
	}

	x.logger.Debug("archive extracted", "archive", archivePath, "entries", len(entries), "root", root)
	return nil
}

// checkEntries validates every entry against the names and against what
// already exists under root, before anything is written. It returns the
// symlinks the archive will create, leaving out names that already exist.
func (x *Extractor) checkEntries(root, archivePath string, entries []Entry) ([]string, error) {
	var links []string
	for _, e := range entries {
		name, err := cleanEntryName(e.Name)
		if err != nil {
			x.logger.Warn("rejecting archive entry", "archive", archivePath, "entry", e.Name, "error", err)
			return nil, invalidArchive(archivePath, "entry escapes destination", err)
		}
		if name == "." {
			continue
		}

		// A symlink already under root must not carry the entry outside.
		check := path.Dir(name)
		if e.Kind == EntryDirectory {
			check = name
		}
		if _, err := resolveInside(root, check); err != nil {
			x.logger.Warn("rejecting archive entry", "archive", archivePath, "entry", e.Name, "error", err)
			return nil, invalidArchive(archivePath, "entry escapes destination", err)
		}

		if e.Kind != EntrySymlink {
			continue
		}
		if err := checkLinkTarget(name, e.LinkTarget); err != nil {
			x.logger.Warn("rejecting archive symlink", "archive", archivePath, "entry", e.Name, "target", e.LinkTarget)
			return nil, invalidArchive(archivePath, "symlink escapes destination", err)
		}
		if _, err := resolveInside(root, path.Join(path.Dir(name), e.LinkTarget)); err != nil {
			x.logger.Warn("rejecting archive symlink", "archive", archivePath, "entry", e.Name, "target", e.LinkTarget)
			return nil, invalidArchive(archivePath, "symlink escapes destination", err)
		}
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(name))); os.IsNotExist(err) {
			links = append(links, name)
		}
	}
	return links, nil
}

// removeEscapingLinks resolves each of links, root-relative names of
// symlinks created by the archive, physically. Links that resolve outside
// root are removed. Every link is resolved before any is removed, and the
// first escape is reported.
func removeEscapingLinks(root string, links []string) error {
	var escaping []string
	var first error
	for _, name := range links {
		parent, err := resolveInside(root, path.Dir(name))
		if err != nil {
			// An escaping ancestor is itself one of links.
			if first == nil {
				first = fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		fi, err := os.Lstat(filepath.Join(parent, path.Base(name)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		if _, rerr := resolveInside(root, name); rerr != nil {
			escaping = append(escaping, filepath.Join(parent, path.Base(name)))
			if first == nil {
				first = fmt.Errorf("removed %s: %w", name, rerr)
			}
		}
	}
	for _, p := range escaping {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return first
}
