// Package archive implements the zip processing used by the gateway:
// listing, safe extraction of untrusted uploads, re-packing a directory tree
// and stripping directory entries.
//
// All zip access goes through a Codec. Two implementations exist: an
// in-process codec built on klauspost/compress/zip and an exec codec that
// drives the system zip and unzip binaries. The Extractor applies the same
// containment checks whichever codec is used.
package archive

import (
	"context"
	"fmt"
	"io/fs"
)

// EntryKind classifies an archive entry.
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
	EntrySymlink
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDirectory:
		return "directory"
	case EntrySymlink:
		return "symlink"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry describes one member of a zip archive.
type Entry struct {
	// Name is the name as stored in the archive, slash separated.
	// Directory entries keep their trailing slash.
	Name string

	Kind EntryKind

	// Mode holds the permission bits recorded for the entry.
	Mode fs.FileMode

	// Size is the uncompressed size in bytes.
	Size int64

	// LinkTarget is set for symlink entries only.
	LinkTarget string
}

// Codec reads and mutates zip archives.
//
// Implementations must not interpret names passed to Delete as patterns, and
// Unpack must never overwrite a file that already exists in destRoot.
// Errors are returned raw; callers classify them.
type Codec interface {
	// List returns the entries of the archive in archive order.
	List(ctx context.Context, archivePath string) ([]Entry, error)

	// Unpack writes every entry beneath destRoot. Existing files win.
	Unpack(ctx context.Context, archivePath, destRoot string) error

	// Append adds the tree under sourceDir to the archive, creating the
	// archive if missing and replacing same-named entries.
	Append(ctx context.Context, archivePath, sourceDir string) error

	// Delete removes the named entries in a single invocation.
	Delete(ctx context.Context, archivePath string, names []string) error
}

// Size returns the sum of the uncompressed sizes of all entries.
func Size(ctx context.Context, codec Codec, archivePath string) (int64, error) {
	entries, err := codec.List(ctx, archivePath)
	if err != nil {
		return 0, invalidArchive(archivePath, "cannot read archive", err)
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total, nil
}
