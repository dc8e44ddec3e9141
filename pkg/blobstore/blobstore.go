// Package blobstore defines the storage capability shared by every backend.
//
// A Client stores opaque blobs under caller-chosen keys inside one
// container. The local driver (package local) keeps blobs on disk and hands
// out file paths; the remote driver (package remote) keeps them in an object
// store and hands out download URLs. Callers branch on Local() only.
package blobstore

import (
	"context"
	"strings"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Handle is a resolved reference to a stored blob.
//
// Handles from the local driver set LocalPath. Handles from the remote
// driver set PublicURL and InternalURL. No handle sets both.
type Handle struct {
	Key  string
	Size int64

	LocalPath string

	PublicURL   string
	InternalURL string
}

// Client is the capability surface of a blob store.
type Client interface {
	// Blob resolves key to a handle. It returns a NotFound error when no
	// blob is stored under key.
	Blob(ctx context.Context, key string) (*Handle, error)

	// CopyToBlobstore stores the file at localPath under key, replacing any
	// previous blob. The source file is not modified or removed.
	CopyToBlobstore(ctx context.Context, localPath, key string) (*Handle, error)

	// DeleteBlob removes the blob behind h. Deleting a blob that is already
	// gone is not an error.
	DeleteBlob(ctx context.Context, h *Handle) error

	// Local reports whether handles carry a local path.
	Local() bool
}

// URLSigner is implemented by remote clients only.
type URLSigner interface {
	PublicDownloadURL(h *Handle) string
	InternalDownloadURL(h *Handle) string
}

// ValidateKey rejects keys that cannot be mapped to a single path component.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return bitserrors.NewInvalidArgumentError("blob key must not be empty")
	case strings.HasPrefix(key, "."):
		return bitserrors.NewInvalidArgumentError("blob key must not start with '.'")
	case strings.ContainsAny(key, "/\\\x00"):
		return bitserrors.NewInvalidArgumentError("blob key contains a path separator or NUL")
	}
	return nil
}

// PartitionedPath maps a key to its slash separated storage path:
// "abcdef" becomes "ab/cd/abcdef", "abc" becomes "ab/c/abc", "ab" becomes
// "ab/_/ab" and "a" becomes "a/_/a". Every key sits two directories deep and
// is the last component, so distinct keys never share a path and no key's
// file is ever another key's directory.
func PartitionedPath(key string) string {
	switch {
	case len(key) >= 4:
		return key[0:2] + "/" + key[2:4] + "/" + key
	case len(key) == 3:
		return key[0:2] + "/" + key[2:3] + "/" + key
	default:
		return key + "/_/" + key
	}
}
