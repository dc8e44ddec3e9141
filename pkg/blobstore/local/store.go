// Package local implements a blob store on the local filesystem.
//
// Blobs live at <root>/<container>/<partitioned key>, for example
// /var/vcap/store/buildpacks/ab/cd/abcdef. Writes go to a temporary file in
// the destination directory and are renamed into place, so readers never
// see a partial blob and the last writer wins.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/bufpool"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Config holds configuration for the local store.
type Config struct {
	// Root is the directory containing all containers.
	Root string

	// Container is the directory name under Root holding the blobs.
	Container string

	// CreateRoot creates Root if it doesn't exist.
	CreateRoot bool

	// DirMode is the permission mode for created directories.
	DirMode os.FileMode

	// FileMode is the permission mode for stored blobs.
	FileMode os.FileMode
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(root, container string) Config {
	return Config{
		Root:       root,
		Container:  container,
		CreateRoot: true,
		DirMode:    0o755,
		FileMode:   0o644,
	}
}

// Store is a blobstore.Client backed by a directory tree.
type Store struct {
	root      string
	config    Config
	container *blobstore.IdempotentContainer
	logger    *slog.Logger
}

var (
	_ blobstore.Client           = (*Store)(nil)
	_ blobstore.ContainerBackend = (*Store)(nil)
)

// New creates a local store. The container directory is created lazily on
// the first write.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("local store: root is required")
	}
	if err := blobstore.ValidateKey(cfg.Container); err != nil {
		return nil, fmt.Errorf("local store: invalid container name %q: %w", cfg.Container, err)
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	if cfg.CreateRoot {
		if err := os.MkdirAll(root, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("local store: create root: %w", err)
		}
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("local store: root %s is not a directory", root)
	}

	s := &Store{root: root, config: cfg, logger: logger}
	s.container = blobstore.NewIdempotentContainer(cfg.Container, s, logger)
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) containerDir() string {
	return filepath.Join(s.root, s.config.Container)
}

func (s *Store) blobPath(key string) string {
	return blobPathIn(s.containerDir(), key)
}

func blobPathIn(dir, key string) string {
	return filepath.Join(dir, filepath.FromSlash(blobstore.PartitionedPath(key)))
}

// Local always returns true.
func (s *Store) Local() bool {
	return true
}

// Blob returns a handle for key, or a NotFound error.
func (s *Store) Blob(ctx context.Context, key string) (*blobstore.Handle, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, err
	}
	path := s.blobPath(key)
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bitserrors.NewNotFoundError(key)
		}
		return nil, bitserrors.NewStorageError(path, "stat blob", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, bitserrors.NewNotFoundError(key)
	}
	return &blobstore.Handle{Key: key, Size: fi.Size(), LocalPath: path}, nil
}

// CopyToBlobstore copies localPath into the store under key.
func (s *Store) CopyToBlobstore(ctx context.Context, localPath, key string) (*blobstore.Handle, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, err
	}
	src, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bitserrors.NewInvalidArgumentError(fmt.Sprintf("source file %s does not exist", localPath))
		}
		return nil, bitserrors.NewStorageError(localPath, "open source", err)
	}
	defer func() { _ = src.Close() }()

	cont, err := s.container.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	path := blobPathIn(cont.Location, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.config.DirMode); err != nil {
		return nil, classify(dir, "create blob directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key+".tmp-*")
	if err != nil {
		return nil, classify(dir, "create temp file", err)
	}
	tmpPath := tmp.Name()

	n, err := bufpool.Copy(tmp, src)
	if err == nil {
		err = tmp.Chmod(s.config.FileMode)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, classify(path, "write blob", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, classify(path, "rename blob", err)
	}

	s.logger.Debug("stored blob", "container", s.config.Container, "key", key, "size", n)
	return &blobstore.Handle{Key: key, Size: n, LocalPath: path}, nil
}

// DeleteBlob removes the blob and any partition directories left empty.
func (s *Store) DeleteBlob(ctx context.Context, h *blobstore.Handle) error {
	if h == nil {
		return bitserrors.NewInvalidArgumentError("nil blob handle")
	}
	if err := blobstore.ValidateKey(h.Key); err != nil {
		return err
	}
	cont, err := s.container.GetOrCreate(ctx)
	if err != nil {
		return err
	}

	path := blobPathIn(cont.Location, h.Key)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return bitserrors.NewStorageError(path, "delete blob", err)
	}
	cleanEmptyDirs(cont.Location, filepath.Dir(path))
	return nil
}

// cleanEmptyDirs removes empty partition directories up to top.
func cleanEmptyDirs(top, dir string) {
	for dir != top && strings.HasPrefix(dir, top) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

// GetContainer implements blobstore.ContainerBackend.
func (s *Store) GetContainer(ctx context.Context, name string) (*blobstore.Container, error) {
	dir := filepath.Join(s.root, name)
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("container path %s is not a directory", dir)
	}
	return &blobstore.Container{Name: name, Location: dir}, nil
}

// CreateContainer implements blobstore.ContainerBackend.
func (s *Store) CreateContainer(ctx context.Context, name string) (*blobstore.Container, error) {
	dir := filepath.Join(s.root, name)
	if err := os.Mkdir(dir, s.config.DirMode); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, bitserrors.NewAlreadyExistsError(name, err)
		}
		return nil, classify(dir, "create container", err)
	}
	return &blobstore.Container{Name: name, Location: dir}, nil
}

// classify maps ENOSPC and EDQUOT to NoSpace and everything else to
// StorageFailure.
func classify(path, msg string, err error) error {
	if errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EDQUOT) {
		return bitserrors.NewNoSpaceError(path, err)
	}
	return bitserrors.NewStorageError(path, msg, err)
}
