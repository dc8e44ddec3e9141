// Package remote implements a blob store on top of an object storage
// Provider. Handles carry download URLs instead of local paths.
//
// Provider-specific code (S3, the in-memory test provider) lives in
// subpackages; this package only maps keys and classifies errors.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// DefaultURLExpiry is the validity of presigned download URLs.
const DefaultURLExpiry = time.Hour

// Provider is the minimal object storage surface used by Store.
//
// Head returns a NotFound error when the object is missing. Delete of a
// missing object succeeds.
type Provider interface {
	blobstore.ContainerBackend

	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64) error
	Head(ctx context.Context, bucket, key string) (int64, error)
	Delete(ctx context.Context, bucket, key string) error

	// PresignGet returns a time-limited GET URL. When internal is true the
	// URL targets the provider's internal endpoint, if it has one.
	PresignGet(ctx context.Context, bucket, key string, expiry time.Duration, internal bool) (string, error)
}

// Config holds configuration for the remote store.
type Config struct {
	// Container is the bucket name.
	Container string

	// KeyPrefix is prepended to every object key. Should end with "/" if
	// non-empty.
	KeyPrefix string

	// URLExpiry is how long presigned URLs stay valid.
	URLExpiry time.Duration
}

// Store is a blobstore.Client backed by a Provider.
type Store struct {
	provider  Provider
	config    Config
	container *blobstore.IdempotentContainer
	logger    *slog.Logger
}

var (
	_ blobstore.Client    = (*Store)(nil)
	_ blobstore.URLSigner = (*Store)(nil)
)

// New creates a remote store. The bucket is created lazily on first write.
func New(provider Provider, cfg Config, logger *slog.Logger) (*Store, error) {
	if provider == nil {
		return nil, fmt.Errorf("remote store: provider is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("remote store: container is required")
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		provider:  provider,
		config:    cfg,
		container: blobstore.NewIdempotentContainer(cfg.Container, provider, logger),
		logger:    logger,
	}, nil
}

func (s *Store) objectKey(key string) string {
	return s.config.KeyPrefix + blobstore.PartitionedPath(key)
}

// Local always returns false.
func (s *Store) Local() bool {
	return false
}

// Blob returns a handle with fresh download URLs, or a NotFound error.
func (s *Store) Blob(ctx context.Context, key string) (*blobstore.Handle, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, err
	}
	size, err := s.provider.Head(ctx, s.config.Container, s.objectKey(key))
	if err != nil {
		if bitserrors.IsNotFound(err) {
			return nil, bitserrors.NewNotFoundError(key)
		}
		return nil, wrap(key, "head object", err)
	}
	return s.handle(ctx, key, size)
}

// CopyToBlobstore uploads localPath under key.
func (s *Store) CopyToBlobstore(ctx context.Context, localPath, key string) (*blobstore.Handle, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bitserrors.NewInvalidArgumentError(fmt.Sprintf("source file %s does not exist", localPath))
		}
		return nil, bitserrors.NewStorageError(localPath, "open source", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, bitserrors.NewStorageError(localPath, "stat source", err)
	}

	cont, err := s.container.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.provider.Put(ctx, cont.Location, s.objectKey(key), f, fi.Size()); err != nil {
		return nil, wrap(key, "put object", err)
	}

	s.logger.Debug("uploaded blob", "bucket", cont.Location, "key", key, "size", fi.Size())
	return s.handle(ctx, key, fi.Size())
}

// DeleteBlob removes the object behind h.
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
	if err := s.provider.Delete(ctx, cont.Location, s.objectKey(h.Key)); err != nil {
		return wrap(h.Key, "delete object", err)
	}
	return nil
}

// PublicDownloadURL returns a presigned URL reachable by clients.
func (s *Store) PublicDownloadURL(h *blobstore.Handle) string {
	return s.sign(context.Background(), h.Key, false)
}

// InternalDownloadURL returns a presigned URL for use inside the platform.
func (s *Store) InternalDownloadURL(h *blobstore.Handle) string {
	return s.sign(context.Background(), h.Key, true)
}

func (s *Store) sign(ctx context.Context, key string, internal bool) string {
	u, err := s.provider.PresignGet(ctx, s.config.Container, s.objectKey(key), s.config.URLExpiry, internal)
	if err != nil {
		s.logger.Error("presign failed", "key", key, "internal", internal, "error", err)
		return ""
	}
	return u
}

func (s *Store) handle(ctx context.Context, key string, size int64) (*blobstore.Handle, error) {
	pub, err := s.provider.PresignGet(ctx, s.config.Container, s.objectKey(key), s.config.URLExpiry, false)
	if err != nil {
		return nil, wrap(key, "presign public url", err)
	}
	internal, err := s.provider.PresignGet(ctx, s.config.Container, s.objectKey(key), s.config.URLExpiry, true)
	if err != nil {
		return nil, wrap(key, "presign internal url", err)
	}
	return &blobstore.Handle{Key: key, Size: size, PublicURL: pub, InternalURL: internal}, nil
}

// wrap keeps coded provider errors and marks the rest as StorageFailure.
func wrap(key, msg string, err error) error {
	if bitserrors.CodeOf(err) != 0 {
		return err
	}
	return bitserrors.NewStorageError(key, msg, err)
}
