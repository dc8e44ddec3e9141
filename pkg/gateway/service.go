// Package gateway routes artifact operations to the blob store configured
// for each resource kind. Packages are normalized on the way in: the upload
// is extracted into a scratch directory, re-packed into a fresh archive and
// stripped of directory entries before it is stored.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/internal/telemetry"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Operation labels used for spans and metrics.
const (
	OpStore  = "store"
	OpLookup = "lookup"
	OpDelete = "delete"
)

// Service is safe for concurrent use.
type Service struct {
	stores  map[Kind]blobstore.Client
	archive *Toolkit
	tempDir string
	logger  *slog.Logger
	metrics Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics reports every operation to m.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTempDir sets the parent of scratch directories used for package
// normalization. The default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Service) { s.tempDir = dir }
}

// NewService returns a gateway over stores. Every kind in Kinds must have
// a client.
func NewService(stores map[Kind]blobstore.Client, tk *Toolkit, log *slog.Logger, opts ...Option) (*Service, error) {
	for _, k := range Kinds {
		if stores[k] == nil {
			return nil, fmt.Errorf("no blob store configured for %s", k)
		}
	}
	if tk == nil {
		return nil, fmt.Errorf("archive toolkit is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		stores:  stores,
		archive: tk,
		logger:  log.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Client returns the blob store client behind kind.
func (s *Service) Client(kind Kind) (blobstore.Client, error) {
	c, ok := s.stores[kind]
	if !ok {
		return nil, bitserrors.NewInvalidArgumentError("unknown resource kind " + string(kind))
	}
	return c, nil
}

// Store copies the file at localPath into kind's store under key. The file
// at localPath is left in place; removing it is the caller's job.
func (s *Service) Store(ctx context.Context, kind Kind, localPath, key string) (h *blobstore.Handle, err error) {
	ctx, span := telemetry.StartGatewaySpan(ctx, telemetry.SpanGatewayStore, string(kind), key)
	defer span.End()
	defer s.observe(ctx, kind, OpStore, time.Now(), &err)

	client, err := s.Client(kind)
	if err != nil {
		return nil, err
	}

	source := localPath
	if kind.Normalized() {
		normalized, cleanup, err := s.normalizePackage(ctx, localPath)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		source = normalized
	}

	h, err = client.CopyToBlobstore(ctx, source, key)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(telemetry.Size(h.Size))
	s.logger.InfoContext(ctx, "stored blob", logger.Resource(string(kind)), logger.Key(key), logger.Size(h.Size))
	return h, nil
}

// Lookup resolves key in kind's store.
func (s *Service) Lookup(ctx context.Context, kind Kind, key string) (h *blobstore.Handle, err error) {
	ctx, span := telemetry.StartGatewaySpan(ctx, telemetry.SpanGatewayLookup, string(kind), key)
	defer span.End()
	defer s.observe(ctx, kind, OpLookup, time.Now(), &err)

	client, err := s.Client(kind)
	if err != nil {
		return nil, err
	}
	return client.Blob(ctx, key)
}

// Delete removes key from kind's store. It returns NotFound when there is
// nothing to remove.
func (s *Service) Delete(ctx context.Context, kind Kind, key string) (err error) {
	ctx, span := telemetry.StartGatewaySpan(ctx, telemetry.SpanGatewayDelete, string(kind), key)
	defer span.End()
	defer s.observe(ctx, kind, OpDelete, time.Now(), &err)

	client, err := s.Client(kind)
	if err != nil {
		return err
	}
	h, err := client.Blob(ctx, key)
	if err != nil {
		return err
	}
	if err := client.DeleteBlob(ctx, h); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "deleted blob", logger.Resource(string(kind)), logger.Key(key))
	return nil
}

// normalizePackage rewrites the upload at localPath into a fresh archive
// without directory entries. cleanup removes the rewritten archive.
func (s *Service) normalizePackage(ctx context.Context, localPath string) (path string, cleanup func(), err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveNormalization(time.Since(start), err)
		}
	}()

	extractDir, err := os.MkdirTemp(s.tempDir, "bitsgate-package-")
	if err != nil {
		return "", nil, bitserrors.NewStorageError(s.tempDir, "cannot create scratch directory", err)
	}
	defer s.removeAll(ctx, extractDir)

	xctx, xspan := telemetry.StartArchiveSpan(ctx, telemetry.SpanArchiveExtract, localPath)
	err = s.archive.Extractor.Extract(xctx, localPath, extractDir)
	telemetry.RecordError(xctx, err)
	xspan.End()
	if err != nil {
		return "", nil, err
	}

	outDir, err := os.MkdirTemp(s.tempDir, "bitsgate-repack-")
	if err != nil {
		return "", nil, bitserrors.NewStorageError(s.tempDir, "cannot create scratch directory", err)
	}
	cleanup = func() { s.removeAll(ctx, outDir) }
	out := filepath.Join(outDir, "package.zip")

	actx, aspan := telemetry.StartArchiveSpan(ctx, telemetry.SpanArchiveAppend, out)
	err = s.archive.Builder.Append(actx, out, extractDir)
	telemetry.RecordError(actx, err)
	aspan.End()
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := os.Stat(out); err != nil {
		cleanup()
		return "", nil, bitserrors.NewInvalidArchiveError(localPath, "package has no extractable content", err)
	}

	sctx, sspan := telemetry.StartArchiveSpan(ctx, telemetry.SpanArchiveStrip, out)
	err = s.archive.Stripper.StripDirectoryEntries(sctx, out)
	telemetry.RecordError(sctx, err)
	sspan.End()
	if err != nil {
		cleanup()
		return "", nil, err
	}

	s.logger.DebugContext(ctx, "normalized package", logger.KeyArchive, localPath, logger.DurationMs(start))
	return out, cleanup, nil
}

func (s *Service) removeAll(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.WarnContext(ctx, "cannot remove scratch directory", "dir", dir, logger.Err(err))
	}
}

func (s *Service) observe(ctx context.Context, kind Kind, op string, start time.Time, errp *error) {
	err := *errp
	if err != nil {
		telemetry.RecordError(ctx, err)
		telemetry.SetAttributes(ctx, telemetry.ErrorCode(bitserrors.CodeOf(err).String()))
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(string(kind), op, time.Since(start), err)
	}
}
