package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/bufpool"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// Gateway is the subset of gateway.Service the resource handlers call.
type Gateway interface {
	Store(ctx context.Context, kind gateway.Kind, localPath, key string) (*blobstore.Handle, error)
	Lookup(ctx context.Context, kind gateway.Kind, key string) (*blobstore.Handle, error)
	Delete(ctx context.Context, kind gateway.Kind, key string) error
}

// NginxOptions control X-Accel-Redirect downloads for local stores.
//
// Roots maps each kind to the directory nginx serves under InternalPrefix.
// The redirect target is InternalPrefix followed by the blob path relative
// to that root.
type NginxOptions struct {
	Enabled        bool
	InternalPrefix string
	Roots          map[gateway.Kind]string
}

// ResourceOptions configure a ResourceHandler.
type ResourceOptions struct {
	Production  bool
	MaxBodySize int64
	TempDir     string
	Nginx       NginxOptions
}

// ResourceHandler serves PUT, GET and DELETE for one resource kind.
type ResourceHandler struct {
	kind   gateway.Kind
	gw     Gateway
	opts   ResourceOptions
	logger *slog.Logger
}

// NewResourceHandler creates a handler for kind.
func NewResourceHandler(kind gateway.Kind, gw Gateway, opts ResourceOptions, log *slog.Logger) *ResourceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ResourceHandler{
		kind:   kind,
		gw:     gw,
		opts:   opts,
		logger: log.With(logger.KeyResource, string(kind)),
	}
}

// Put handles PUT /{kind}/{guid}.
//
// The upload is read from the multipart field named after the singular
// kind and spooled to a temp file, which is removed on every path.
func (h *ResourceHandler) Put(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")

	if h.opts.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodySize)
	}

	uploadPath, err := h.spoolUpload(r)
	if uploadPath != "" {
		defer func() {
			if rmErr := os.Remove(uploadPath); rmErr != nil && !os.IsNotExist(rmErr) {
				h.logger.WarnContext(r.Context(), "failed to remove upload", logger.KeyArchive, uploadPath, logger.Err(rmErr))
			}
		}()
	}
	if err != nil {
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}

	if _, err := h.gw.Store(r.Context(), h.kind, uploadPath, guid); err != nil {
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// spoolUpload copies the upload part to a temp file and returns its path.
// A non-empty path is returned whenever a file was created.
func (h *ResourceHandler) spoolUpload(r *http.Request) (string, error) {
	missing := bitserrors.NewInvalidArgumentError("a file must be provided")

	mr, err := r.MultipartReader()
	if err != nil {
		return "", missing
	}

	field := h.kind.FormField()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", missing
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return "", err
			}
			return "", missing
		}
		if part.FormName() != field || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		return h.copyPart(part)
	}
}

func (h *ResourceHandler) copyPart(part *multipart.Part) (string, error) {
	defer func() { _ = part.Close() }()

	f, err := os.CreateTemp(h.opts.TempDir, "bitsgate-upload-*")
	if err != nil {
		return "", bitserrors.NewStorageError(h.opts.TempDir, "failed to create upload file", err)
	}

	_, err = bufpool.Copy(f, part)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return f.Name(), err
		}
		return f.Name(), bitserrors.NewStorageError(f.Name(), "failed to receive upload", err)
	}
	return f.Name(), nil
}

// Get handles GET /{kind}/{guid}.
//
// Local blobs are sent inline or, behind nginx, as an X-Accel-Redirect.
// Remote blobs redirect to their public URL.
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")

	blob, err := h.gw.Lookup(r.Context(), h.kind, guid)
	if err != nil {
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}

	if blob.LocalPath == "" {
		http.Redirect(w, r, blob.PublicURL, http.StatusFound)
		return
	}

	if h.opts.Nginx.Enabled {
		target, err := h.internalPath(blob)
		if err != nil {
			writeError(w, r, h.logger, h.opts.Production, err)
			return
		}
		w.Header().Set("X-Accel-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := os.Open(blob.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = bitserrors.NewNotFoundError(guid)
		} else {
			err = bitserrors.NewStorageError(blob.LocalPath, "failed to open blob", err)
		}
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, h.logger, h.opts.Production, bitserrors.NewStorageError(blob.LocalPath, "failed to stat blob", err))
		return
	}

	// Blobs are always sent whole; Range headers are ignored.
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := bufpool.Copy(w, f); err != nil {
		h.logger.WarnContext(r.Context(), "blob download interrupted", logger.KeyKey, guid, logger.Err(err))
	}
}

func (h *ResourceHandler) internalPath(blob *blobstore.Handle) (string, error) {
	root, ok := h.opts.Nginx.Roots[h.kind]
	if !ok {
		return "", bitserrors.NewStorageError(string(h.kind), "no nginx root configured", nil)
	}
	rel, err := filepath.Rel(root, blob.LocalPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", bitserrors.NewStorageError(blob.LocalPath, "blob is outside the nginx root", err)
	}
	return path.Join("/", h.opts.Nginx.InternalPrefix, filepath.ToSlash(rel)), nil
}

// Delete handles DELETE /{kind}/{guid}.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")

	if err := h.gw.Delete(r.Context(), h.kind, guid); err != nil {
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
