package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// DefaultSignedURLExpiry is how long a signed URL stays valid.
const DefaultSignedURLExpiry = time.Hour

// SignedPrefix is the route prefix under which signed URLs are served.
const SignedPrefix = "/signed"

// Signing verbs accepted by the sign route.
const (
	VerbGet = "get"
	VerbPut = "put"
)

// HMACSigner signs resource paths with HMAC-SHA256. A signed URL names the
// verb it grants, the resource path and a unix expiry; the signature covers
// all three.
type HMACSigner struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewHMACSigner creates a signer. A non-positive expiry uses
// DefaultSignedURLExpiry.
func NewHMACSigner(secret string, expiry time.Duration) *HMACSigner {
	if expiry <= 0 {
		expiry = DefaultSignedURLExpiry
	}
	return &HMACSigner{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// SignPath returns the signed path and query for resourcePath, for example
// "/signed/packages/abc?expires=1700000000&signature=...".
func (s *HMACSigner) SignPath(verb, resourcePath string) string {
	expires := s.now().Add(s.expiry).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.mac(verb, resourcePath, expires))
	return SignedPrefix + resourcePath + "?" + q.Encode()
}

// Verify checks a signature produced by SignPath.
func (s *HMACSigner) Verify(verb, resourcePath, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return bitserrors.NewSignatureInvalidError("signed URL has no valid expiry")
	}
	if !hmac.Equal([]byte(signature), []byte(s.mac(verb, resourcePath, exp))) {
		return bitserrors.NewSignatureInvalidError("signature does not match")
	}
	if s.now().Unix() > exp {
		return bitserrors.NewSignatureInvalidError("signed URL expired")
	}
	return nil
}

func (s *HMACSigner) mac(verb, resourcePath string, expires int64) string {
	m := hmac.New(sha256.New, s.secret)
	_, _ = io.WriteString(m, verb+"\n"+resourcePath+"\n"+strconv.FormatInt(expires, 10))
	return hex.EncodeToString(m.Sum(nil))
}

// SignOptions configure a SignHandler.
type SignOptions struct {
	Production bool

	// PublicEndpoint is the externally reachable base URL of the gateway.
	// When empty the request's own host is used.
	PublicEndpoint string
}

// SignHandler issues signed URLs for one resource kind and guards the
// routes they point at.
type SignHandler struct {
	kind   gateway.Kind
	signer *HMACSigner
	opts   SignOptions
	logger *slog.Logger
}

// NewSignHandler creates a sign handler for kind.
func NewSignHandler(kind gateway.Kind, signer *HMACSigner, opts SignOptions, log *slog.Logger) *SignHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SignHandler{
		kind:   kind,
		signer: signer,
		opts:   opts,
		logger: log.With(logger.KeyResource, string(kind)),
	}
}

// Sign handles GET /sign/{kind}/{guid}?verb=get|put and writes the signed
// URL as plain text. The verb defaults to get.
func (h *SignHandler) Sign(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "guid")
	if err := blobstore.ValidateKey(guid); err != nil {
		writeError(w, r, h.logger, h.opts.Production, err)
		return
	}

	verb := strings.ToLower(r.URL.Query().Get("verb"))
	if verb == "" {
		verb = VerbGet
	}
	if verb != VerbGet && verb != VerbPut {
		writeError(w, r, h.logger, h.opts.Production, bitserrors.NewInvalidArgumentError("verb must be get or put"))
		return
	}

	signed := h.baseURL(r) + h.signer.SignPath(verb, h.resourcePath(guid))
	h.logger.DebugContext(r.Context(), "signed URL issued", logger.KeyKey, guid, logger.KeyMethod, verb)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, signed)
}

// Verify wraps next so that it only runs for requests carrying a valid
// signature for the request's verb and resource.
func (h *SignHandler) Verify(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		verb := strings.ToLower(r.Method)
		err := h.signer.Verify(verb, h.resourcePath(chi.URLParam(r, "guid")), q.Get("expires"), q.Get("signature"))
		if err != nil {
			writeError(w, r, h.logger, h.opts.Production, err)
			return
		}
		next(w, r)
	}
}

func (h *SignHandler) resourcePath(guid string) string {
	return "/" + string(h.kind) + "/" + guid
}

func (h *SignHandler) baseURL(r *http.Request) string {
	if h.opts.PublicEndpoint != "" {
		return strings.TrimSuffix(h.opts.PublicEndpoint, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
