package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/internal/telemetry"
	"github.com/marmos91/bitsgate/pkg/api/handlers"
	"github.com/marmos91/bitsgate/pkg/gateway"
	"github.com/marmos91/bitsgate/pkg/metrics"
)

// VcapRequestIDHeader is the Cloud Foundry request id header. When a client
// sends it, it becomes the request id.
const VcapRequestIDHeader = "X-Vcap-Request-Id"

// RouterOptions configure the resource routes.
type RouterOptions struct {
	Resources handlers.ResourceOptions

	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool

	// Signing mounts the signed URL routes when a secret is set.
	Signing SigningOptions
}

// SigningOptions configure the /sign and /signed routes.
type SigningOptions struct {
	Secret         string
	Expiry         time.Duration
	PublicEndpoint string
}

// Backend is what the router needs from the gateway.
type Backend interface {
	handlers.Gateway
	handlers.StoreLister
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware, seeded from X-Vcap-Request-Id when present
//   - Real IP extraction for proper client identification
//   - Request logging with request-scoped log context
//   - Panic recovery to prevent server crashes
//
// Routes:
//   - PUT/GET/DELETE /{kind}/{guid} for buildpacks, droplets and packages
//   - GET /sign/{kind}/{guid} and GET/PUT /signed/{kind}/{guid} when a
//     signing secret is configured
//   - GET /health, /health/ready, /health/stores
//   - GET /metrics when enabled
func NewRouter(gw Backend, opts RouterOptions, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(vcapRequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(gw)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	if opts.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	var signer *handlers.HMACSigner
	if opts.Signing.Secret != "" {
		signer = handlers.NewHMACSigner(opts.Signing.Secret, opts.Signing.Expiry)
	}

	for _, kind := range gateway.Kinds {
		h := handlers.NewResourceHandler(kind, gw, opts.Resources, log)
		r.Route("/"+string(kind), func(r chi.Router) {
			r.Put("/{guid}", h.Put)
			r.Get("/{guid}", h.Get)
			r.Delete("/{guid}", h.Delete)
		})

		if signer == nil {
			continue
		}
		sh := handlers.NewSignHandler(kind, signer, handlers.SignOptions{
			Production:     opts.Resources.Production,
			PublicEndpoint: opts.Signing.PublicEndpoint,
		}, log)
		r.Get("/sign/"+string(kind)+"/{guid}", sh.Sign)
		r.Route(handlers.SignedPrefix+"/"+string(kind), func(r chi.Router) {
			r.Get("/{guid}", sh.Verify(h.Get))
			r.Put("/{guid}", sh.Verify(h.Put))
		})
	}

	return r
}

// vcapRequestID promotes X-Vcap-Request-Id to the request id header read
// by middleware.RequestID, and echoes the final id back to the client.
func vcapRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(VcapRequestIDHeader); id != "" && r.Header.Get(middleware.RequestIDHeader) == "" {
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(&requestIDWriter{ResponseWriter: w, r: r}, r)
	})
}

// requestIDWriter sets the X-Vcap-Request-Id response header from the
// request id in the header of the wrapped request, just before the headers
// go out.
type requestIDWriter struct {
	http.ResponseWriter
	r           *http.Request
	wroteHeader bool
}

func (w *requestIDWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if id := w.r.Header.Get(middleware.RequestIDHeader); id != "" {
			w.Header().Set(VcapRequestIDHeader, id)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *requestIDWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// requestLogger opens a server span per request, injects a LogContext into
// the request context and logs completion.
//
// It logs:
//   - Request start (DEBUG level): method, path, client ip
//   - Request completion (INFO level): method, path, status, bytes, duration
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			// middleware.RequestID generates an id the header does not carry;
			// store it back so the response header echoes it.
			r.Header.Set(middleware.RequestIDHeader, requestID)

			ctx, span := telemetry.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String(telemetry.AttrRequestID, requestID),
					attribute.String(telemetry.AttrClientIP, clientIP(r.RemoteAddr)),
				))
			defer span.End()

			lc := logger.NewLogContext(requestID, clientIP(r.RemoteAddr)).
				WithResource(resourceOf(r.URL.Path)).
				WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
			ctx = logger.WithContext(ctx, lc)
			r = r.WithContext(ctx)

			log.DebugContext(ctx, "API request started",
				logger.KeyMethod, r.Method,
				logger.KeyRoute, r.URL.Path,
			)

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
			log.InfoContext(ctx, "API request completed",
				logger.KeyMethod, r.Method,
				logger.KeyRoute, r.URL.Path,
				logger.KeyStatus, ww.Status(),
				logger.KeyBytes, ww.BytesWritten(),
				logger.DurationMs(start),
			)
		})
	}
}

// resourceOf returns the path segment naming the resource kind, skipping a
// leading sign or signed segment.
func resourceOf(p string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(p, "/"), "/")
	if first == "sign" || first == "signed" {
		first, _, _ = strings.Cut(rest, "/")
	}
	if _, err := gateway.ParseKind(first); err != nil {
		return ""
	}
	return first
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
