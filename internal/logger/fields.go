package logger

import (
	"log/slog"
	"time"

	"github.com/docker/go-units"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// HTTP
	// ========================================================================
	KeyRequestID = "request_id" // Request ID (X-Request-Id or X-Vcap-Request-Id)
	KeyClientIP  = "client_ip"  // Client IP address
	KeyMethod    = "method"     // HTTP method
	KeyRoute     = "path"       // Request path
	KeyStatus    = "status"     // HTTP status code
	KeyBytes     = "bytes"      // Response bytes written

	// ========================================================================
	// Blob Store
	// ========================================================================
	KeyResource  = "resource"   // buildpacks, droplets, packages
	KeyKey       = "key"        // Blob key
	KeyContainer = "container"  // Container (directory or bucket) name
	KeyStoreType = "store_type" // local, s3, memory
	KeySize      = "size"       // Blob size in bytes

	// ========================================================================
	// Archive
	// ========================================================================
	KeyArchive = "archive" // Archive path
	KeyEntries = "entries" // Number of archive entries
	KeyOutput  = "output"  // Diagnostic output of an external tool

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Error code name
	KeyOperation  = "operation"   // Sub-operation type for complex operations
)

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr with the milliseconds elapsed since start
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Size returns a slog.Attr with a human readable byte size (e.g. "1.5MiB")
func Size(bytes int64) slog.Attr {
	return slog.String(KeySize, units.BytesSize(float64(bytes)))
}

// Key returns a slog.Attr for a blob key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Resource returns a slog.Attr for a resource kind
func Resource(r string) slog.Attr {
	return slog.String(KeyResource, r)
}
