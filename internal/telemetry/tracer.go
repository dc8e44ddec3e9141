package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Generic keys follow OpenTelemetry semantic conventions.
const (
	AttrClientIP  = "client.address"
	AttrRequestID = "http.request_id"

	AttrResource  = "bits.resource"  // buildpacks, droplets, packages
	AttrKey       = "bits.key"       // blob key
	AttrStoreType = "bits.store"     // local, s3, memory
	AttrSize      = "bits.size"      // bytes stored
	AttrErrorCode = "bits.error_code"

	AttrArchive = "archive.path"
	AttrEntries = "archive.entries"
	AttrCodec   = "archive.codec"

	AttrBucket = "storage.bucket"
	AttrRegion = "storage.region"
)

// Span names.
const (
	SpanGatewayStore  = "gateway.store"
	SpanGatewayLookup = "gateway.lookup"
	SpanGatewayDelete = "gateway.delete"

	SpanArchiveExtract = "archive.extract"
	SpanArchiveAppend  = "archive.append"
	SpanArchiveStrip   = "archive.strip"
)

// Resource returns an attribute for the resource kind
func Resource(kind string) attribute.KeyValue {
	return attribute.String(AttrResource, kind)
}

// Key returns an attribute for a blob key
func Key(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StoreType returns an attribute for the store driver
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// Size returns an attribute for a byte count
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// ErrorCode returns an attribute for a bitsgate error code name
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

func Archive(path string) attribute.KeyValue {
	return attribute.String(AttrArchive, path)
}

func Entries(n int) attribute.KeyValue {
	return attribute.Int(AttrEntries, n)
}

func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StartGatewaySpan starts a span for a gateway operation on kind/key.
func StartGatewaySpan(ctx context.Context, name, kind, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Resource(kind), Key(key)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartArchiveSpan starts a span for an archive step.
func StartArchiveSpan(ctx context.Context, name, archivePath string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Archive(archivePath)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}
