package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { UseTracerProvider(nil) })
	return sr
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "bitsgate", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Profiling.Enabled)
	assert.NotEmpty(t, cfg.Profiling.ProfileTypes)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	// no-op spans carry no ids
	ctx, span := StartSpan(ctx, "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestGatewaySpan(t *testing.T) {
	sr := recorder(t)
	assert.True(t, IsEnabled())

	ctx, span := StartGatewaySpan(context.Background(), SpanGatewayStore, "droplets", "abc", Size(1024))
	assert.Len(t, TraceID(ctx), 32)
	assert.Len(t, SpanID(ctx), 16)
	AddEvent(ctx, "copied")
	SetAttributes(ctx, StoreType("local"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, SpanGatewayStore, s.Name())

	attrs := map[string]any{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "droplets", attrs[AttrResource])
	assert.Equal(t, "abc", attrs[AttrKey])
	assert.Equal(t, int64(1024), attrs[AttrSize])
	assert.Equal(t, "local", attrs[AttrStoreType])
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "copied", s.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	sr := recorder(t)

	ctx, span := StartArchiveSpan(context.Background(), SpanArchiveExtract, "/tmp/a.zip", Entries(3))
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("zip: not a valid zip file"))
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "zip: not a valid zip file", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	for _, name := range []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space",
		"goroutines", "mutex_count", "mutex_duration", "block_count", "block_duration"} {
		_, err := parseProfileType(name)
		assert.NoError(t, err, name)
	}
	_, err := parseProfileType("heap")
	assert.Error(t, err)

	_, err = InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"heap"}})
	assert.Error(t, err)
}
