package gateway_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/bitsgate/internal/telemetry"
	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/blobstore/local"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote/memory"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// ============================================================================
// Fixtures
// ============================================================================

type recordingMetrics struct {
	mu         sync.Mutex
	ops        []string
	normalized int
}

func (m *recordingMetrics) ObserveOperation(kind, op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = bitserrors.CodeOf(err).String()
	}
	m.ops = append(m.ops, kind+"/"+op+"/"+outcome)
}

func (m *recordingMetrics) ObserveNormalization(time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normalized++
}

type env struct {
	svc      *gateway.Service
	scratch  string
	provider *memory.Provider
	metrics  *recordingMetrics
}

func newEnv(t *testing.T) *env {
	t.Helper()

	root := t.TempDir()
	stores := map[gateway.Kind]blobstore.Client{}
	for _, k := range []gateway.Kind{gateway.KindBuildpacks, gateway.KindPackages} {
		s, err := local.New(local.DefaultConfig(root, string(k)), nil)
		require.NoError(t, err)
		stores[k] = s
	}

	provider := memory.New("https://blobs.example.com", "")
	droplets, err := remote.New(provider, remote.Config{Container: "droplets"}, nil)
	require.NoError(t, err)
	stores[gateway.KindDroplets] = droplets

	scratch := t.TempDir()
	m := &recordingMetrics{}
	tk := gateway.NewToolkit(archive.NewNativeCodec(), 2, nil)
	svc, err := gateway.NewService(stores, tk, nil, gateway.WithTempDir(scratch), gateway.WithMetrics(m))
	require.NoError(t, err)

	return &env{svc: svc, scratch: scratch, provider: provider, metrics: m}
}

type entry struct {
	name string
	body string
}

func writeZip(t *testing.T, entries ...entry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, e := range entries {
		h := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.name[len(e.name)-1] == '/' {
			h.SetMode(fs.ModeDir | 0o755)
		} else {
			h.SetMode(0o644)
		}
		out, err := w.CreateHeader(h)
		require.NoError(t, err)
		_, err = out.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left, "scratch directories must be removed")
}

// ============================================================================
// Tests
// ============================================================================

func TestNewServiceRequiresEveryKind(t *testing.T) {
	_, err := gateway.NewService(map[gateway.Kind]blobstore.Client{}, gateway.NewToolkit(archive.NewNativeCodec(), 0, nil), nil)
	assert.ErrorContains(t, err, "buildpacks")
}

func TestStoreBuildpackVerbatim(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	upload := writeZip(t, entry{"bin/", ""}, entry{"bin/detect", "#!/bin/sh"})
	want, err := os.ReadFile(upload)
	require.NoError(t, err)

	h, err := e.svc.Store(ctx, gateway.KindBuildpacks, upload, "bp-guid")
	require.NoError(t, err)
	require.NotEmpty(t, h.LocalPath)

	got, err := os.ReadFile(h.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.FileExists(t, upload, "the caller owns the upload")
	assert.Zero(t, e.metrics.normalized)
}

func TestStoreDropletRemote(t *testing.T) {
	e := newEnv(t)

	upload := writeZip(t, entry{"app/run", "exec"})
	h, err := e.svc.Store(context.Background(), gateway.KindDroplets, upload, "dr0p")
	require.NoError(t, err)

	assert.Empty(t, h.LocalPath)
	assert.Contains(t, h.PublicURL, "https://blobs.example.com/droplets/dr/0p/dr0p")
	_, ok := e.provider.Object("droplets", "dr/0p/dr0p")
	assert.True(t, ok)
}

func TestStorePackageNormalizes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	upload := writeZip(t,
		entry{"app/", ""},
		entry{"app/lib/", ""},
		entry{"app/lib/a.rb", "a"},
		entry{"app/Procfile", "web: ruby app.rb"},
		entry{"empty/", ""},
	)

	h, err := e.svc.Store(ctx, gateway.KindPackages, upload, "pkg-guid")
	require.NoError(t, err)

	entries, err := archive.NewNativeCodec().List(ctx, h.LocalPath)
	require.NoError(t, err)
	var names []string
	for _, en := range entries {
		assert.NotEqual(t, archive.EntryDirectory, en.Kind, en.Name)
		names = append(names, en.Name)
	}
	assert.ElementsMatch(t, []string{"app/lib/a.rb", "app/Procfile"}, names)
	assert.Equal(t, 1, e.metrics.normalized)
	assertScratchEmpty(t, e.scratch)
}

func TestStorePackageRejectsBadArchives(t *testing.T) {
	tests := []struct {
		name   string
		upload func(t *testing.T) string
	}{
		{"escaping entry", func(t *testing.T) string {
			return writeZip(t, entry{"../../escape", "x"})
		}},
		{"not a zip", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "junk.zip")
			require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))
			return p
		}},
		{"empty archive", func(t *testing.T) string {
			return writeZip(t)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.svc.Store(context.Background(), gateway.KindPackages, tt.upload(t), "bad")
			require.Error(t, err)
			assert.True(t, bitserrors.IsInvalidArchive(err), err)
			assertScratchEmpty(t, e.scratch)

			_, err = e.svc.Lookup(context.Background(), gateway.KindPackages, "bad")
			assert.True(t, bitserrors.IsNotFound(err), "nothing is stored on failure")
		})
	}
}

func TestLookupAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Lookup(ctx, gateway.KindBuildpacks, "missing")
	assert.True(t, bitserrors.IsNotFound(err))
	assert.True(t, bitserrors.IsNotFound(e.svc.Delete(ctx, gateway.KindBuildpacks, "missing")))

	_, err = e.svc.Store(ctx, gateway.KindBuildpacks, writeZip(t, entry{"f", "1"}), "k1")
	require.NoError(t, err)

	h, err := e.svc.Lookup(ctx, gateway.KindBuildpacks, "k1")
	require.NoError(t, err)
	assert.FileExists(t, h.LocalPath)

	require.NoError(t, e.svc.Delete(ctx, gateway.KindBuildpacks, "k1"))
	_, err = e.svc.Lookup(ctx, gateway.KindBuildpacks, "k1")
	assert.True(t, bitserrors.IsNotFound(err))

	assert.Equal(t, []string{
		"buildpacks/lookup/NotFound",
		"buildpacks/delete/NotFound",
		"buildpacks/store/ok",
		"buildpacks/lookup/ok",
		"buildpacks/delete/ok",
		"buildpacks/lookup/NotFound",
	}, e.metrics.ops)
}

func TestUnknownKind(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Lookup(context.Background(), gateway.Kind("apps"), "k")
	assert.True(t, bitserrors.IsInvalidArgument(err))

	_, err = gateway.ParseKind("apps")
	assert.True(t, bitserrors.IsInvalidArgument(err))

	k, err := gateway.ParseKind("droplets")
	require.NoError(t, err)
	assert.Equal(t, "droplet", k.FormField())
	assert.Equal(t, "buildpack", gateway.KindBuildpacks.FormField())
	assert.Equal(t, "package", gateway.KindPackages.FormField())
}

func TestSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	telemetry.UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { telemetry.UseTracerProvider(nil) })

	e := newEnv(t)
	_, err := e.svc.Store(context.Background(), gateway.KindPackages, writeZip(t, entry{"a/", ""}, entry{"a/b", "b"}), "spanned")
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		telemetry.SpanArchiveExtract,
		telemetry.SpanArchiveAppend,
		telemetry.SpanArchiveStrip,
		telemetry.SpanGatewayStore,
	}, names)
}
