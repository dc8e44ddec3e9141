package blobstore

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

func TestPartitionedPath(t *testing.T) {
	tests := map[string]string{
		"abcdef":                               "ab/cd/abcdef",
		"abcd":                                 "ab/cd/abcd",
		"abc":                                  "ab/c/abc",
		"ab":                                   "ab/_/ab",
		"a":                                    "a/_/a",
		"1f6e4c0a-5b8e-4b6a-9f3e-2a7d0c9b1e44": "1f/6e/1f6e4c0a-5b8e-4b6a-9f3e-2a7d0c9b1e44",
	}
	for key, want := range tests {
		assert.Equal(t, want, PartitionedPath(key), key)
	}
}

func TestPartitionedPath_NoLeafIsADirectory(t *testing.T) {
	keys := []string{"a", "ab", "abc", "abab", "ab_x", "ab_", "a_", "abcd", "abcdef"}
	leaves := make(map[string]string)
	dirs := make(map[string]bool)
	for _, k := range keys {
		p := PartitionedPath(k)
		assert.Equal(t, 3, len(strings.Split(p, "/")), k)
		leaves[p] = k
		dirs[path.Dir(p)] = true
		dirs[path.Dir(path.Dir(p))] = true
	}
	assert.Len(t, leaves, len(keys))
	for p, k := range leaves {
		assert.False(t, dirs[p], "leaf of %q is also a directory", k)
	}
}

func TestValidateKey(t *testing.T) {
	for _, ok := range []string{"abc", "guid-with-dashes", "a_b.c"} {
		assert.NoError(t, ValidateKey(ok), ok)
	}
	for _, bad := range []string{"", ".", "..", ".x", "a/b", `a\b`, "a\x00b"} {
		assert.True(t, bitserrors.IsInvalidArgument(ValidateKey(bad)), bad)
	}
}

// racyBackend simulates another process creating the container between our
// lookup and our create.
type racyBackend struct {
	mu      sync.Mutex
	exists  bool
	gets    atomic.Int32
	creates atomic.Int32
	raced   bool
	failGet error
}

func (b *racyBackend) GetContainer(_ context.Context, name string) (*Container, error) {
	b.gets.Add(1)
	if b.failGet != nil {
		return nil, b.failGet
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.exists {
		return nil, nil
	}
	return &Container{Name: name, Location: "/store/" + name}, nil
}

func (b *racyBackend) CreateContainer(_ context.Context, name string) (*Container, error) {
	b.creates.Add(1)
	time.Sleep(5 * time.Millisecond)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.raced || b.exists {
		b.exists = true
		return nil, bitserrors.NewAlreadyExistsError(name, nil)
	}
	b.exists = true
	return &Container{Name: name, Location: "/store/" + name}, nil
}

func TestIdempotentContainer_Concurrent(t *testing.T) {
	backend := &racyBackend{}
	ic := NewIdempotentContainer("packages", backend, nil)

	results := make([]*Container, 32)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			c, err := ic.GetOrCreate(context.Background())
			results[i] = c
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, int32(1), backend.creates.Load())
}

func TestIdempotentContainer_LostRaceIsNotAnError(t *testing.T) {
	backend := &racyBackend{raced: true}
	ic := NewIdempotentContainer("packages", backend, nil)

	c, err := ic.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/store/packages", c.Location)
	assert.Equal(t, int32(2), backend.gets.Load())

	again, err := ic.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.Equal(t, int32(2), backend.gets.Load(), "cached after first resolution")
}

func TestIdempotentContainer_BackendFailure(t *testing.T) {
	backend := &racyBackend{failGet: errors.New("connection refused")}
	ic := NewIdempotentContainer("packages", backend, nil)

	_, err := ic.GetOrCreate(context.Background())
	require.Error(t, err)
	assert.True(t, bitserrors.IsStorageFailure(err))

	backend.failGet = nil
	_, err = ic.GetOrCreate(context.Background())
	assert.NoError(t, err, "failures are not cached")
}

// gatedBackend blocks lookups until release is closed and fails them if
// the context it was handed has been cancelled by then.
type gatedBackend struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *gatedBackend) GetContainer(ctx context.Context, name string) (*Container, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Container{Name: name, Location: "/store/" + name}, nil
}

func (b *gatedBackend) CreateContainer(_ context.Context, name string) (*Container, error) {
	return &Container{Name: name, Location: "/store/" + name}, nil
}

func TestIdempotentContainer_FirstCallerCancelled(t *testing.T) {
	backend := &gatedBackend{started: make(chan struct{}), release: make(chan struct{})}
	ic := NewIdempotentContainer("packages", backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := ic.GetOrCreate(ctx)
		firstErr <- err
	}()

	<-backend.started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		c   *Container
		err error
	}
	second := make(chan result, 1)
	go func() {
		c, err := ic.GetOrCreate(context.Background())
		second <- result{c, err}
	}()
	close(backend.release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "/store/packages", res.c.Location)
}

type recordingMetrics struct {
	mu    sync.Mutex
	ops   []string
	bytes int64
}

func (m *recordingMetrics) ObserveOperation(store, op string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, store+":"+op)
}

func (m *recordingMetrics) RecordBytes(_, _ string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}

type stubClient struct{ local bool }

func (s stubClient) Blob(context.Context, string) (*Handle, error) {
	return nil, bitserrors.NewNotFoundError("k")
}

func (s stubClient) CopyToBlobstore(_ context.Context, _, key string) (*Handle, error) {
	return &Handle{Key: key, Size: 42}, nil
}

func (s stubClient) DeleteBlob(context.Context, *Handle) error { return nil }
func (s stubClient) Local() bool                                { return s.local }

type stubRemote struct{ stubClient }

func (stubRemote) PublicDownloadURL(h *Handle) string   { return "https://public/" + h.Key }
func (stubRemote) InternalDownloadURL(h *Handle) string { return "http://internal/" + h.Key }

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Client(stubClient{}), Instrument(stubClient{}, "x", nil))

	m := &recordingMetrics{}
	c := Instrument(stubClient{local: true}, "droplets", m)
	_, _ = c.Blob(ctx, "k")
	_, err := c.CopyToBlobstore(ctx, "/tmp/x", "k")
	require.NoError(t, err)
	require.NoError(t, c.DeleteBlob(ctx, &Handle{Key: "k"}))

	assert.True(t, c.Local())
	assert.Equal(t, []string{"droplets:blob", "droplets:copy", "droplets:delete"}, m.ops)
	assert.Equal(t, int64(42), m.bytes)
	_, isSigner := c.(URLSigner)
	assert.False(t, isSigner)

	r := Instrument(stubRemote{}, "droplets", m)
	signer, ok := r.(URLSigner)
	require.True(t, ok)
	assert.Equal(t, "https://public/k", signer.PublicDownloadURL(&Handle{Key: "k"}))
}
