// Package memory provides an in-process remote.Provider. It backs the
// "memory" store type and the remote driver tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Provider keeps buckets and objects in memory.
type Provider struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte

	publicBase   string
	internalBase string
	now          func() time.Time
}

var _ remote.Provider = (*Provider)(nil)

// New returns an empty Provider. URLs are built from publicBase and
// internalBase; an empty internalBase reuses publicBase.
func New(publicBase, internalBase string) *Provider {
	if publicBase == "" {
		publicBase = "http://memory.invalid"
	}
	if internalBase == "" {
		internalBase = publicBase
	}
	return &Provider{
		buckets:      make(map[string]map[string][]byte),
		publicBase:   publicBase,
		internalBase: internalBase,
		now:          time.Now,
	}
}

func (p *Provider) GetContainer(_ context.Context, name string) (*blobstore.Container, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.buckets[name]; !ok {
		return nil, nil
	}
	return &blobstore.Container{Name: name, Location: name}, nil
}

func (p *Provider) CreateContainer(_ context.Context, name string) (*blobstore.Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.buckets[name]; ok {
		return nil, bitserrors.NewAlreadyExistsError(name, nil)
	}
	p.buckets[name] = make(map[string][]byte)
	return &blobstore.Container{Name: name, Location: name}, nil
}

func (p *Provider) Put(_ context.Context, bucket, key string, body io.ReadSeeker, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	b[key] = data
	return nil
}

func (p *Provider) Head(_ context.Context, bucket, key string) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.buckets[bucket][key]
	if !ok {
		return 0, bitserrors.NewNotFoundError(key)
	}
	return int64(len(data)), nil
}

func (p *Provider) Delete(_ context.Context, bucket, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.buckets[bucket], key)
	return nil
}

func (p *Provider) PresignGet(_ context.Context, bucket, key string, expiry time.Duration, internal bool) (string, error) {
	base := p.publicBase
	if internal {
		base = p.internalBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u = u.JoinPath(bucket, key)
	q := u.Query()
	q.Set("expires", strconv.FormatInt(p.now().Add(expiry).Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Object returns a copy of the stored bytes, for tests.
func (p *Provider) Object(bucket, key string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.buckets[bucket][key]
	return bytes.Clone(data), ok
}
