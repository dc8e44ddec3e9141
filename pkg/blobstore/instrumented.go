package blobstore

import (
	"context"
	"time"
)

// Metrics receives per-operation observations from an instrumented Client.
// A nil Metrics disables instrumentation.
type Metrics interface {
	ObserveOperation(store, operation string, duration time.Duration, err error)
	RecordBytes(store, operation string, bytes int64)
}

// Instrument decorates c so every operation is reported to m under the
// store label. If m is nil, c is returned unchanged. Remote clients keep
// their URLSigner methods.
func Instrument(c Client, store string, m Metrics) Client {
	if m == nil {
		return c
	}
	ic := &instrumentedClient{next: c, store: store, m: m}
	if signer, ok := c.(URLSigner); ok {
		return &instrumentedRemote{instrumentedClient: ic, URLSigner: signer}
	}
	return ic
}

type instrumentedClient struct {
	next  Client
	store string
	m     Metrics
}

type instrumentedRemote struct {
	*instrumentedClient
	URLSigner
}

func (c *instrumentedClient) Blob(ctx context.Context, key string) (*Handle, error) {
	start := time.Now()
	h, err := c.next.Blob(ctx, key)
	c.m.ObserveOperation(c.store, "blob", time.Since(start), err)
	return h, err
}

func (c *instrumentedClient) CopyToBlobstore(ctx context.Context, localPath, key string) (*Handle, error) {
	start := time.Now()
	h, err := c.next.CopyToBlobstore(ctx, localPath, key)
	c.m.ObserveOperation(c.store, "copy", time.Since(start), err)
	if err == nil {
		c.m.RecordBytes(c.store, "copy", h.Size)
	}
	return h, err
}

func (c *instrumentedClient) DeleteBlob(ctx context.Context, h *Handle) error {
	start := time.Now()
	err := c.next.DeleteBlob(ctx, h)
	c.m.ObserveOperation(c.store, "delete", time.Since(start), err)
	return err
}

func (c *instrumentedClient) Local() bool {
	return c.next.Local()
}
