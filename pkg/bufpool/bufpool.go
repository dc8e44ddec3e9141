// Package bufpool pools the byte slices used for streaming blob and archive
// content between files, uploads and stores.
//
// Buffers come in two size classes. Small buffers serve archive entries,
// which are usually a few kilobytes; large buffers serve whole blobs and
// uploads. Requests above the large class are allocated directly and never
// pooled.
//
//	buf := bufpool.Get(bufpool.LargeSize)
//	defer bufpool.Put(buf)
package bufpool

import (
	"io"
	"sync"
)

const (
	// SmallSize is the buffer size used for archive entries (32KB).
	SmallSize = 32 << 10

	// LargeSize is the buffer size used for blob transfers (1MB).
	LargeSize = 1 << 20
)

// Pool hands out reusable byte slices in two size classes.
type Pool struct {
	small     sync.Pool
	large     sync.Pool
	smallSize int
	largeSize int
}

// NewPool creates a pool with the given size classes. Non-positive sizes
// fall back to SmallSize and LargeSize.
func NewPool(smallSize, largeSize int) *Pool {
	if smallSize <= 0 {
		smallSize = SmallSize
	}
	if largeSize <= 0 {
		largeSize = LargeSize
	}
	if largeSize < smallSize {
		largeSize = smallSize
	}

	p := &Pool{smallSize: smallSize, largeSize: largeSize}
	p.small.New = func() any {
		buf := make([]byte, p.smallSize)
		return &buf
	}
	p.large.New = func() any {
		buf := make([]byte, p.largeSize)
		return &buf
	}
	return p
}

// Get returns a slice of length size. The caller must hand it back with Put.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte
	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// Put returns buf to the pool. Slices whose capacity matches no size class
// are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	full := buf[:cap(buf)]
	switch cap(buf) {
	case p.smallSize:
		p.small.Put(&full)
	case p.largeSize:
		p.large.Put(&full)
	}
}

// Copy streams src into dst through a pooled buffer of the given size class.
func (p *Pool) Copy(dst io.Writer, src io.Reader, size int) (int64, error) {
	buf := p.Get(size)
	defer p.Put(buf)
	return io.CopyBuffer(dst, src, buf)
}

var globalPool = NewPool(SmallSize, LargeSize)

// Get returns a slice of length size from the shared pool.
func Get(size int) []byte { return globalPool.Get(size) }

// Put returns buf to the shared pool.
func Put(buf []byte) { globalPool.Put(buf) }

// Copy streams src into dst using a large buffer from the shared pool.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	return globalPool.Copy(dst, src, LargeSize)
}

// CopySmall streams src into dst using a small buffer from the shared pool.
func CopySmall(dst io.Writer, src io.Reader) (int64, error) {
	return globalPool.Copy(dst, src, SmallSize)
}
