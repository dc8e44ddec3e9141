package blobstore

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// Container is a resolved storage root: a directory or a bucket.
type Container struct {
	Name string

	// Location is backend specific: an absolute directory for the local
	// driver, a bucket name for the remote driver.
	Location string
}

// ContainerBackend looks up and creates containers.
type ContainerBackend interface {
	// GetContainer returns the container, or nil with no error when it
	// does not exist.
	GetContainer(ctx context.Context, name string) (*Container, error)

	// CreateContainer creates the container. It returns an AlreadyExists
	// error if another writer created it first.
	CreateContainer(ctx context.Context, name string) (*Container, error)
}

// IdempotentContainer resolves a container once, creating it on first use.
//
// Concurrent callers in one process share a single lookup. Across processes,
// losing a creation race is absorbed: the winner's container is fetched and
// returned. The resolved container is cached for the life of the value.
type IdempotentContainer struct {
	name    string
	backend ContainerBackend
	logger  *slog.Logger

	group  singleflight.Group
	cached atomic.Pointer[Container]
}

// NewIdempotentContainer returns an IdempotentContainer for name.
func NewIdempotentContainer(name string, backend ContainerBackend, logger *slog.Logger) *IdempotentContainer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &IdempotentContainer{name: name, backend: backend, logger: logger}
}

// Name returns the container name.
func (c *IdempotentContainer) Name() string {
	return c.name
}

// GetOrCreate returns the container, creating it if it does not exist.
// Failures other than a lost creation race are StorageFailure errors.
//
// The shared lookup is detached from the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done.
func (c *IdempotentContainer) GetOrCreate(ctx context.Context) (*Container, error) {
	if cont := c.cached.Load(); cont != nil {
		return cont, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.name, func() (any, error) {
		if cont := c.cached.Load(); cont != nil {
			return cont, nil
		}
		cont, err := c.resolve(shared)
		if err != nil {
			return nil, err
		}
		c.cached.Store(cont)
		return cont, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Container), nil
	}
}

func (c *IdempotentContainer) resolve(ctx context.Context) (*Container, error) {
	cont, err := c.backend.GetContainer(ctx, c.name)
	if err != nil {
		return nil, storageFailure(c.name, "get container", err)
	}
	if cont != nil {
		return cont, nil
	}

	cont, err = c.backend.CreateContainer(ctx, c.name)
	if err == nil {
		c.logger.Info("created container", "container", c.name, "location", cont.Location)
		return cont, nil
	}
	if !bitserrors.IsAlreadyExists(err) {
		return nil, storageFailure(c.name, "create container", err)
	}

	c.logger.Debug("container created concurrently, fetching", "container", c.name)
	cont, err = c.backend.GetContainer(ctx, c.name)
	if err != nil {
		return nil, storageFailure(c.name, "get container", err)
	}
	if cont == nil {
		return nil, bitserrors.NewStorageError(c.name, "container reported as existing but not found", nil)
	}
	return cont, nil
}

// storageFailure wraps err as a StorageFailure unless it already is coded.
func storageFailure(path, msg string, err error) error {
	if bitserrors.CodeOf(err) != 0 {
		return err
	}
	return bitserrors.NewStorageError(path, msg, err)
}
