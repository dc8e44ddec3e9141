package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/blobstore/local"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote/memory"
	s3provider "github.com/marmos91/bitsgate/pkg/blobstore/remote/s3"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// CreateCodec returns the archive codec selected by cfg.
func CreateCodec(cfg ArchiveConfig) (archive.Codec, error) {
	switch cfg.Codec {
	case CodecNative, "":
		return archive.NewNativeCodec(), nil
	case CodecExec:
		return archive.NewExecCodec(
			archive.WithZipBinary(cfg.ZipBinary),
			archive.WithUnzipBinary(cfg.UnzipBinary),
		), nil
	default:
		return nil, fmt.Errorf("unknown archive codec: %s", cfg.Codec)
	}
}

// CreateBlobstore builds the client described by cfg. name labels the
// client in logs and metrics. A nil m disables instrumentation.
func CreateBlobstore(ctx context.Context, name string, cfg StoreConfig, log *slog.Logger, m blobstore.Metrics) (blobstore.Client, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("store", name, "store_type", cfg.Type)

	var (
		client blobstore.Client
		err    error
	)
	switch cfg.Type {
	case StoreTypeLocal:
		client, err = createLocalStore(cfg, log)
	case StoreTypeS3:
		client, err = createS3Store(ctx, cfg, log)
	case StoreTypeMemory:
		client, err = remote.New(memory.New(cfg.Memory.PublicURL, ""), remoteConfig(cfg), log)
	default:
		err = fmt.Errorf("unknown store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", name, err)
	}

	return blobstore.Instrument(client, name, m), nil
}

func createLocalStore(cfg StoreConfig, log *slog.Logger) (blobstore.Client, error) {
	return local.New(local.DefaultConfig(cfg.Local.Path, cfg.Container), log)
}

func createS3Store(ctx context.Context, cfg StoreConfig, log *slog.Logger) (blobstore.Client, error) {
	provider, err := s3provider.NewFromConfig(ctx, s3provider.Config{
		Region:           cfg.S3.Region,
		Endpoint:         cfg.S3.Endpoint,
		InternalEndpoint: cfg.S3.InternalEndpoint,
		ForcePathStyle:   cfg.S3.ForcePathStyle,
		AccessKeyID:      cfg.S3.AccessKeyID,
		SecretAccessKey:  cfg.S3.SecretAccessKey,
		MaxAttempts:      cfg.S3.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return remote.New(provider, remoteConfig(cfg), log)
}

func remoteConfig(cfg StoreConfig) remote.Config {
	return remote.Config{
		Container: cfg.Container,
		KeyPrefix: cfg.S3.KeyPrefix,
		URLExpiry: cfg.URLExpiry,
	}
}

// CreateStores builds one client per resource kind.
func CreateStores(ctx context.Context, cfg *Config, log *slog.Logger, m blobstore.Metrics) (map[gateway.Kind]blobstore.Client, error) {
	stores := make(map[gateway.Kind]blobstore.Client, len(gateway.Kinds))
	for _, ks := range cfg.stores() {
		kind, err := gateway.ParseKind(ks.kind)
		if err != nil {
			return nil, err
		}
		c, err := CreateBlobstore(ctx, ks.kind, ks.cfg, log, m)
		if err != nil {
			return nil, err
		}
		stores[kind] = c
	}
	return stores, nil
}

// CreateGateway wires stores, codec and metrics into a gateway.Service.
func CreateGateway(ctx context.Context, cfg *Config, log *slog.Logger, bm blobstore.Metrics, gm gateway.Metrics) (*gateway.Service, error) {
	stores, err := CreateStores(ctx, cfg, log, bm)
	if err != nil {
		return nil, err
	}
	codec, err := CreateCodec(cfg.Archive)
	if err != nil {
		return nil, err
	}

	opts := []gateway.Option{gateway.WithMetrics(gm)}
	if cfg.TempDir != "" {
		opts = append(opts, gateway.WithTempDir(cfg.TempDir))
	}
	return gateway.NewService(stores, gateway.NewToolkit(codec, cfg.Archive.DeleteBatchSize, log), log, opts...)
}
