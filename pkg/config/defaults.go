package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/blobstore/remote"
)

// DefaultLocalStorePath is the root of local stores when none is configured.
const DefaultLocalStorePath = "/var/vcap/store/bitsgate"

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(cfg)
	applyTelemetryDefaults(cfg)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Server.ApplyDefaults()
	applyNginxDefaults(&cfg.Nginx)
	if cfg.Signing.Expiry == 0 {
		cfg.Signing.Expiry = time.Hour
	}
	applyArchiveDefaults(&cfg.Archive)
	applyStoreDefaults(&cfg.Buildpacks, "buildpacks")
	applyStoreDefaults(&cfg.Droplets, "droplets")
	applyStoreDefaults(&cfg.Packages, "packages")
}

func applyLoggingDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// applyTelemetryDefaults leaves tracing and profiling disabled unless
// explicitly enabled.
func applyTelemetryDefaults(cfg *Config) {
	t := &cfg.Telemetry
	if t.ServiceName == "" {
		t.ServiceName = "bitsgate"
	}
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRate == 0 {
		t.SampleRate = 1.0
	}
	if t.Profiling.Endpoint == "" {
		t.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(t.Profiling.ProfileTypes) == 0 {
		t.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyNginxDefaults(cfg *NginxConfig) {
	if cfg.InternalPrefix == "" {
		cfg.InternalPrefix = "/internal"
	}
	cfg.InternalPrefix = strings.TrimSuffix(cfg.InternalPrefix, "/")
	if cfg.InternalPrefix == "" {
		cfg.InternalPrefix = "/"
	}
}

func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.Codec == "" {
		cfg.Codec = CodecNative
	}
	if cfg.ZipBinary == "" {
		cfg.ZipBinary = "zip"
	}
	if cfg.UnzipBinary == "" {
		cfg.UnzipBinary = "unzip"
	}
	if cfg.DeleteBatchSize == 0 {
		cfg.DeleteBatchSize = archive.DefaultDeleteBatchSize
	}
}

func applyStoreDefaults(cfg *StoreConfig, kind string) {
	if cfg.Type == "" {
		cfg.Type = StoreTypeLocal
	}
	if cfg.Container == "" {
		cfg.Container = kind
	}
	switch cfg.Type {
	case StoreTypeLocal:
		if cfg.Local.Path == "" {
			cfg.Local.Path = DefaultLocalStorePath
		}
	case StoreTypeS3:
		if cfg.S3.Region == "" {
			cfg.S3.Region = "us-east-1"
		}
		if cfg.S3.MaxAttempts == 0 {
			cfg.S3.MaxAttempts = 1
		}
		if cfg.URLExpiry == 0 {
			cfg.URLExpiry = remote.DefaultURLExpiry
		}
	case StoreTypeMemory:
		if cfg.URLExpiry == 0 {
			cfg.URLExpiry = remote.DefaultURLExpiry
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
// Local stores live under the user's state directory so that a generated
// config works without root.
func GetDefaultConfig() *Config {
	production := true
	root := filepath.Join(defaultStateDir(), "store")
	cfg := &Config{
		Production: &production,
		Buildpacks: StoreConfig{Type: StoreTypeLocal, Local: LocalStoreConfig{Path: root}},
		Droplets:   StoreConfig{Type: StoreTypeLocal, Local: LocalStoreConfig{Path: root}},
		Packages:   StoreConfig{Type: StoreTypeLocal, Local: LocalStoreConfig{Path: root}},
	}
	ApplyDefaults(cfg)
	return cfg
}

// defaultStateDir returns $XDG_STATE_HOME/bitsgate or ~/.local/state/bitsgate.
func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bitsgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bitsgate")
	}
	return filepath.Join(home, ".local", "state", "bitsgate")
}
