package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/bitsgate/internal/bytesize"
	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/internal/telemetry"
	"github.com/marmos91/bitsgate/pkg/api"
)

// EnvPrefix prefixes every environment override, e.g. BITSGATE_SERVER_PORT.
const EnvPrefix = "BITSGATE"

// Config represents the bitsgate configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BITSGATE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for in-flight requests
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Production hides archive tool output from error responses.
	// Default: true
	Production *bool `mapstructure:"production" yaml:"production"`

	// Server configures the gateway HTTP listener
	Server api.APIConfig `mapstructure:"server" yaml:"server"`

	// Metrics controls the Prometheus /metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Nginx configures X-Accel-Redirect downloads for local stores
	Nginx NginxConfig `mapstructure:"nginx" yaml:"nginx"`

	// Signing configures the signed URL routes
	Signing SigningConfig `mapstructure:"signing" yaml:"signing"`

	// Archive selects the zip codec used for package normalization
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	// TempDir is the parent of upload and scratch directories.
	// Default: os.TempDir()
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir,omitempty"`

	Buildpacks StoreConfig `mapstructure:"buildpacks" yaml:"buildpacks"`
	Droplets   StoreConfig `mapstructure:"droplets" yaml:"droplets"`
	Packages   StoreConfig `mapstructure:"packages" yaml:"packages"`
}

// MetricsConfig controls Prometheus metrics collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NginxConfig configures delegated downloads.
type NginxConfig struct {
	// UseNginx answers GETs on local stores with an X-Accel-Redirect
	// header instead of the file body.
	UseNginx bool `mapstructure:"use_nginx" yaml:"use_nginx"`

	// InternalPrefix is the nginx internal location mapped to the local
	// store root. Default: /internal
	InternalPrefix string `mapstructure:"internal_prefix" validate:"omitempty,startswith=/" yaml:"internal_prefix"`
}

// SigningConfig configures /sign and /signed. The routes are mounted only
// when Secret is set.
type SigningConfig struct {
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`

	// Expiry is how long signed URLs stay valid. Default: 1h
	Expiry time.Duration `mapstructure:"expiry" validate:"gte=0" yaml:"expiry"`

	// PublicEndpoint is the base of signed URLs, e.g. https://bits.example.com.
	// When empty the request host is used.
	PublicEndpoint string `mapstructure:"public_endpoint" validate:"omitempty,url" yaml:"public_endpoint,omitempty"`
}

// Codec names.
const (
	CodecNative = "native"
	CodecExec   = "exec"
)

// ArchiveConfig selects and tunes the archive codec.
type ArchiveConfig struct {
	// Codec is "native" (in-process zip) or "exec" (zip/unzip binaries).
	Codec string `mapstructure:"codec" validate:"required,oneof=native exec" yaml:"codec"`

	ZipBinary   string `mapstructure:"zip_binary" yaml:"zip_binary"`
	UnzipBinary string `mapstructure:"unzip_binary" yaml:"unzip_binary"`

	// DeleteBatchSize is the number of entries removed per codec call when
	// stripping directory entries.
	DeleteBatchSize int `mapstructure:"delete_batch_size" validate:"gte=1" yaml:"delete_batch_size"`
}

// Store types.
const (
	StoreTypeLocal  = "local"
	StoreTypeS3     = "s3"
	StoreTypeMemory = "memory"
)

// StoreConfig describes the blob store behind one resource kind.
type StoreConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=local s3 memory" yaml:"type"`

	// Container is the directory (local) or bucket (s3, memory) name
	Container string `mapstructure:"container" validate:"required,excludesall=/\\" yaml:"container"`

	// URLExpiry is how long presigned download URLs stay valid (s3, memory)
	URLExpiry time.Duration `mapstructure:"url_expiry" validate:"gte=0" yaml:"url_expiry,omitempty"`

	Local  LocalStoreConfig  `mapstructure:"local" yaml:"local,omitempty"`
	S3     S3StoreConfig     `mapstructure:"s3" yaml:"s3,omitempty"`
	Memory MemoryStoreConfig `mapstructure:"memory" yaml:"memory,omitempty"`
}

// LocalStoreConfig configures the filesystem driver.
type LocalStoreConfig struct {
	// Path is the root directory holding the container directory
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// S3StoreConfig configures the S3 driver.
type S3StoreConfig struct {
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint for S3-compatible services
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// InternalEndpoint, when set, is used to presign internal download URLs
	InternalEndpoint string `mapstructure:"internal_endpoint" yaml:"internal_endpoint,omitempty"`

	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// KeyPrefix is prepended to every object key
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// MaxAttempts is the SDK retry budget. Default: 1 (no retries)
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=0" yaml:"max_attempts,omitempty"`
}

// MemoryStoreConfig configures the in-process object store used for
// development and tests.
type MemoryStoreConfig struct {
	// PublicURL is the base of generated download URLs
	PublicURL string `mapstructure:"public_url" yaml:"public_url,omitempty"`
}

// IsProduction reports whether production mode is on. Defaults to true.
func (c *Config) IsProduction() bool {
	if c.Production == nil {
		return true
	}
	return *c.Production
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location. A missing file is not
// an error: the result is built from defaults and environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}
	return decode(v)
}

// MustLoad loads configuration with helpful error messages.
// Unlike Load it requires the config file to exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  bitsgate config init\n\n"+
				"Or specify a custom config file:\n"+
				"  bitsgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  bitsgate config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// Watch re-reads the config file on every change and hands the result to
// onChange. Reloads that fail to decode or validate are passed to onError
// and otherwise ignored. Watch returns once the watcher is running.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("cannot watch configuration: no config file found")
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may hold S3 credentials
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment overrides and the config file search.
func setupViper(v *viper.Viper, configPath string) {
	// BITSGATE_LOGGING_LEVEL=DEBUG overrides logging.level
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvs registers every leaf key of t with viper. AutomaticEnv alone
// only applies to keys viper already knows from the file, so overrides of
// keys absent from the file would be lost on Unmarshal.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		key := prefix + name

		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, ft, key+".")
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings like "1Gi" or "512MB" and plain
// numbers to bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "1h" to time.Duration.
// Raw integers are nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/bitsgate, falling back to
// ~/.config/bitsgate, or "." if the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "bitsgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bitsgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
