package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/internal/telemetry"
	"github.com/marmos91/bitsgate/pkg/api"
	"github.com/marmos91/bitsgate/pkg/config"
	"github.com/marmos91/bitsgate/pkg/metrics"
	"github.com/marmos91/bitsgate/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bitsgate server",
	Long: `Start the bitsgate HTTP server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/bitsgate/config.yaml.

Changes to logging.level in the configuration file are applied without a
restart.

Examples:
  # Start with the default config file
  bitsgate start

  # Start with custom config file
  bitsgate start --config /etc/bitsgate/config.yaml

  # Start with environment variable overrides
  BITSGATE_LOGGING_LEVEL=DEBUG bitsgate start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	cfg, err := config.MustLoad(configFile)
	if err != nil {
		return err
	}

	log, err := InitLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			log.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingCfg := cfg.Telemetry.Profiling
	profilingCfg.ServiceName = cfg.Telemetry.ServiceName
	profilingCfg.ServiceVersion = Version
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			log.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	log.Info("bitsgate starting", "version", Version, "source", getConfigSource(configFile))
	log.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		log.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		log.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		log.Info("Metrics enabled", "path", "/metrics")
	}

	svc, err := config.CreateGateway(ctx, cfg, log.Logger, prometheus.NewBlobstoreMetrics(), prometheus.NewGatewayMetrics())
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	for _, s := range []struct {
		name string
		cfg  config.StoreConfig
	}{{"buildpacks", cfg.Buildpacks}, {"droplets", cfg.Droplets}, {"packages", cfg.Packages}} {
		log.Info("Store configured", logger.KeyResource, s.name, logger.KeyStoreType, s.cfg.Type, logger.KeyContainer, s.cfg.Container)
	}

	watchLogLevel(configFile, log)

	server := api.NewServer(cfg.Server, api.NewRouter(svc, RouterOptions(cfg), log.Logger), log.Logger)

	log.Info("Server is running. Press Ctrl+C to stop.")
	if err := server.Start(ctx, cfg.ShutdownTimeout); err != nil {
		log.Error("Server error", logger.Err(err))
		return err
	}
	log.Info("Server stopped")
	return nil
}

// watchLogLevel applies logging.level edits of the config file at runtime.
// Other settings need a restart.
func watchLogLevel(configFile string, log *logger.Logger) {
	if configFile == "" {
		if !config.DefaultConfigExists() {
			return
		}
		configFile = config.GetDefaultConfigPath()
	}

	err := config.Watch(configFile,
		func(cfg *config.Config) {
			if cfg.Logging.Level == "" {
				return
			}
			prev := log.Level()
			if log.SetLevel(cfg.Logging.Level) && log.Level() != prev {
				log.Info("Log level changed", "level", cfg.Logging.Level)
			}
		},
		func(err error) {
			log.Warn("Ignoring invalid configuration change", logger.Err(err))
		},
	)
	if err != nil {
		log.Warn("Config watch disabled", logger.Err(err))
	}
}
