package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/pkg/api"
	"github.com/marmos91/bitsgate/pkg/api/handlers"
	"github.com/marmos91/bitsgate/pkg/config"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

// InitLogger builds the structured logger from configuration.
func InitLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// RouterOptions derives the HTTP surface options from configuration.
func RouterOptions(cfg *config.Config) api.RouterOptions {
	roots := make(map[gateway.Kind]string, len(gateway.Kinds))
	for kind, s := range map[gateway.Kind]config.StoreConfig{
		gateway.KindBuildpacks: cfg.Buildpacks,
		gateway.KindDroplets:   cfg.Droplets,
		gateway.KindPackages:   cfg.Packages,
	} {
		if s.Type == config.StoreTypeLocal {
			roots[kind] = s.Local.Path
		}
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return api.RouterOptions{
		MetricsEnabled: cfg.Metrics.Enabled,
		Signing: api.SigningOptions{
			Secret:         cfg.Signing.Secret,
			Expiry:         cfg.Signing.Expiry,
			PublicEndpoint: cfg.Signing.PublicEndpoint,
		},
		Resources: handlers.ResourceOptions{
			Production:  cfg.IsProduction(),
			MaxBodySize: cfg.Server.MaxBodySize.Int64(),
			TempDir:     tempDir,
			Nginx: handlers.NginxOptions{
				Enabled:        cfg.Nginx.UseNginx,
				InternalPrefix: cfg.Nginx.InternalPrefix,
				Roots:          roots,
			},
		},
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
