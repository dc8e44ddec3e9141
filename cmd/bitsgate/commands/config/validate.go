package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the bitsgate configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  bitsgate config validate

  # Validate specific config file
  bitsgate config validate --config /etc/bitsgate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if !cfg.IsProduction() {
		warnings = append(warnings, "production is false - archive tool output is returned to clients")
	}
	if cfg.Nginx.UseNginx {
		stores := []struct {
			name string
			cfg  config.StoreConfig
		}{{"buildpacks", cfg.Buildpacks}, {"droplets", cfg.Droplets}, {"packages", cfg.Packages}}
		for _, s := range stores {
			if s.cfg.Type != config.StoreTypeLocal {
				warnings = append(warnings, fmt.Sprintf("nginx.use_nginx has no effect on %s (type %s)", s.name, s.cfg.Type))
			}
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Server port:     %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Archive codec:   %s\n", cfg.Archive.Codec)
	_, _ = fmt.Fprintf(out, "  Buildpacks:      %s\n", cfg.Buildpacks.Type)
	_, _ = fmt.Fprintf(out, "  Droplets:        %s\n", cfg.Droplets.Type)
	_, _ = fmt.Fprintf(out, "  Packages:        %s\n", cfg.Packages.Type)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
