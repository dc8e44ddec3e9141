package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/internal/cli/output"
	"github.com/marmos91/bitsgate/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective bitsgate configuration, after defaults and
BITSGATE_* environment overrides are applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  bitsgate config show

  # Show as JSON
  bitsgate config show --output json

  # Show specific config file
  bitsgate config show --config /etc/bitsgate/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
