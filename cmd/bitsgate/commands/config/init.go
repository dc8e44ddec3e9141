package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Write a bitsgate configuration file holding the default values.

By default, the configuration file is created at $XDG_CONFIG_HOME/bitsgate/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  bitsgate config init

  # Initialize with custom path
  bitsgate config init --config /etc/bitsgate/config.yaml

  # Force overwrite existing config
  bitsgate config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Choose a backend for buildpacks, droplets and packages")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: bitsgate start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: bitsgate start --config %s\n", configPath)
	return nil
}
