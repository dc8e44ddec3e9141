// Package commands implements the bitsgate CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/commands/archive"
	"github.com/marmos91/bitsgate/cmd/bitsgate/commands/blob"
	"github.com/marmos91/bitsgate/cmd/bitsgate/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bitsgate",
	Short: "bitsgate - artifact gateway for buildpacks, droplets and packages",
	Long: `bitsgate stores the artifacts of a PaaS control plane: buildpacks,
droplets and application packages. Each resource kind is backed by a local
directory or an object store. Uploaded packages are normalized before they
are stored.

Use "bitsgate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/bitsgate/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(archive.Cmd)
	rootCmd.AddCommand(blob.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
