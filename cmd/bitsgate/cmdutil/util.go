// Package cmdutil provides shared utilities for bitsgate commands.
package cmdutil

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/internal/cli/output"
	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/config"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values of the offline commands.
type GlobalFlags struct {
	Output  string
	Verbose bool
}

// AddOutputFlags registers --output and --verbose on cmd.
func AddOutputFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "Log component activity to stderr")
}

// ConfigPath returns the value of the inherited --config flag.
func ConfigPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

// LoadConfig loads the configuration named by --config. Offline commands
// tolerate a missing default file and run on defaults plus environment.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := ConfigPath(cmd)
	if path != "" {
		return config.MustLoad(path)
	}
	return config.Load("")
}

// NewLogger returns the logger for offline commands: WARN and above on
// stderr, or everything from DEBUG up with --verbose.
func NewLogger(cmd *cobra.Command) *logger.Logger {
	level := "WARN"
	if Flags.Verbose {
		level = "DEBUG"
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level, "text", false)
}

// Codec builds the archive codec selected by the configuration.
func Codec(cfg *config.Config) (archive.Codec, error) {
	codec, err := config.CreateCodec(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive codec: %w", err)
	}
	return codec, nil
}

// PrintOutput prints data in the format selected by --output.
func PrintOutput(w io.Writer, data any) error {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return err
	}
	return output.Print(w, format, data)
}
