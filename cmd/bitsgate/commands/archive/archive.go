// Package archive implements the offline archive subcommands. They run the
// same extractor, builder and stripper as the gateway against local files.
package archive

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/cmdutil"
	"github.com/marmos91/bitsgate/internal/logger"
	"github.com/marmos91/bitsgate/pkg/archive"
	"github.com/marmos91/bitsgate/pkg/config"
)

// Cmd is the archive subcommand.
var Cmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and rewrite zip archives",
	Long: `Inspect and rewrite zip archives with the configured codec.

Subcommands:
  ls       List archive entries
  size     Print the total uncompressed size
  extract  Safely extract an archive into a directory
  append   Add a directory tree to an archive
  strip    Remove directory entries from an archive`,
}

func init() {
	cmdutil.AddOutputFlags(Cmd)

	Cmd.AddCommand(lsCmd)
	Cmd.AddCommand(sizeCmd)
	Cmd.AddCommand(extractCmd)
	Cmd.AddCommand(appendCmd)
	Cmd.AddCommand(stripCmd)
}

// env bundles what every archive subcommand needs.
type env struct {
	cfg    *config.Config
	codec  archive.Codec
	logger *logger.Logger
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := cmdutil.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	codec, err := cmdutil.Codec(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, codec: codec, logger: cmdutil.NewLogger(cmd)}, nil
}
