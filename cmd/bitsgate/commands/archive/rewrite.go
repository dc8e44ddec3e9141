package archive

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/pkg/archive"
)

var extractCmd = &cobra.Command{
	Use:   "extract <archive.zip> <dir>",
	Short: "Safely extract an archive into a directory",
	Long: `Extract an archive the way the gateway extracts uploads: entries and
symlinks that would escape <dir> are rejected, existing files are never
overwritten, and permissions are normalized to at least u+rw.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		if err := archive.NewExtractor(e.codec, e.logger.Logger).Extract(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s into %s\n", args[0], args[1])
		return nil
	},
}

var appendCmd = &cobra.Command{
	Use:   "append <archive.zip> <dir>",
	Short: "Add a directory tree to an archive",
	Long: `Add every file and symlink under <dir> to the archive, creating it if
needed. Entry names are relative to <dir>.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		if err := archive.NewBuilder(e.codec, e.logger.Logger).Append(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Appended %s to %s\n", args[1], args[0])
		return nil
	},
}

var stripBatch int

var stripCmd = &cobra.Command{
	Use:   "strip <archive.zip>",
	Short: "Remove directory entries from an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		batch := e.cfg.Archive.DeleteBatchSize
		if stripBatch > 0 {
			batch = stripBatch
		}
		if err := archive.NewStripper(e.codec, batch, e.logger.Logger).StripDirectoryEntries(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stripped directory entries from %s\n", args[0])
		return nil
	},
}

func init() {
	stripCmd.Flags().IntVar(&stripBatch, "batch-size", 0, "Entries deleted per codec call (default: archive.delete_batch_size)")
}
