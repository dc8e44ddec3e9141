package blob

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/cmdutil"
)

var getDest string

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a blob",
	Long: `Print where a blob is stored. With --dest, a blob in a local store is
copied to the given file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kind, err := newService(cmd)
		if err != nil {
			return err
		}

		h, err := svc.Lookup(cmd.Context(), kind, args[0])
		if err != nil {
			return err
		}

		if getDest == "" {
			return cmdutil.PrintOutput(cmd.OutOrStdout(), viewOf(h))
		}
		if h.LocalPath == "" {
			return fmt.Errorf("%s is stored remotely, download it from %s", args[0], h.PublicURL)
		}
		if err := copyFile(h.LocalPath, getDest); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s\n", args[0], getDest)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getDest, "dest", "", "Copy the blob to this file")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
