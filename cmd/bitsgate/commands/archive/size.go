package archive

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/pkg/archive"
)

var sizeBytes bool

var sizeCmd = &cobra.Command{
	Use:   "size <archive.zip>",
	Short: "Print the total uncompressed size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}

		n, err := archive.Size(cmd.Context(), e.codec, args[0])
		if err != nil {
			return err
		}
		if sizeBytes {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), units.BytesSize(float64(n)))
		return nil
	},
}

func init() {
	sizeCmd.Flags().BoolVar(&sizeBytes, "bytes", false, "Print the size in bytes")
}
