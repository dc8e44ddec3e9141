package blob

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kind, err := newService(cmd)
		if err != nil {
			return err
		}
		if err := svc.Delete(cmd.Context(), kind, args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", kind, args[0])
		return nil
	},
}
