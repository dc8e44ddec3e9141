package blob

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/cmdutil"
)

var putKey string

var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a file",
	Long: `Store a local file under a key. Without --key a random UUID is used.

Examples:
  bitsgate blob put --kind droplets droplet.tgz --key 3f5c...
  bitsgate blob put --kind packages app.zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, kind, err := newService(cmd)
		if err != nil {
			return err
		}

		key := putKey
		if key == "" {
			key = uuid.NewString()
		}

		h, err := svc.Store(cmd.Context(), kind, args[0], key)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(cmd.OutOrStdout(), viewOf(h))
	},
}

func init() {
	putCmd.Flags().StringVar(&putKey, "key", "", "Blob key (default: random UUID)")
}
