// Package blob implements subcommands that operate on the configured
// stores directly, without a running server.
package blob

import (
	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/cmdutil"
	"github.com/marmos91/bitsgate/pkg/blobstore"
	"github.com/marmos91/bitsgate/pkg/config"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

var kindFlag string

// Cmd is the blob subcommand.
var Cmd = &cobra.Command{
	Use:   "blob",
	Short: "Store, fetch and delete blobs",
	Long: `Operate on the configured blob stores without a running server.

Uploads of kind packages are normalized exactly as the server does.

Subcommands:
  put  Store a file
  get  Resolve a blob, optionally copying it to a local file
  rm   Delete a blob`,
}

func init() {
	cmdutil.AddOutputFlags(Cmd)
	Cmd.PersistentFlags().StringVarP(&kindFlag, "kind", "k", "", "Resource kind (buildpacks|droplets|packages)")
	_ = Cmd.MarkPersistentFlagRequired("kind")

	Cmd.AddCommand(putCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(rmCmd)
}

func newService(cmd *cobra.Command) (*gateway.Service, gateway.Kind, error) {
	kind, err := gateway.ParseKind(kindFlag)
	if err != nil {
		return nil, "", err
	}
	cfg, err := cmdutil.LoadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	svc, err := config.CreateGateway(cmd.Context(), cfg, cmdutil.NewLogger(cmd).Logger, nil, nil)
	if err != nil {
		return nil, "", err
	}
	return svc, kind, nil
}

// HandleView is the printable form of a blob handle.
type HandleView struct {
	Key         string `json:"key" yaml:"key"`
	Size        int64  `json:"size" yaml:"size"`
	LocalPath   string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	PublicURL   string `json:"public_url,omitempty" yaml:"public_url,omitempty"`
	InternalURL string `json:"internal_url,omitempty" yaml:"internal_url,omitempty"`
}

func viewOf(h *blobstore.Handle) HandleView {
	return HandleView{
		Key:         h.Key,
		Size:        h.Size,
		LocalPath:   h.LocalPath,
		PublicURL:   h.PublicURL,
		InternalURL: h.InternalURL,
	}
}

// Headers implements output.TableRenderer.
func (v HandleView) Headers() []string {
	return []string{"Key", "Size", "Location"}
}

// Rows implements output.TableRenderer.
func (v HandleView) Rows() [][]string {
	location := v.LocalPath
	if location == "" {
		location = v.PublicURL
	}
	return [][]string{{v.Key, units.BytesSize(float64(v.Size)), location}}
}
