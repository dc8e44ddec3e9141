package archive

import (
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/marmos91/bitsgate/cmd/bitsgate/cmdutil"
	"github.com/marmos91/bitsgate/pkg/archive"
)

var lsCmd = &cobra.Command{
	Use:   "ls <archive.zip>",
	Short: "List archive entries",
	Long: `List the entries of a zip archive in archive order.

Examples:
  bitsgate archive ls app.zip
  bitsgate archive ls app.zip -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

// EntryList renders archive entries as a table.
type EntryList []EntryView

// EntryView is the printable form of an archive entry.
type EntryView struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Mode   string `json:"mode" yaml:"mode"`
	Size   int64  `json:"size" yaml:"size"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// Headers implements output.TableRenderer.
func (l EntryList) Headers() []string {
	return []string{"Mode", "Size", "Kind", "Name"}
}

// Rows implements output.TableRenderer.
func (l EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		name := e.Name
		if e.Target != "" {
			name += " -> " + e.Target
		}
		rows = append(rows, []string{e.Mode, units.BytesSize(float64(e.Size)), e.Kind, name})
	}
	return rows
}

func toEntryList(entries []archive.Entry) EntryList {
	list := make(EntryList, 0, len(entries))
	for _, e := range entries {
		list = append(list, EntryView{
			Name:   e.Name,
			Kind:   e.Kind.String(),
			Mode:   "0" + strconv.FormatUint(uint64(e.Mode.Perm()), 8),
			Size:   e.Size,
			Target: e.LinkTarget,
		})
	}
	return list
}

func runLs(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	entries, err := e.codec.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return cmdutil.PrintOutput(cmd.OutOrStdout(), toEntryList(entries))
}
