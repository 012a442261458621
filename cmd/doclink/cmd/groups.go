package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/ports"
)

var groupsCmd = &cobra.Command{
	Use:   "groups [sample_id]",
	Short: "Print match groups as JSON",
	Long: "Prints match groups. With the daemon running this is its in-memory view;\n" +
		"otherwise the groups are read from the store.",
	Args: cobra.MaximumNArgs(1),
	RunE: runGroups,
}

func runGroups(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sampleID := ""
	if len(args) == 1 {
		sampleID = args[0]
	}

	client := socket.NewClient(socket.SocketPath(root))
	if client.Ping() {
		res, err := client.Groups(sampleID)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res.Groups)
	}

	a, err := openOffline(root, settings)
	if err != nil {
		return err
	}
	defer a.Stop()

	groups, err := storedGroups(a, sampleID)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), groups)
}

// storedGroups reads groups from the store, optionally only sampleID's.
func storedGroups(a *app.App, sampleID string) ([]ports.GroupRecord, error) {
	all, err := a.Store.ScanGroups()
	if err != nil {
		return nil, fmt.Errorf("scan groups: %w", err)
	}
	if sampleID == "" {
		return all, nil
	}
	for _, g := range all {
		if g.SampleID == sampleID {
			return []ports.GroupRecord{g}, nil
		}
	}
	return nil, fmt.Errorf("no match group for sample %q", sampleID)
}
