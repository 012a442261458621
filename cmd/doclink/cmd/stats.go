package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/socket"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daemon statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print stats as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sockPath := socket.SocketPath(root)
	client := socket.NewClient(sockPath)

	if !client.Ping() {
		return errDaemonNotRunning
	}

	result, err := client.Stats()
	if err != nil {
		return err
	}

	if statsJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	fmt.Print(formatStats(result))
	return nil
}
