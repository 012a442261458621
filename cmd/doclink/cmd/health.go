package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/domain/status"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon status",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	sockPath := socket.SocketPath(root)
	client := socket.NewClient(sockPath)

	if !client.Ping() {
		// Fall back to the last status the daemon wrote.
		if sd, err := status.ReadJSON(app.NewPaths(root).Status); err == nil {
			fmt.Print(formatLastStatus(sd))
			return nil
		}
		fmt.Println("⚡ doclink daemon is not running")
		return nil
	}

	health, err := client.Health()
	if err != nil {
		return err
	}

	fmt.Print(formatHealth(health))
	return nil
}
