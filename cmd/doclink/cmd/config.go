package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/config"
)

var configDump bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long:  "Shows project root, store, socket, spool and daemon status. No daemon required.",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configDump, "dump", false, "Print the effective configuration as TOML")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configDump {
		data, err := config.Marshal(settings)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	root := projectRoot()
	paths := app.NewPaths(root)
	paths.UseSpoolDir(root, settings.Spool.Dir)
	sockPath := socket.SocketPath(root)
	storePath := paths.StorePath(root, settings.Storage.Driver, settings.Storage.Path)
	if storePath == "" {
		storePath = "(in memory)"
	}

	client := socket.NewClient(sockPath)
	daemonRunning := client.Ping()
	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if daemonRunning {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}

	fmt.Printf("%s⚡ doclink config%s\n", colorBold, colorReset)
	fmt.Printf("  Root:       %s\n", root)
	fmt.Printf("  Config:     %s\n", paths.Config)
	fmt.Printf("  Storage:    %s %s\n", settings.Storage.Driver, storePath)
	fmt.Printf("  Socket:     %s\n", sockPath)
	if settings.Spool.Enabled {
		fmt.Printf("  Spool:      %s\n", paths.SpoolDir)
	}
	fmt.Printf("  Daemon:     %s\n", daemonStatus)

	if daemonRunning {
		if portData, err := os.ReadFile(paths.PortFile); err == nil {
			fmt.Printf("  HTTP API:   http://localhost:%s\n", strings.TrimSpace(string(portData)))
		}
	}

	return nil
}
