package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up doclink for the current project",
	Long: "Creates .doclink/, writes a default config.toml (unless one exists) and\n" +
		"provisions the samples and matches collections in the configured store.",
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config.toml")
}

func runInit(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	paths := app.NewPaths(root)
	paths.UseSpoolDir(root, settings.Spool.Dir)

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("create .doclink dirs: %w", err)
	}

	if _, err := os.Stat(paths.Config); os.IsNotExist(err) || initForce {
		if err := config.Write(paths.Config, settings); err != nil {
			return err
		}
		fmt.Printf("⚡ wrote %s\n", paths.Config)
	}

	// The daemon provisioned its store when it opened it.
	if socket.NewClient(socket.SocketPath(root)).Ping() {
		fmt.Println("⚡ daemon running — store already provisioned")
		return nil
	}

	storePath := paths.StorePath(root, settings.Storage.Driver, settings.Storage.Path)
	store, err := app.OpenStore(settings.Storage.Driver, storePath)
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("cannot init: %s", diagnoseDBLock(root))
		}
		return err
	}
	defer store.Close()

	if err := store.EnsureCollections(); err != nil {
		return fmt.Errorf("provision collections: %w", err)
	}

	if storePath == "" {
		fmt.Printf("⚡ doclink initialized (%s store)\n", settings.Storage.Driver)
	} else {
		fmt.Printf("⚡ doclink initialized (%s store at %s)\n", settings.Storage.Driver, storePath)
	}
	return nil
}
