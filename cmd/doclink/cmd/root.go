package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/config"
	"github.com/corey/doclink/internal/logger"
)

var (
	configFile string
	rootFlag   string
	jsonLog    bool
	verbose    bool

	// settings is loaded once per invocation by the root pre-run hook.
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "doclink",
	Short: "doclink — link documents to samples by shared values",
	Long: "Matches incoming JSON documents against registered samples and groups\n" +
		"documents that share attribute values, directly or transitively.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{Root: projectRoot(), File: configFile})
	if err != nil {
		return err
	}
	settings = cfg

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logger.Initialize(logger.Options{JSON: jsonLog || cfg.Log.JSON, Level: level})
}

// projectRoot returns the project root (--root, else cwd).
func projectRoot() string {
	if rootFlag != "" {
		abs, err := filepath.Abs(rootFlag)
		if err == nil {
			return abs
		}
		return rootFlag
	}
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// Execute runs the root command and prints any error with its hints.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file merged over .doclink/config.toml")
	pf.StringVar(&rootFlag, "root", "", "project root (default: current directory)")
	pf.BoolVar(&jsonLog, "json-log", false, "emit JSON log lines")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}
