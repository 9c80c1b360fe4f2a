package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/auditor/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "auditor",
	Short:        "Website audit pipeline",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd, sweepCmd, tenantCmd, widgetCmd)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (default $CONFIG_PATH or config.yaml)")
}

// loadConfig resolves the config path: flag, then CONFIG_PATH, then config.yaml.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}
