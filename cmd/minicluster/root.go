package main

import (
	"github.com/spf13/cobra"

	"github.com/tedsuo/minicluster/config"
)

var (
	configPath  string
	fileLogging bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "minicluster",
	Short:         "Ephemeral Accumulo clusters for tests",
	Long:          "minicluster starts ZooKeeper and a small Accumulo instance as local child processes and tears them down on exit.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or TOML config file (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVar(&fileLogging, "file-logging", false, "write process output to files in the log directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig applies command line flags on top of the file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("file-logging") {
		cfg.LogToFiles = fileLogging
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}
