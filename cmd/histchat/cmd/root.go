// Package cmd provides the CLI commands for histchat.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/config"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/internal/logging"
	"github.com/aryan-at-ul/Browser-history-as-chats-and-trends/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the histchat CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histchat",
		Short: "Chat with your browsing history",
		Long: `histchat answers questions about your browsing history using hybrid
search (vector + keyword) over indexed page content, with layered
fallbacks so a query always finds something useful.

Examples:
  histchat search "rust async runtime"
  histchat context "what have I been reading this week"
  histchat recent --limit 20
  histchat stats`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("histchat version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.histchat/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newContextCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newRecentCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the file logger before any command runs.
func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.WriteToStderr,
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the config path flag and loads configuration.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
