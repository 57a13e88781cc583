package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/newsdesk/internal/config"
)

var (
	cfg    config.Config
	logger *slog.Logger

	dataDir        string
	durableBackend string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "newsdesk",
	Short: "Newsdesk is the admin console of a news portal",
	Long: `Admin console session service for a news portal: login, logout,
remember-me sessions and activity-driven session extension.

Configuration is read from NEWSDESK_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		flags := cmd.Flags()
		if flags.Changed("data-dir") {
			loaded.DataDir = dataDir
		}
		if flags.Changed("durable-backend") {
			loaded.DurableBackend = durableBackend
		}
		if flags.Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		applyServeFlags(cmd, &loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		logger = cfg.Logger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data-dir", "./data", "Directory for the bbolt session file")
	pf.StringVar(&durableBackend, "durable-backend", config.BackendBBolt, "Durable session backend: bbolt, postgres or redis")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
}
