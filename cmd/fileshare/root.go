package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are shared by every subcommand that loads configuration.
type globalFlags struct {
	configPath string
	mode       string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "fileshare",
		Short:         "Share files through expiring download links",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&g.mode, "mode", "", "Operating mode: strict or dev (overrides config)")

	root.AddCommand(newServeCmd(&g), newMigrateCmd(&g), newVersionCmd())
	return root
}

// loadConfig loads configuration and builds the process logger from it.
// Load errors are reported through a bootstrap logger at info level.
func loadConfig(g *globalFlags, overrides config.FlagOverrides) (*config.Config, *slog.Logger, error) {
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath:    g.configPath,
		ModeFlag:      g.mode,
		FlagOverrides: overrides,
		Logger:        bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logutil.ParseLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fileshare %s\n", version)
		},
	}
}
