package main

import (
	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(g, config.FlagOverrides{DataDir: &dataDir})
			if err != nil {
				return err
			}

			drv, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("migration failed", "error", err)
				return err
			}
			defer drv.Close()

			logger.Info("schema up to date", "driver", drv.Name(), "data_dir", cfg.Store.DataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
	return cmd
}
