package main

import (
	"errors"

	"github.com/spf13/cobra"

	"hyperadmin/internal/config"
	"hyperadmin/internal/db"
	"hyperadmin/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverPostgres {
				return errors.New("migrate requires STORE_DRIVER=postgres")
			}
			logger := logging.New(cfg.LogFormat, cfg.Debug)

			conn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := db.RunMigrations(cmd.Context(), conn); err != nil {
				return err
			}
			logger.Info("migrations applied", "db", cfg.StoreDBName)
			return nil
		},
	}
}
