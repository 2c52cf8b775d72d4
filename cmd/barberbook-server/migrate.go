package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"barberbook/internal/config"
	"barberbook/internal/store/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendPostgres {
				return fmt.Errorf("migrate needs store.backend=%s, got %s", config.BackendPostgres, cfg.StoreBackend)
			}

			ctx := cmd.Context()
			log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
			db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		},
	}
}
