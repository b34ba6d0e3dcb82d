package main

import (
	"github.com/spf13/cobra"

	"socialid/internal/platform/postgres"
)

// NewMigrateCmd applies pending database migrations.
func NewMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolConfig{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer db.Close()

			cmd.Println("Running migrations...")
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
