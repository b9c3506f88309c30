package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Spok95/batch-weighing/internal/config"
	"github.com/Spok95/batch-weighing/internal/infra/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Storage.Driver != config.StoragePostgres {
			return errors.New("migrate needs storage.driver=postgres")
		}
		return db.Migrate(cmd.Context(), cfg.Postgres.DSN, log)
	},
}
