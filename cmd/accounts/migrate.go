package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/accounts/internal/config"
	"github.com/Skotchmaster/accounts/internal/repo"
	pkgcfg "github.com/Skotchmaster/accounts/pkg/config"
	pkgdb "github.com/Skotchmaster/accounts/pkg/db"
	"github.com/Skotchmaster/accounts/pkg/logging"
)

func newMigrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the accounts schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if err := pkgcfg.NonEmpty(cfg.DatabaseURL, "DATABASE_URL"); err != nil {
				return err
			}
			l := logging.New(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			}()

			if err := repo.Migrate(db.WithContext(ctx)); err != nil {
				return err
			}
			l.Info("migration complete")
			return nil
		},
	}
}
