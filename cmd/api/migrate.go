package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/auditor/internal/config"
	"github.com/bryanwahyu/auditor/internal/infra/db"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/auditor/internal/infra/queue/riverq"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

// migrateAction opens the database without auto-migration and runs fn on it.
func migrateAction(fn func(s *sqlstore.Store, cfg *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Database.AutoMigrate = false
		log := config.NewLogger(cfg)

		store, err := db.Open(cmd.Context(), cfg, log.WithField("pkg", "store"))
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(store, cfg)
	}
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: migrateAction(func(s *sqlstore.Store, cfg *config.Config) error {
				if err := sqlstore.Migrate(s.DB(), s.Dialect(), config.NewLogger(cfg)); err != nil {
					return err
				}
				if cfg.Queue.Backend != "river" {
					return nil
				}
				return migrateRiver(cfg)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: migrateAction(func(s *sqlstore.Store, cfg *config.Config) error {
				return sqlstore.MigrateDown(s.DB(), s.Dialect(), config.NewLogger(cfg))
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: migrateAction(func(s *sqlstore.Store, cfg *config.Config) error {
				return sqlstore.MigrationStatus(s.DB(), s.Dialect(), config.NewLogger(cfg))
			}),
		},
	)
}

func migrateRiver(cfg *config.Config) error {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer pool.Close()
	return riverq.Migrate(ctx, pool)
}
