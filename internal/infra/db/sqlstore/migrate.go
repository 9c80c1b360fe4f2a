package sqlstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var migrationsFS embed.FS

func (d Dialect) gooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return string(d)
}

func prepareGoose(d Dialect, log logrus.FieldLogger) (string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	goose.SetLogger(log.WithField("component", "migrations"))
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return "", err
	}
	return "migrations/" + string(d), nil
}

// Migrate applies every pending migration for the dialect.
func Migrate(db *sql.DB, d Dialect, log logrus.FieldLogger) error {
	dir, err := prepareGoose(d, log)
	if err != nil {
		return err
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the latest migration.
func MigrateDown(db *sql.DB, d Dialect, log logrus.FieldLogger) error {
	dir, err := prepareGoose(d, log)
	if err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// MigrationStatus logs the applied state of each migration.
func MigrationStatus(db *sql.DB, d Dialect, log logrus.FieldLogger) error {
	dir, err := prepareGoose(d, log)
	if err != nil {
		return err
	}
	return goose.Status(db, dir)
}
