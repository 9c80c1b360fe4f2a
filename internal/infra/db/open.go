// Package db opens the configured SQL database and wraps it in a sqlstore.Store.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/config"
	"github.com/bryanwahyu/auditor/internal/infra/db/mysql"
	"github.com/bryanwahyu/auditor/internal/infra/db/postgres"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlite"
	"github.com/bryanwahyu/auditor/internal/infra/db/sqlstore"
)

// Open connects using cfg.Database and applies migrations when AutoMigrate is set.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*sqlstore.Store, error) {
	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	switch dialect {
	case sqlstore.MySQL:
		conn, err = mysql.Connect(ctx, cfg.MySQLDSN(), cfg.Database.MaxOpenConns)
	case sqlstore.Postgres:
		conn, err = postgres.Connect(ctx, cfg.PostgresDSN(), cfg.Database.MaxOpenConns)
	case sqlstore.SQLite:
		conn, err = sqlite.Connect(ctx, cfg.Database.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", dialect, err)
	}

	if cfg.Database.AutoMigrate {
		if err := sqlstore.Migrate(conn, dialect, log); err != nil {
			conn.Close()
			return nil, err
		}
	}
	log.WithField("driver", dialect).Info("database ready")
	return sqlstore.New(conn, dialect, log), nil
}
