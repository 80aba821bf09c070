// Package db opens the configured SQL backend.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/infra/db/mysql"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/postgres"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlite"
	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
)

type Options struct {
	Driver  string
	DSN     string
	Migrate bool

	// Pool limits apply to MySQL and PostgreSQL; SQLite is pinned to one
	// connection.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects with the driver for o.Driver and, when o.Migrate is set,
// applies the schema.
func Open(ctx context.Context, o Options) (*sql.DB, sqlrepo.Dialect, error) {
	d, err := sqlrepo.ParseDialect(o.Driver)
	if err != nil {
		return nil, "", err
	}

	var conn *sql.DB
	switch d {
	case sqlrepo.MySQL:
		conn, err = mysql.Connect(ctx, o.DSN)
	case sqlrepo.Postgres:
		conn, err = postgres.Connect(ctx, o.DSN)
	default:
		conn, err = sqlite.Connect(ctx, o.DSN)
	}
	if err != nil {
		return nil, "", err
	}
	if d != sqlrepo.SQLite {
		conn.SetMaxOpenConns(o.MaxOpenConns)
		conn.SetMaxIdleConns(o.MaxIdleConns)
		conn.SetConnMaxLifetime(o.ConnMaxLifetime)
	}

	if o.Migrate {
		if err := sqlrepo.Migrate(ctx, conn, d); err != nil {
			conn.Close()
			return nil, "", eris.Wrap(err, "db: migrate")
		}
		zap.L().Info("db: schema up to date", zap.String("dialect", string(d)))
	}
	return conn, d, nil
}
