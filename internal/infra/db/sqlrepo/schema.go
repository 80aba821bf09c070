package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(64) PRIMARY KEY,
  first_name VARCHAR(100) NOT NULL,
  last_name VARCHAR(100) NOT NULL,
  role VARCHAR(16) NOT NULL,
  store_id VARCHAR(64) NOT NULL DEFAULT '',
  market_id VARCHAR(64) NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  INDEX idx_users_name (last_name, first_name)
)`,
	`CREATE TABLE IF NOT EXISTS org_units (
  id VARCHAR(64) PRIMARY KEY,
  kind VARCHAR(16) NOT NULL,
  name VARCHAR(200) NOT NULL,
  parent_id VARCHAR(64) NOT NULL DEFAULT '',
  INDEX idx_org_units_name (kind, name)
)`,
	`CREATE TABLE IF NOT EXISTS performance_metrics (
  entity_kind VARCHAR(16) NOT NULL,
  entity_id VARCHAR(64) NOT NULL,
  period_year INT NOT NULL,
  period_month INT NOT NULL,
  is_goal BOOLEAN NOT NULL DEFAULT FALSE,
  field VARCHAR(64) NOT NULL,
  value VARCHAR(64) NOT NULL,
  PRIMARY KEY (entity_kind, entity_id, period_year, period_month, is_goal, field)
)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
  id VARCHAR(36) PRIMARY KEY,
  created_at DATETIME(6) NOT NULL,
  user_id VARCHAR(64) NOT NULL,
  query_text TEXT NOT NULL,
  entity_kind VARCHAR(16) NOT NULL,
  entity_id VARCHAR(64) NOT NULL,
  period VARCHAR(16) NOT NULL,
  status VARCHAR(16) NOT NULL,
  confidence DOUBLE NOT NULL,
  mismatch_count INT NOT NULL,
  mismatches JSON NOT NULL,
  enforcement VARCHAR(16) NOT NULL,
  admin_override BOOLEAN NOT NULL,
  constrained BOOLEAN NOT NULL,
  model VARCHAR(100) NOT NULL,
  disclaimer TEXT NOT NULL,
  error TEXT NOT NULL,
  INDEX idx_audit_created (created_at)
)`,
	`CREATE TABLE IF NOT EXISTS audit_mismatch_fields (
  entry_id VARCHAR(36) NOT NULL,
  created_at DATETIME(6) NOT NULL,
  field VARCHAR(100) NOT NULL,
  severity VARCHAR(8) NOT NULL,
  INDEX idx_audit_fields_created (created_at, field)
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL,
  store_id TEXT NOT NULL DEFAULT '',
  market_id TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE
)`,
	`CREATE INDEX IF NOT EXISTS idx_users_name ON users (lower(last_name), lower(first_name))`,
	`CREATE TABLE IF NOT EXISTS org_units (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  parent_id TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS performance_metrics (
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  period_year INTEGER NOT NULL,
  period_month INTEGER NOT NULL,
  is_goal BOOLEAN NOT NULL DEFAULT FALSE,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (entity_kind, entity_id, period_year, period_month, is_goal, field)
)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
  id TEXT PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL,
  user_id TEXT NOT NULL,
  query_text TEXT NOT NULL,
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  period TEXT NOT NULL,
  status TEXT NOT NULL,
  confidence DOUBLE PRECISION NOT NULL,
  mismatch_count INTEGER NOT NULL,
  mismatches JSONB NOT NULL,
  enforcement TEXT NOT NULL,
  admin_override BOOLEAN NOT NULL,
  constrained BOOLEAN NOT NULL,
  model TEXT NOT NULL,
  disclaimer TEXT NOT NULL,
  error TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_entries (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_mismatch_fields (
  entry_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  field TEXT NOT NULL,
  severity TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_fields_created ON audit_mismatch_fields (created_at, field)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  role TEXT NOT NULL,
  store_id TEXT NOT NULL DEFAULT '',
  market_id TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT 1
)`,
	`CREATE INDEX IF NOT EXISTS idx_users_name ON users (last_name, first_name)`,
	`CREATE TABLE IF NOT EXISTS org_units (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  parent_id TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS performance_metrics (
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  period_year INTEGER NOT NULL,
  period_month INTEGER NOT NULL,
  is_goal BOOLEAN NOT NULL DEFAULT 0,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (entity_kind, entity_id, period_year, period_month, is_goal, field)
)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
  id TEXT PRIMARY KEY,
  created_at DATETIME NOT NULL,
  user_id TEXT NOT NULL,
  query_text TEXT NOT NULL,
  entity_kind TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  period TEXT NOT NULL,
  status TEXT NOT NULL,
  confidence REAL NOT NULL,
  mismatch_count INTEGER NOT NULL,
  mismatches TEXT NOT NULL,
  enforcement TEXT NOT NULL,
  admin_override BOOLEAN NOT NULL,
  constrained BOOLEAN NOT NULL,
  model TEXT NOT NULL,
  disclaimer TEXT NOT NULL,
  error TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_entries (created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_mismatch_fields (
  entry_id TEXT NOT NULL,
  created_at DATETIME NOT NULL,
  field TEXT NOT NULL,
  severity TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_fields_created ON audit_mismatch_fields (created_at, field)`,
}

// Migrate creates the directory, metrics and audit tables. Statements run one
// at a time since the MySQL driver rejects multi-statement strings.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case MySQL:
		stmts = mysqlSchema
	case Postgres:
		stmts = postgresSchema
	default:
		stmts = sqliteSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return eris.Wrapf(err, "sqlrepo: migrate %s", d)
		}
	}
	return nil
}
