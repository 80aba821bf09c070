package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/advisor-guard/internal/infra/db/sqlrepo"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	ctx := context.Background()
	conn, d, err := Open(ctx, Options{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "guard.db"), Migrate: true})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, sqlrepo.SQLite, d)
	var n int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries").Scan(&n))
	assert.Zero(t, n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), Options{Driver: "oracle"})
	assert.Error(t, err)
}
