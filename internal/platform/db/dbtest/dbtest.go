// Package dbtest opens a migrated, emptied PostgreSQL database for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/maintrack/maintrack/internal/platform/db"
)

// EnvDSN names the variable holding the test database DSN.
const EnvDSN = "MAINTRACK_TEST_PG_DSN"

// Open skips the test unless EnvDSN is set. The returned pool is closed on cleanup.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE audit_logs, user_sessions, user_roles, role_permissions, roles, sections, users, permissions RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}
