package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/config"
	"github.com/pratik-mahalle/fleetfix/migrations"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer conn.Close()

	ran, err := RunMigrations(ctx, conn.DB, migrations.GetFS())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_hosts.sql", "002_remediation_actions.sql"}, ran)

	ran, err = RunMigrations(ctx, conn.DB, migrations.GetFS())
	require.NoError(t, err)
	assert.Empty(t, ran)

	var tables int
	require.NoError(t, conn.GetContext(ctx, &tables,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('hosts', 'remediation_actions', 'remediation_audit')`))
	assert.Equal(t, 3, tables)
}

func TestRunMigrations_FailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "broken.db"))
	require.NoError(t, err)
	defer conn.Close()

	broken := fstest.MapFS{
		"001_ok.sql":  {Data: []byte(`CREATE TABLE ok (id INTEGER);`)},
		"002_bad.sql": {Data: []byte(`CREATE TABLE nope (`)},
	}

	ran, err := RunMigrations(ctx, conn.DB, broken)
	require.Error(t, err)
	assert.Equal(t, []string{"001_ok.sql"}, ran)

	var recorded int
	require.NoError(t, conn.GetContext(ctx, &recorded, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, recorded)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestPendingMigrations(t *testing.T) {
	ctx := context.Background()
	conn, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "pending.db"))
	require.NoError(t, err)
	defer conn.Close()

	files := fstest.MapFS{
		"002_second.sql": {Data: []byte(`CREATE TABLE second (id INTEGER);`)},
		"001_first.sql":  {Data: []byte(`CREATE TABLE first (id INTEGER);`)},
		"README.md":      {Data: []byte(`not a migration`)},
	}

	pending, err := PendingMigrations(ctx, conn.DB, files)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_first.sql", "002_second.sql"}, pending)

	_, err = RunMigrations(ctx, conn.DB, files)
	require.NoError(t, err)

	pending, err = PendingMigrations(ctx, conn.DB, files)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
