package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/fleetfix/internal/db"
	"github.com/pratik-mahalle/fleetfix/migrations"
)

// NewTestDB opens a file-backed SQLite database in a temp dir with all migrations applied.
// It is closed automatically when the test ends.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "fleetfix_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if _, err := db.RunMigrations(ctx, conn.DB, migrations.GetFS()); err != nil {
		conn.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SeedHost inserts a host row directly, bypassing secret hashing.
func SeedHost(t *testing.T, conn *sqlx.DB, id string, paused bool) {
	t.Helper()

	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO hosts (id, name, is_paused, secret_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, id, paused, "unused", now, now)
	if err != nil {
		t.Fatalf("Failed to seed host %s: %v", id, err)
	}
}

// Clock is a settable time source for deterministic ordering in tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current instant and advances the clock by one second.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
