package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
)

// HostRepository implements host.Repository for PostgreSQL/SQLite
type HostRepository struct {
	db *sqlx.DB
}

// NewHostRepository creates a new host repository
func NewHostRepository(db *sqlx.DB) *HostRepository {
	return &HostRepository{db: db}
}

type hostRow struct {
	ID            string       `db:"id"`
	Name          string       `db:"name"`
	IsPaused      bool         `db:"is_paused"`
	SecretHash    string       `db:"secret_hash"`
	LastCheckInAt sql.NullTime `db:"last_check_in_at"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

const hostColumns = `id, name, is_paused, secret_hash, last_check_in_at, created_at, updated_at`

// Create registers a host
func (r *HostRepository) Create(ctx context.Context, h *host.Host) error {
	defer observe("insert", "hosts", time.Now())

	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hosts (`+hostColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.Name, h.IsPaused, h.SecretHash, nullTime(h.LastCheckInAt), h.CreatedAt, h.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return host.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create host: %w", err)
	}
	return nil
}

// GetByID retrieves a host by ID
func (r *HostRepository) GetByID(ctx context.Context, id string) (*host.Host, error) {
	defer observe("select", "hosts", time.Now())

	var row hostRow
	err := r.db.GetContext(ctx, &row, `SELECT `+hostColumns+` FROM hosts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, host.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves hosts ordered by id
func (r *HostRepository) List(ctx context.Context, limit, offset int) ([]*host.Host, int64, error) {
	defer observe("list", "hosts", time.Now())

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM hosts`); err != nil {
		return nil, 0, fmt.Errorf("failed to count hosts: %w", err)
	}

	var rows []hostRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+hostColumns+` FROM hosts ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list hosts: %w", err)
	}

	hosts := make([]*host.Host, 0, len(rows))
	for i := range rows {
		hosts = append(hosts, rows[i].toDomain())
	}
	return hosts, total, nil
}

// SetPaused flips the maintenance flag
func (r *HostRepository) SetPaused(ctx context.Context, id string, paused bool, at time.Time) error {
	defer observe("update", "hosts", time.Now())
	return r.updateOne(ctx, `UPDATE hosts SET is_paused = $1, updated_at = $2 WHERE id = $3`, paused, at.UTC(), id)
}

// TouchCheckIn records the time of the host's latest check-in
func (r *HostRepository) TouchCheckIn(ctx context.Context, id string, at time.Time) error {
	defer observe("update", "hosts", time.Now())
	return r.updateOne(ctx, `UPDATE hosts SET last_check_in_at = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *HostRepository) updateOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update host: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return host.ErrNotFound
	}
	return nil
}

func (row *hostRow) toDomain() *host.Host {
	return &host.Host{
		ID:            row.ID,
		Name:          row.Name,
		IsPaused:      row.IsPaused,
		SecretHash:    row.SecretHash,
		LastCheckInAt: timePtr(row.LastCheckInAt),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}
