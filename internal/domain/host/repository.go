package host

import (
	"context"
	"time"
)

// Repository persists hosts.
type Repository interface {
	Create(ctx context.Context, h *Host) error
	GetByID(ctx context.Context, id string) (*Host, error)
	List(ctx context.Context, limit, offset int) ([]*Host, int64, error)
	SetPaused(ctx context.Context, id string, paused bool, at time.Time) error
	TouchCheckIn(ctx context.Context, id string, at time.Time) error
}
