package host

import "context"

// Service manages the host registry and its maintenance flags.
type Service interface {
	Register(ctx context.Context, id, name, secret string) (*Host, error)
	Get(ctx context.Context, id string) (*Host, error)
	List(ctx context.Context, limit, offset int) ([]*Host, int64, error)
	SetMaintenance(ctx context.Context, id string, paused bool) (*Host, error)
	Authenticate(ctx context.Context, id, secret string) (*Host, error)
	TouchCheckIn(ctx context.Context, id string) error
	IsHostPaused(ctx context.Context, id string) (bool, error)
}
