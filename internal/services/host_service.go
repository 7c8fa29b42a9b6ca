package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	apperrors "github.com/pratik-mahalle/fleetfix/internal/pkg/errors"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
)

// MinHostSecretLength is the shortest enrollment secret a host may register with.
const MinHostSecretLength = 16

// HostService implements host.Service
type HostService struct {
	repo       host.Repository
	bcryptCost int
	logger     *logger.Logger
	now        func() time.Time
}

// NewHostService creates a new host service
func NewHostService(repo host.Repository, bcryptCost int, log *logger.Logger, now func() time.Time) *HostService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if now == nil {
		now = time.Now
	}
	return &HostService{repo: repo, bcryptCost: bcryptCost, logger: log, now: now}
}

// Register enrolls a host with the secret it will present on check-in.
func (s *HostService) Register(ctx context.Context, id, name, secret string) (*host.Host, error) {
	if len(secret) < MinHostSecretLength {
		return nil, apperrors.BadRequest(fmt.Sprintf("host secret must be at least %d characters", MinHostSecretLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash host secret: %w", err)
	}
	if name == "" {
		name = id
	}

	h := &host.Host{ID: id, Name: name, SecretHash: string(hash)}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Ctx(ctx).WithFields(map[string]interface{}{
		"host_id": id,
		"name":    name,
	}).Info("Host registered")
	return h, nil
}

// Get retrieves a host by ID
func (s *HostService) Get(ctx context.Context, id string) (*host.Host, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves registered hosts ordered by id
func (s *HostService) List(ctx context.Context, limit, offset int) ([]*host.Host, int64, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// SetMaintenance toggles the maintenance flag. Actions already created keep the
// approval decision they got at creation time.
func (s *HostService) SetMaintenance(ctx context.Context, id string, paused bool) (*host.Host, error) {
	if err := s.repo.SetPaused(ctx, id, paused, s.now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Ctx(ctx).WithFields(map[string]interface{}{
		"host_id": id,
		"paused":  paused,
	}).Info("Host maintenance mode changed")
	return s.repo.GetByID(ctx, id)
}

// Authenticate checks a check-in secret. Unknown hosts and wrong secrets are
// indistinguishable to the caller.
func (s *HostService) Authenticate(ctx context.Context, id, secret string) (*host.Host, error) {
	h, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, host.ErrNotFound) {
		return nil, host.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.SecretHash), []byte(secret)); err != nil {
		return nil, host.ErrInvalidCredentials
	}
	return h, nil
}

// TouchCheckIn stamps last_check_in_at.
func (s *HostService) TouchCheckIn(ctx context.Context, id string) error {
	return s.repo.TouchCheckIn(ctx, id, s.now().UTC())
}

// IsHostPaused reports the maintenance flag read by the approval gate.
func (s *HostService) IsHostPaused(ctx context.Context, id string) (bool, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return h.IsPaused, nil
}
