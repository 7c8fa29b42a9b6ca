package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/tracing"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// DefaultOperator is recorded when an approval or rejection carries no identity.
	DefaultOperator = "operator"
)

// RemediationOptions tunes RemediationService.
type RemediationOptions struct {
	// NotifyOnSuccess is used when a create request does not say whether it wants
	// a notification for successful completion.
	NotifyOnSuccess bool
	// DefaultListLimit applies when List is called without a limit.
	DefaultListLimit int
	Now              func() time.Time
}

// RemediationService implements remediation.Service
type RemediationService struct {
	repo      remediation.Repository
	whitelist remediation.Whitelist
	hosts     remediation.HostState
	opts      RemediationOptions
	logger    *logger.Logger
}

// NewRemediationService creates a new remediation service
func NewRemediationService(
	repo remediation.Repository,
	whitelist remediation.Whitelist,
	hosts remediation.HostState,
	log *logger.Logger,
	opts RemediationOptions,
) *RemediationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultListLimit <= 0 {
		opts.DefaultListLimit = defaultListLimit
	}
	return &RemediationService{
		repo:      repo,
		whitelist: whitelist,
		hosts:     hosts,
		opts:      opts,
		logger:    log,
	}
}

// Create validates a request against the whitelist, runs the approval gate and
// persists the action with its audit trail. Nothing is stored on error.
func (s *RemediationService) Create(ctx context.Context, req remediation.CreateRequest) (*remediation.Action, error) {
	ctx, span := tracing.StartSpan(ctx, "remediation.create",
		attribute.String("host_id", req.HostID),
		attribute.String("action_type", string(req.ActionType)),
	)
	defer span.End()

	if req.HostID == "" {
		metrics.RecordCreateRefused("validation")
		return nil, &remediation.ValidationError{ActionType: req.ActionType, Reason: "host_id is required"}
	}

	validated, err := s.whitelist.Validate(req.ActionType, req.Parameters)
	if err != nil {
		metrics.RecordCreateRefused("validation")
		return nil, err
	}

	paused, err := s.hosts.IsHostPaused(ctx, req.HostID)
	if err != nil {
		if errors.Is(err, host.ErrNotFound) {
			metrics.RecordCreateRefused("validation")
			return nil, &remediation.ValidationError{ActionType: req.ActionType, Reason: fmt.Sprintf("unknown host %q", req.HostID)}
		}
		return nil, fmt.Errorf("failed to read host state: %w", err)
	}

	key, err := remediation.DedupKey(req.HostID, validated.ActionType, validated.Parameters)
	if err != nil {
		return nil, err
	}

	notify := s.opts.NotifyOnSuccess
	if req.NotifyOnSuccess != nil {
		notify = *req.NotifyOnSuccess
	}

	now := s.opts.Now().UTC()
	action := &remediation.Action{
		HostID:          req.HostID,
		ActionType:      validated.ActionType,
		Parameters:      validated.Parameters,
		Status:          remediation.ActionStatusPending,
		Origin:          req.Origin,
		NotifyOnSuccess: notify,
		DedupKey:        key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	records := []*remediation.AuditRecord{{
		ToStatus:  remediation.ActionStatusPending,
		Actor:     req.Origin.Actor(),
		Timestamp: now,
	}}

	decision := remediation.Decide(paused)
	approval := "manual"
	if decision.AutoApprove {
		approval = "auto"
		action.Status = remediation.ActionStatusApproved
		action.ApprovedBy = decision.ApprovedBy
		action.ApprovedAt = &now
		records = append(records, &remediation.AuditRecord{
			FromStatus: remediation.ActionStatusPending,
			ToStatus:   remediation.ActionStatusApproved,
			Actor:      decision.ApprovedBy,
			Timestamp:  now,
		})
	}

	if err := s.repo.Create(ctx, action, records); err != nil {
		var conflict *remediation.ConflictError
		if errors.As(err, &conflict) {
			metrics.RecordCreateRefused("conflict")
			s.logger.Ctx(ctx).WithFields(map[string]interface{}{
				"host_id":     req.HostID,
				"action_type": req.ActionType,
				"existing_id": conflict.ExistingID,
			}).Info("Remediation already in flight")
		}
		return nil, err
	}

	metrics.RecordActionCreated(string(action.ActionType), approval)
	s.logger.Ctx(ctx).WithFields(map[string]interface{}{
		"action_id":   action.ID,
		"host_id":     action.HostID,
		"action_type": action.ActionType,
		"status":      action.Status,
		"actor":       req.Origin.Actor(),
	}).Info("Remediation action created")

	return action, nil
}

// Approve moves a PENDING action to APPROVED on behalf of an operator.
func (s *RemediationService) Approve(ctx context.Context, actionID, approver string) (*remediation.Action, error) {
	if approver == "" {
		approver = DefaultOperator
	}
	return applyTransition(ctx, s.repo, s.logger, remediation.Transition{
		ActionID: actionID,
		From:     remediation.ActionStatusPending,
		To:       remediation.ActionStatusApproved,
		Actor:    approver,
		At:       s.opts.Now(),
	})
}

// Reject moves a PENDING action to REJECTED. The reason is kept on the action and
// in the audit record.
func (s *RemediationService) Reject(ctx context.Context, actionID, actor, reason string) (*remediation.Action, error) {
	if actor == "" {
		actor = DefaultOperator
	}
	return applyTransition(ctx, s.repo, s.logger, remediation.Transition{
		ActionID: actionID,
		From:     remediation.ActionStatusPending,
		To:       remediation.ActionStatusRejected,
		Actor:    actor,
		At:       s.opts.Now(),
		Note:     reason,
	})
}

// Get retrieves an action by ID
func (s *RemediationService) Get(ctx context.Context, actionID string) (*remediation.Action, error) {
	return s.repo.GetByID(ctx, actionID)
}

// List retrieves actions matching filter, newest first.
func (s *RemediationService) List(ctx context.Context, filter remediation.Filter, limit, offset int) ([]*remediation.Action, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, &remediation.ValidationError{Reason: fmt.Sprintf("unknown status %q", filter.Status)}
	}
	if filter.ActionType != "" && !filter.ActionType.IsValid() {
		return nil, 0, &remediation.ValidationError{ActionType: filter.ActionType, Reason: "unknown action type"}
	}
	if limit <= 0 {
		limit = s.opts.DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, filter, limit, offset)
}

// History returns the audit trail of an action in transition order.
func (s *RemediationService) History(ctx context.Context, actionID string) ([]*remediation.AuditRecord, error) {
	if _, err := s.repo.GetByID(ctx, actionID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, actionID)
}

// Summary counts actions per status, for one host or the whole fleet.
func (s *RemediationService) Summary(ctx context.Context, hostID string) (map[remediation.ActionStatus]int64, error) {
	return s.repo.CountByStatus(ctx, hostID)
}

// applyTransition runs one compare-and-swap transition and records its outcome.
// A StateError leaves the stored action untouched and is returned as is.
func applyTransition(ctx context.Context, repo remediation.Repository, log *logger.Logger, t remediation.Transition) (*remediation.Action, error) {
	ctx, span := tracing.StartSpan(ctx, "remediation.transition",
		attribute.String("action_id", t.ActionID),
		attribute.String("from", string(t.From)),
		attribute.String("to", string(t.To)),
	)
	defer span.End()

	fields := map[string]interface{}{
		"action_id": t.ActionID,
		"from":      t.From,
		"to":        t.To,
		"actor":     t.Actor,
	}

	action, err := repo.Transition(ctx, t)
	if err != nil {
		var stateErr *remediation.StateError
		if errors.As(err, &stateErr) {
			metrics.RecordStaleTransition(string(t.To))
			fields["actual"] = stateErr.Actual
			log.Ctx(ctx).WithFields(fields).Info("Transition refused")
		}
		return nil, err
	}

	fields["host_id"] = action.HostID
	metrics.RecordTransition(string(t.From), string(t.To))
	log.Ctx(ctx).WithFields(fields).Info("Remediation action transitioned")
	return action, nil
}
