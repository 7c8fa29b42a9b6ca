package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/tracing"
)

// DispatcherActor is recorded on APPROVED -> EXECUTING audit records.
const DispatcherActor = "dispatcher"

// DispatchService implements remediation.Dispatcher. It runs inside the check-in
// request; there is no background delivery loop.
type DispatchService struct {
	repo      remediation.Repository
	whitelist remediation.Whitelist
	logger    *logger.Logger
	now       func() time.Time
}

// NewDispatchService creates a new dispatcher
func NewDispatchService(repo remediation.Repository, whitelist remediation.Whitelist, log *logger.Logger, now func() time.Time) *DispatchService {
	if now == nil {
		now = time.Now
	}
	return &DispatchService{repo: repo, whitelist: whitelist, logger: log, now: now}
}

// NextCommandFor claims the host's oldest APPROVED action, provided nothing is
// already EXECUTING there, and returns its command descriptor. It returns nil when
// there is nothing to deliver.
func (d *DispatchService) NextCommandFor(ctx context.Context, hostID string) (*remediation.Command, error) {
	ctx, span := tracing.StartSpan(ctx, "remediation.dispatch", attribute.String("host_id", hostID))
	defer span.End()

	action, err := d.repo.ClaimNext(ctx, hostID, DispatcherActor, d.now())
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, nil
	}

	fields := map[string]interface{}{
		"action_id":   action.ID,
		"host_id":     hostID,
		"action_type": action.ActionType,
		"from":        remediation.ActionStatusApproved,
		"to":          remediation.ActionStatusExecuting,
		"actor":       DispatcherActor,
	}

	cmd, err := d.whitelist.Render(action.ActionType, action.Parameters)
	if err != nil {
		// The catalog changed since the action was queued; fail it rather than leave
		// the host's only in-flight slot occupied.
		reason := "command can no longer be rendered: " + err.Error()
		d.logger.Ctx(ctx).WithFields(fields).WithError(err).Warn("Claimed action cannot be rendered")
		_, terr := applyTransition(ctx, d.repo, d.logger, remediation.Transition{
			ActionID: action.ID,
			From:     remediation.ActionStatusExecuting,
			To:       remediation.ActionStatusFailed,
			Actor:    DispatcherActor,
			At:       d.now(),
			Error:    remediation.FailureMessage(reason).Payload,
			Note:     reason,
		})
		return nil, terr
	}

	var queued time.Duration
	if action.DispatchedAt != nil {
		queued = action.DispatchedAt.Sub(action.CreatedAt)
	}
	metrics.RecordTransition(string(remediation.ActionStatusApproved), string(remediation.ActionStatusExecuting))
	metrics.RecordDispatch(string(action.ActionType), queued)
	d.logger.Ctx(ctx).WithFields(fields).Info("Command dispatched")

	return &remediation.Command{
		ActionID:   action.ID,
		ActionType: action.ActionType,
		Template:   cmd.Template,
		Rendered:   cmd.Rendered,
		Parameters: action.Parameters,
	}, nil
}
