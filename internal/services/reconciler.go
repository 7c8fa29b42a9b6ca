package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/tracing"
)

// WatchdogActor is recorded when an action is failed for never reporting back.
const WatchdogActor = "watchdog"

const expirePageSize = 100

// ReconcileService implements remediation.Reconciler and remediation.Expirer.
type ReconcileService struct {
	repo     remediation.Repository
	notifier remediation.Notifier
	logger   *logger.Logger
	now      func() time.Time
}

// NewReconcileService creates a new result reconciler
func NewReconcileService(repo remediation.Repository, notifier remediation.Notifier, log *logger.Logger, now func() time.Time) *ReconcileService {
	if now == nil {
		now = time.Now
	}
	return &ReconcileService{repo: repo, notifier: notifier, logger: log, now: now}
}

// HostActor renders the audit actor for a result reported by hostID.
func HostActor(hostID string) string {
	if hostID == "" {
		return "host"
	}
	return "host:" + hostID
}

// RecordResult applies a reported outcome to an EXECUTING action. Reports for unknown
// actions, actions in any other status, or actions owned by another host are logged
// and ignored, since hosts may deliver the same result more than once.
func (r *ReconcileService) RecordResult(ctx context.Context, hostID string, result remediation.CommandResult) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "remediation.reconcile",
		attribute.String("host_id", hostID),
		attribute.String("action_id", result.ActionID),
		attribute.String("outcome", string(result.Outcome.Kind)),
	)
	defer span.End()

	if !result.Outcome.IsValid() {
		return false, &remediation.ValidationError{Reason: fmt.Sprintf("unknown outcome %q", result.Outcome.Kind)}
	}

	fields := map[string]interface{}{
		"action_id": result.ActionID,
		"host_id":   hostID,
		"outcome":   result.Outcome.Kind,
	}
	ignore := func(reason string) (bool, error) {
		fields["reason"] = reason
		r.logger.Ctx(ctx).WithFields(fields).Info("Ignoring result report")
		metrics.RecordResult(string(result.Outcome.Kind), false)
		return false, nil
	}

	action, err := r.repo.GetByID(ctx, result.ActionID)
	if errors.Is(err, remediation.ErrNotFound) {
		return ignore("unknown action")
	}
	if err != nil {
		return false, err
	}
	if hostID != "" && action.HostID != hostID {
		fields["owner"] = action.HostID
		return ignore("action belongs to another host")
	}
	if action.Status != remediation.ActionStatusExecuting {
		fields["status"] = action.Status
		return ignore("action is not executing")
	}

	t := remediation.Transition{
		ActionID: action.ID,
		From:     remediation.ActionStatusExecuting,
		To:       result.Outcome.TargetStatus(),
		Actor:    HostActor(hostID),
		At:       r.now(),
	}
	if result.Outcome.Kind == remediation.OutcomeSuccess {
		t.Result = result.Outcome.Payload
	} else {
		t.Error = result.Outcome.Payload
		t.FailureKind = remediation.FailureExecution
		t.Note = (&remediation.ExecutionError{ActionID: action.ID, Payload: t.Error}).Error()
	}

	updated, err := applyTransition(ctx, r.repo, r.logger, t)
	if err != nil {
		var stateErr *remediation.StateError
		if errors.As(err, &stateErr) {
			fields["status"] = stateErr.Actual
			return ignore("action left executing concurrently")
		}
		return false, err
	}

	metrics.RecordResult(string(result.Outcome.Kind), true)
	r.notify(ctx, updated, result.Outcome)
	return true, nil
}

// ExpireStale fails EXECUTING actions whose dispatch is older than the timeout of
// their action type. Types without a timeout never expire.
func (r *ReconcileService) ExpireStale(ctx context.Context, now time.Time, timeouts map[remediation.ActionType]time.Duration) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "remediation.expire")
	defer span.End()

	expired := 0
	for _, actionType := range remediation.ActionTypes {
		timeout, ok := timeouts[actionType]
		if !ok || timeout <= 0 {
			continue
		}

		stale, err := r.staleActions(ctx, actionType, now, timeout)
		if err != nil {
			return expired, err
		}

		for _, action := range stale {
			timeoutErr := &remediation.TimeoutError{ActionID: action.ID, After: timeout}
			payload := timeoutErr.Payload()
			updated, err := applyTransition(ctx, r.repo, r.logger, remediation.Transition{
				ActionID:    action.ID,
				From:        remediation.ActionStatusExecuting,
				To:          remediation.ActionStatusFailed,
				Actor:       WatchdogActor,
				At:          now,
				Error:       payload,
				FailureKind: remediation.FailureTimeout,
				Note:        timeoutErr.Error(),
			})
			if err != nil {
				var stateErr *remediation.StateError
				if errors.As(err, &stateErr) {
					// A result arrived between listing and expiring.
					continue
				}
				return expired, err
			}

			expired++
			metrics.RecordTimeout(string(actionType))
			r.notify(ctx, updated, remediation.Failure(payload))
		}
	}
	return expired, nil
}

func (r *ReconcileService) staleActions(ctx context.Context, actionType remediation.ActionType, now time.Time, timeout time.Duration) ([]*remediation.Action, error) {
	filter := remediation.Filter{Status: remediation.ActionStatusExecuting, ActionType: actionType}

	var stale []*remediation.Action
	for offset := 0; ; offset += expirePageSize {
		page, total, err := r.repo.List(ctx, filter, expirePageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, a := range page {
			if a.DispatchedAt != nil && a.DispatchedAt.Add(timeout).Before(now) {
				stale = append(stale, a)
			}
		}
		if len(page) < expirePageSize || int64(offset+len(page)) >= total {
			return stale, nil
		}
	}
}

// notify hands a terminal outcome to the notifier: always for failures, for
// successes only when the action asked for it.
func (r *ReconcileService) notify(ctx context.Context, action *remediation.Action, outcome remediation.Outcome) {
	if r.notifier == nil {
		return
	}
	if action.Status == remediation.ActionStatusCompleted && !action.NotifyOnSuccess {
		return
	}
	r.notifier.Notify(ctx, action, outcome)
}
