package remediation

import (
	"context"
	"time"
)

// Service is the management surface used by operators and the alert engine.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Action, error)
	Approve(ctx context.Context, actionID, approver string) (*Action, error)
	Reject(ctx context.Context, actionID, actor, reason string) (*Action, error)
	Get(ctx context.Context, actionID string) (*Action, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Action, int64, error)
	History(ctx context.Context, actionID string) ([]*AuditRecord, error)
	Summary(ctx context.Context, hostID string) (map[ActionStatus]int64, error)
}

// Dispatcher hands out the next command for a checking-in host.
type Dispatcher interface {
	NextCommandFor(ctx context.Context, hostID string) (*Command, error)
}

// Reconciler applies results reported by hosts. A result for an action that is not
// EXECUTING is ignored; applied reports whether the action changed.
type Reconciler interface {
	RecordResult(ctx context.Context, hostID string, result CommandResult) (applied bool, err error)
}

// Expirer fails EXECUTING actions whose result never arrived.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time, timeouts map[ActionType]time.Duration) (int, error)
}

// Whitelist validates an action type and parameters against its template.
type Whitelist interface {
	Validate(actionType ActionType, params Parameters) (*ValidatedCommand, error)
	Render(actionType ActionType, params Parameters) (*ValidatedCommand, error)
}

// HostState answers the approval gate's only question about a host.
type HostState interface {
	IsHostPaused(ctx context.Context, hostID string) (bool, error)
}

// Notifier receives terminal outcomes. Calls are fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, action *Action, outcome Outcome)
}
