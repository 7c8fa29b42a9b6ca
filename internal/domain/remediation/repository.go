package remediation

import (
	"context"
	"time"
)

// Repository is the action store. Every status change goes through Create, Transition
// or ClaimNext, each of which writes its audit records in the same unit of work.
type Repository interface {
	// Create persists a new action with its initial audit records. It returns a
	// *ConflictError when another active action holds the same dedup key.
	Create(ctx context.Context, action *Action, records []*AuditRecord) error

	GetByID(ctx context.Context, id string) (*Action, error)

	List(ctx context.Context, filter Filter, limit, offset int) ([]*Action, int64, error)

	// Transition applies t only if the action is still in t.From, returning a
	// *StateError carrying the actual status otherwise.
	Transition(ctx context.Context, t Transition) (*Action, error)

	// ClaimNext moves the oldest APPROVED action of a host to EXECUTING, provided the
	// host has nothing EXECUTING. It returns nil when there is nothing to claim.
	ClaimNext(ctx context.Context, hostID, actor string, at time.Time) (*Action, error)

	CountByStatus(ctx context.Context, hostID string) (map[ActionStatus]int64, error)

	History(ctx context.Context, actionID string) ([]*AuditRecord, error)

	// AuditSince pages the global audit stream in (timestamp, id) order after cursor.
	AuditSince(ctx context.Context, cursor AuditCursor, limit int) ([]*AuditRecord, error)
}
