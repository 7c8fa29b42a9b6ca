package remediation

import (
	"encoding/json"
	"time"
)

// Action is a single remediation requested against one host.
type Action struct {
	ID              string          `json:"id"`
	HostID          string          `json:"host_id"`
	ActionType      ActionType      `json:"action_type"`
	Parameters      Parameters      `json:"parameters"`
	Status          ActionStatus    `json:"status"`
	Origin          *Origin         `json:"origin,omitempty"`
	NotifyOnSuccess bool            `json:"notify_on_success"`
	DedupKey        string          `json:"dedup_key"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           json.RawMessage `json:"error,omitempty"`
	FailureKind     FailureKind     `json:"failure_kind,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	DispatchedAt    *time.Time      `json:"dispatched_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ActionType names a whitelisted remediation.
type ActionType string

const (
	ActionTypeRestartService ActionType = "restart-service"
	ActionTypeClearLogs      ActionType = "clear-logs"
	ActionTypeClearTemp      ActionType = "clear-temp"
	ActionTypeCustom         ActionType = "custom"
)

// ActionTypes lists every action type the hub knows about.
var ActionTypes = []ActionType{
	ActionTypeRestartService,
	ActionTypeClearLogs,
	ActionTypeClearTemp,
	ActionTypeCustom,
}

// IsValid reports whether at is part of the closed action-type set.
func (at ActionType) IsValid() bool {
	for _, known := range ActionTypes {
		if at == known {
			return true
		}
	}
	return false
}

// OriginKind identifies what created an action.
type OriginKind string

const (
	OriginUser   OriginKind = "user"
	OriginAlert  OriginKind = "alert"
	OriginSystem OriginKind = "system"
)

// Origin records who or what asked for an action.
type Origin struct {
	Kind OriginKind `json:"kind"`
	Ref  string     `json:"ref,omitempty"`
}

// Actor renders the origin for audit records.
func (o *Origin) Actor() string {
	if o == nil || o.Kind == "" {
		return string(OriginSystem)
	}
	if o.Ref == "" {
		return string(o.Kind)
	}
	return string(o.Kind) + ":" + o.Ref
}

// FailureKind tells execution failures reported by a host apart from watchdog timeouts.
type FailureKind string

const (
	FailureExecution FailureKind = "execution"
	FailureTimeout   FailureKind = "timeout"
)

// AuditRecord is one immutable entry in an action's transition history.
// FromStatus is empty for the record written at creation.
type AuditRecord struct {
	ID         string       `json:"id"`
	ActionID   string       `json:"action_id"`
	Seq        int          `json:"seq"`
	FromStatus ActionStatus `json:"from_status,omitempty"`
	ToStatus   ActionStatus `json:"to_status"`
	Actor      string       `json:"actor"`
	Note       string       `json:"note,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// AuditCursor marks a position in the global audit stream.
type AuditCursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}

// Command is what a host receives on check-in. ActionID doubles as the idempotency token.
type Command struct {
	ActionID   string     `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Template   string     `json:"command"`
	Rendered   string     `json:"rendered_command"`
	Parameters Parameters `json:"parameters"`
}

// ValidatedCommand is a whitelist-approved action type with its resolved parameters.
type ValidatedCommand struct {
	ActionType ActionType
	Template   string
	Parameters Parameters
	// Rendered is the template with placeholders filled; set by Render only.
	Rendered string
}

// CreateRequest carries the inputs of a new action.
type CreateRequest struct {
	HostID          string
	ActionType      ActionType
	Parameters      Parameters
	Origin          *Origin
	NotifyOnSuccess *bool
}

// Filter contains remediation action filtering options
type Filter struct {
	HostID     string
	Status     ActionStatus
	ActionType ActionType
}

// Transition describes one compare-and-swap status change.
type Transition struct {
	ActionID    string
	From        ActionStatus
	To          ActionStatus
	Actor       string
	At          time.Time
	Note        string
	Result      json.RawMessage
	Error       json.RawMessage
	FailureKind FailureKind
}
