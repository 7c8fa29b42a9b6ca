package client

import (
	"encoding/json"
	"time"
)

// Action statuses.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusExecuting = "EXECUTING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusRejected  = "REJECTED"
)

// Action is a remediation action as returned by the hub.
type Action struct {
	ID              string                 `json:"id"`
	HostID          string                 `json:"host_id"`
	ActionType      string                 `json:"action_type"`
	Parameters      map[string]interface{} `json:"parameters"`
	Status          string                 `json:"status"`
	Origin          *Origin                `json:"origin,omitempty"`
	NotifyOnSuccess bool                   `json:"notify_on_success"`
	ApprovedBy      string                 `json:"approved_by,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	Result          json.RawMessage        `json:"result,omitempty"`
	Error           json.RawMessage        `json:"error,omitempty"`
	FailureKind     string                 `json:"failure_kind,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	DispatchedAt    *time.Time             `json:"dispatched_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	RejectedAt      *time.Time             `json:"rejected_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Origin says who or what requested an action.
type Origin struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref,omitempty"`
}

// AuditRecord is one entry of an action's history.
type AuditRecord struct {
	Seq        int       `json:"seq"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Summary counts actions per status.
type Summary struct {
	HostID string           `json:"host_id,omitempty"`
	Total  int64            `json:"total"`
	Counts map[string]int64 `json:"counts"`
}

// Host is a registered host.
type Host struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IsPaused      bool       `json:"is_paused"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WhitelistEntry describes one permitted action type.
type WhitelistEntry struct {
	ActionType  string                 `json:"action_type"`
	Description string                 `json:"description"`
	Command     string                 `json:"command"`
	Schema      json.RawMessage        `json:"parameter_schema"`
	Defaults    map[string]interface{} `json:"defaults,omitempty"`
}

// Page is one page of a list result.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ListOptions contains common list parameters
type ListOptions struct {
	Limit  int
	Offset int
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}
