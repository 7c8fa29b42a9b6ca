package dto

import (
	"encoding/json"
	"time"
)

// ActionDTO represents a remediation action in API responses
type ActionDTO struct {
	ID              string                 `json:"id"`
	HostID          string                 `json:"host_id"`
	ActionType      string                 `json:"action_type"`
	Parameters      map[string]interface{} `json:"parameters"`
	Status          string                 `json:"status"`
	Origin          *OriginDTO             `json:"origin,omitempty"`
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

// OriginDTO says who or what requested an action.
type OriginDTO struct {
	Kind string `json:"kind" validate:"required,oneof=user alert system"`
	Ref  string `json:"ref,omitempty" validate:"max=256"`
}

// CreateActionRequest represents an action creation request.
// Origin defaults to the calling operator.
type CreateActionRequest struct {
	HostID          string                 `json:"host_id" validate:"required,hostid"`
	ActionType      string                 `json:"action_type" validate:"required"`
	Parameters      map[string]interface{} `json:"parameters"`
	Origin          *OriginDTO             `json:"origin,omitempty"`
	NotifyOnSuccess *bool                  `json:"notify_on_success,omitempty"`
}

// RejectActionRequest carries the operator's reason.
type RejectActionRequest struct {
	Reason string `json:"reason" validate:"max=1024"`
}

// AuditRecordDTO is one entry of an action's history.
type AuditRecordDTO struct {
	Seq        int       `json:"seq"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SummaryDTO counts actions per status.
type SummaryDTO struct {
	HostID string           `json:"host_id,omitempty"`
	Total  int64            `json:"total"`
	Counts map[string]int64 `json:"counts"`
}

// WhitelistEntryDTO describes one permitted action type.
type WhitelistEntryDTO struct {
	ActionType  string                 `json:"action_type"`
	Description string                 `json:"description"`
	Command     string                 `json:"command"`
	Schema      json.RawMessage        `json:"parameter_schema"`
	Defaults    map[string]interface{} `json:"defaults,omitempty"`
}
