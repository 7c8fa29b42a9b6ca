package remediation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an action id does not exist.
var ErrNotFound = errors.New("remediation action not found")

// ValidationError means the action type or its parameters are outside the whitelist.
// Nothing is persisted when it is returned.
type ValidationError struct {
	ActionType ActionType `json:"action_type,omitempty"`
	Reason     string     `json:"reason"`
	Details    []string   `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid remediation %q: %s", e.ActionType, e.Reason)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// ConflictError means an action with the same dedup key is still in flight.
type ConflictError struct {
	DedupKey       string       `json:"dedup_key"`
	ExistingID     string       `json:"existing_id,omitempty"`
	ExistingStatus ActionStatus `json:"existing_status,omitempty"`
}

func (e *ConflictError) Error() string {
	if e.ExistingID == "" {
		return "an equivalent remediation is already in flight"
	}
	return fmt.Sprintf("an equivalent remediation is already in flight: %s (%s)", e.ExistingID, e.ExistingStatus)
}

// StateError means a transition was attempted from a status the action no longer has,
// or along an edge the lifecycle does not allow. The stored record is untouched.
type StateError struct {
	ActionID string       `json:"action_id"`
	Expected ActionStatus `json:"expected"`
	Actual   ActionStatus `json:"actual"`
	Target   ActionStatus `json:"target"`
	Reason   string       `json:"reason,omitempty"`
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("action %s: cannot move to %s: %s", e.ActionID, e.Target, e.Reason)
	}
	if e.Expected == e.Actual {
		return fmt.Sprintf("action %s: transition %s -> %s is not allowed", e.ActionID, e.Expected, e.Target)
	}
	return fmt.Sprintf("action %s: expected status %s but found %s", e.ActionID, e.Expected, e.Actual)
}

// ExecutionError is a failure reported by the host that ran the command.
type ExecutionError struct {
	ActionID string
	Payload  json.RawMessage
}

func (e *ExecutionError) Error() string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(e.Payload, &body) == nil {
		if body.Error != "" {
			return fmt.Sprintf("action %s failed: %s", e.ActionID, body.Error)
		}
		if body.Message != "" {
			return fmt.Sprintf("action %s failed: %s", e.ActionID, body.Message)
		}
	}
	return fmt.Sprintf("action %s failed: %s", e.ActionID, string(e.Payload))
}

// TimeoutError is raised by the watchdog when a dispatched command never reports back.
type TimeoutError struct {
	ActionID string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("action %s timed out: no result within %s", e.ActionID, e.After)
}

// Payload is the error document stored on the action.
func (e *TimeoutError) Payload() json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"error":   "timeout",
		"message": fmt.Sprintf("no result reported within %s", e.After),
	})
	return raw
}

// Failure rebuilds the failure recorded on a FAILED action.
func (a *Action) Failure() error {
	if a.Status != ActionStatusFailed {
		return nil
	}
	if a.FailureKind == FailureTimeout {
		var after time.Duration
		if a.DispatchedAt != nil && a.CompletedAt != nil {
			after = a.CompletedAt.Sub(*a.DispatchedAt).Round(time.Second)
		}
		return &TimeoutError{ActionID: a.ID, After: after}
	}
	return &ExecutionError{ActionID: a.ID, Payload: a.Error}
}
