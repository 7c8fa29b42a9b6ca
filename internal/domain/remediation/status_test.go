package remediation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]ActionStatus]bool{
		{ActionStatusPending, ActionStatusApproved}:    true,
		{ActionStatusPending, ActionStatusRejected}:    true,
		{ActionStatusApproved, ActionStatusExecuting}:  true,
		{ActionStatusExecuting, ActionStatusCompleted}: true,
		{ActionStatusExecuting, ActionStatusFailed}:    true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]ActionStatus{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestActionStatus_Classification(t *testing.T) {
	tests := []struct {
		status   ActionStatus
		terminal bool
		active   bool
	}{
		{ActionStatusPending, false, true},
		{ActionStatusApproved, false, true},
		{ActionStatusExecuting, false, true},
		{ActionStatusCompleted, true, false},
		{ActionStatusFailed, true, false},
		{ActionStatusRejected, true, false},
		{ActionStatus("in_progress"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.active, tt.status.IsActive())
		})
	}
}

func TestTransition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tr      Transition
		wantErr bool
	}{
		{"approve pending", Transition{ActionID: "a", From: ActionStatusPending, To: ActionStatusApproved}, false},
		{"execute outside a claim", Transition{ActionID: "a", From: ActionStatusApproved, To: ActionStatusExecuting}, true},
		{"skip to executing", Transition{ActionID: "a", From: ActionStatusPending, To: ActionStatusExecuting}, true},
		{"reopen completed", Transition{ActionID: "a", From: ActionStatusCompleted, To: ActionStatusExecuting}, true},
		{"complete with error", Transition{ActionID: "a", From: ActionStatusExecuting, To: ActionStatusCompleted, Error: json.RawMessage(`{}`)}, true},
		{"fail with result", Transition{ActionID: "a", From: ActionStatusExecuting, To: ActionStatusFailed, Result: json.RawMessage(`{}`)}, true},
		{"fail with error", Transition{ActionID: "a", From: ActionStatusExecuting, To: ActionStatusFailed, Error: json.RawMessage(`{"error":"x"}`)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var stateErr *StateError
				assert.True(t, errors.As(err, &stateErr))
			}
		})
	}
}

func TestDecide(t *testing.T) {
	assert.Equal(t, Decision{AutoApprove: true, ApprovedBy: AutoApprover}, Decide(false))
	assert.Equal(t, Decision{}, Decide(true))
}
