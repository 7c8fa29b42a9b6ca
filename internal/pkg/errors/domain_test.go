package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/domain/host"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"validation", &remediation.ValidationError{ActionType: "reboot", Reason: "unknown action type"}, ErrCodeValidation, http.StatusBadRequest},
		{"conflict", &remediation.ConflictError{DedupKey: "abc", ExistingID: "a1", ExistingStatus: remediation.ActionStatusPending}, ErrCodeConflict, http.StatusConflict},
		{"state", &remediation.StateError{ActionID: "a1", Expected: remediation.ActionStatusPending, Actual: remediation.ActionStatusApproved, Target: remediation.ActionStatusApproved}, ErrCodeState, http.StatusConflict},
		{"wrapped state", fmt.Errorf("approve: %w", &remediation.StateError{ActionID: "a1"}), ErrCodeState, http.StatusConflict},
		{"action not found", remediation.ErrNotFound, ErrCodeNotFound, http.StatusNotFound},
		{"host not found", fmt.Errorf("lookup: %w", host.ErrNotFound), ErrCodeNotFound, http.StatusNotFound},
		{"host exists", host.ErrAlreadyExists, ErrCodeConflict, http.StatusConflict},
		{"bad secret", host.ErrInvalidCredentials, ErrCodeUnauthorized, http.StatusUnauthorized},
		{"deadline", context.DeadlineExceeded, ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"unknown", stderrors.New("disk full"), ErrCodeInternal, http.StatusInternalServerError},
		{"app error", BadRequest("bad json"), ErrCodeBadRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomain(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
		})
	}

	assert.Nil(t, FromDomain(nil))
}

func TestFromDomain_InternalHidesCause(t *testing.T) {
	got := FromDomain(stderrors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorContains(t, got, "password authentication failed")
}
