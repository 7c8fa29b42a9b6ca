package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/api/dto"
	"github.com/pratik-mahalle/fleetfix/internal/api/middleware"
	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/validator"
	"github.com/pratik-mahalle/fleetfix/internal/services"
)

type fakeCheckIn struct {
	gotHost    string
	gotResults []remediation.CommandResult
	result     *services.CheckInResult
	err        error
}

func (f *fakeCheckIn) CheckIn(ctx context.Context, hostID string, results []remediation.CommandResult) (*services.CheckInResult, error) {
	f.gotHost = hostID
	f.gotResults = results
	return f.result, f.err
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(ctx context.Context) error { return p.err }

func authedCheckIn(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/checkin", strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), middleware.HostIDKey, "web-01"))
}

func TestCheckInHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"empty object", `{}`, nil, http.StatusOK},
		{"missing body", ``, nil, http.StatusBadRequest},
		{"malformed", `{"command_results": 5}`, nil, http.StatusBadRequest},
		{"store failure", `{}`, errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCheckIn{result: &services.CheckInResult{}, err: tt.svcErr}
			h := NewCheckInHandler(svc, logger.Nop(), validator.New())

			rec := httptest.NewRecorder()
			h.CheckIn(rec, authedCheckIn(tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, rec.Body.String(), "database is locked")
			}
		})
	}
}

func TestCheckInHandler_MapsResults(t *testing.T) {
	svc := &fakeCheckIn{result: &services.CheckInResult{
		Commands: []*remediation.Command{{
			ActionID:   "a-2",
			ActionType: remediation.ActionTypeClearTemp,
			Template:   "systemd-tmpfiles --clean --age {{older_than_hours}}h",
			Rendered:   "systemd-tmpfiles --clean --age 24h",
			Parameters: remediation.Parameters{"older_than_hours": 24},
		}},
		Applied: 1,
	}}
	h := NewCheckInHandler(svc, logger.Nop(), validator.New())

	rec := httptest.NewRecorder()
	h.CheckIn(rec, authedCheckIn(`{"command_results":[{"action_id":"a-1","outcome":"failure","payload":{"error":"exit 1"}},{"action_id":"a-0","outcome":"success","payload":null}]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "web-01", svc.gotHost)
	require.Len(t, svc.gotResults, 2)
	assert.Equal(t, remediation.OutcomeFailure, svc.gotResults[0].Outcome.Kind)
	assert.JSONEq(t, `{"error":"exit 1"}`, string(svc.gotResults[0].Outcome.Payload))
	assert.Nil(t, svc.gotResults[1].Outcome.Payload)

	assert.JSONEq(t, `{
		"pending_commands": [{
			"action_id": "a-2",
			"action_type": "clear-temp",
			"command": "systemd-tmpfiles --clean --age {{older_than_hours}}h",
			"rendered_command": "systemd-tmpfiles --clean --age 24h",
			"parameters": {"older_than_hours": 24}
		}],
		"results_applied": 1,
		"results_ignored": 0
	}`, rec.Body.String())
}

func TestCheckInHandler_Unauthenticated(t *testing.T) {
	h := NewCheckInHandler(&fakeCheckIn{}, logger.Nop(), validator.New())
	rec := httptest.NewRecorder()
	h.CheckIn(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDecodeAndValidate_TooLarge(t *testing.T) {
	big := `{"reason":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := httptest.NewRecorder()
	var dst dto.RejectActionRequest
	ok := decodeAndValidate(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), validator.New(), &dst)

	assert.False(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ready", nil, http.StatusOK},
		{"db down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(failingPinger{err: tt.err}, logger.Nop())
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
