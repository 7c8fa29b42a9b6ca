package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

func boolPtr(b bool) *bool { return &b }

func TestRemediationService_Create(t *testing.T) {
	tests := []struct {
		name       string
		paused     bool
		req        remediation.CreateRequest
		wantStatus remediation.ActionStatus
		wantParams remediation.Parameters
		wantNotify bool
		wantErr    interface{}
	}{
		{
			name:       "host not paused is auto approved",
			req:        restartRequest("web-01", "nginx"),
			wantStatus: remediation.ActionStatusApproved,
			wantParams: remediation.Parameters{"service": "nginx"},
		},
		{
			name:       "paused host stays pending",
			paused:     true,
			req:        restartRequest("web-01", "nginx"),
			wantStatus: remediation.ActionStatusPending,
			wantParams: remediation.Parameters{"service": "nginx"},
		},
		{
			name: "defaults are resolved",
			req: remediation.CreateRequest{
				HostID:          "web-01",
				ActionType:      remediation.ActionTypeClearTemp,
				NotifyOnSuccess: boolPtr(true),
			},
			wantStatus: remediation.ActionStatusApproved,
			wantParams: remediation.Parameters{"older_than_hours": json.Number("24")},
			wantNotify: true,
		},
		{
			name: "string parameters are trimmed",
			req: remediation.CreateRequest{
				HostID:     "web-01",
				ActionType: remediation.ActionTypeCustom,
				Parameters: remediation.Parameters{"script": "  rotate-certs.sh "},
			},
			wantStatus: remediation.ActionStatusApproved,
			wantParams: remediation.Parameters{"script": "rotate-certs.sh"},
		},
		{
			name: "unknown action type",
			req: remediation.CreateRequest{
				HostID:     "web-01",
				ActionType: "delete-everything",
				Parameters: remediation.Parameters{"path": "/"},
			},
			wantErr: &remediation.ValidationError{},
		},
		{
			name: "unexpected parameter",
			req: remediation.CreateRequest{
				HostID:     "web-01",
				ActionType: remediation.ActionTypeRestartService,
				Parameters: remediation.Parameters{"service": "nginx", "flags": "--force"},
			},
			wantErr: &remediation.ValidationError{},
		},
		{
			name:    "unknown host",
			req:     restartRequest("ghost", "nginx"),
			wantErr: &remediation.ValidationError{},
		},
		{
			name:    "missing host",
			req:     restartRequest("", "nginx"),
			wantErr: &remediation.ValidationError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, RemediationOptions{}, "web-01")
			if tt.paused {
				h.pause(t, "web-01")
			}

			got, err := h.actions.Create(context.Background(), tt.req)

			if tt.wantErr != nil {
				var validation *remediation.ValidationError
				require.True(t, errors.As(err, &validation), "got %v", err)
				assert.Nil(t, got)
				assert.Empty(t, h.repo.Actions)
				assert.Zero(t, h.repo.AuditCount())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantParams, got.Parameters)
			assert.Equal(t, tt.wantNotify, got.NotifyOnSuccess)
			assert.NotEmpty(t, got.DedupKey)

			history, err := h.actions.History(context.Background(), got.ID)
			require.NoError(t, err)
			if tt.wantStatus == remediation.ActionStatusApproved {
				assert.Equal(t, remediation.AutoApprover, got.ApprovedBy)
				require.NotNil(t, got.ApprovedAt)
				require.Len(t, history, 2)
				assert.Equal(t, remediation.AutoApprover, history[1].Actor)
			} else {
				assert.Empty(t, got.ApprovedBy)
				assert.Nil(t, got.ApprovedAt)
				require.Len(t, history, 1)
			}
		})
	}
}

func TestRemediationService_Create_NotifyDefault(t *testing.T) {
	h := newHarness(t, RemediationOptions{NotifyOnSuccess: true}, "web-01")

	a := h.restart(t, "web-01", "nginx")
	assert.True(t, a.NotifyOnSuccess)

	req := restartRequest("web-01", "redis")
	req.NotifyOnSuccess = boolPtr(false)
	b, err := h.actions.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, b.NotifyOnSuccess)
}

// Identical requests while the first is in flight produce exactly one action.
func TestRemediationService_Create_ConcurrentDuplicates(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	h.pause(t, "web-01")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.actions.Create(context.Background(), restartRequest("web-01", "nginx"))
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		var conflict *remediation.ConflictError
		switch {
		case err == nil:
			created++
		case errors.As(err, &conflict):
			conflicts++
			assert.Equal(t, remediation.ActionStatusPending, conflict.ExistingStatus)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, h.repo.Actions, 1)
}

func TestRemediationService_Create_DedupIgnoresFormatting(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01", "web-02")

	h.restart(t, "web-01", "nginx")

	_, err := h.actions.Create(context.Background(), restartRequest("web-01", " nginx "))
	var conflict *remediation.ConflictError
	assert.True(t, errors.As(err, &conflict), "whitespace must not defeat dedup")

	// Same remediation on another host is a different condition.
	_, err = h.actions.Create(context.Background(), restartRequest("web-02", "nginx"))
	assert.NoError(t, err)

	// Defaults are part of the key: an explicit default equals an omitted one.
	_, err = h.actions.Create(context.Background(), remediation.CreateRequest{HostID: "web-01", ActionType: remediation.ActionTypeClearTemp})
	require.NoError(t, err)
	_, err = h.actions.Create(context.Background(), remediation.CreateRequest{
		HostID: "web-01", ActionType: remediation.ActionTypeClearTemp,
		Parameters: remediation.Parameters{"older_than_hours": 24},
	})
	assert.True(t, errors.As(err, &conflict))
}

// A paused host's action is rejected by an operator and never reaches the host.
func TestRemediationService_RejectPending(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	ctx := context.Background()
	h.pause(t, "web-01")

	a := h.restart(t, "web-01", "nginx")
	require.Equal(t, remediation.ActionStatusPending, a.Status)

	rejected, err := h.actions.Reject(ctx, a.ID, "alice", "not needed")
	require.NoError(t, err)
	assert.Equal(t, remediation.ActionStatusRejected, rejected.Status)
	assert.Equal(t, "not needed", rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedAt)
	assert.Nil(t, rejected.CompletedAt)

	for i := 0; i < 3; i++ {
		res, err := h.checkIn.CheckIn(ctx, "web-01", nil)
		require.NoError(t, err)
		assert.Empty(t, res.Commands)
	}

	_, err = h.actions.Approve(ctx, a.ID, "bob")
	var stateErr *remediation.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, remediation.ActionStatusRejected, stateErr.Actual)

	history, err := h.actions.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "alice", history[1].Actor)
	assert.Equal(t, "not needed", history[1].Note)
}

func TestRemediationService_ApproveAfterMaintenance(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	ctx := context.Background()
	h.pause(t, "web-01")

	a := h.restart(t, "web-01", "nginx")

	// Leaving maintenance does not approve what was queued during it.
	_, err := h.hosts.SetMaintenance(ctx, "web-01", false)
	require.NoError(t, err)
	got, err := h.actions.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.ActionStatusPending, got.Status)

	approved, err := h.actions.Approve(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOperator, approved.ApprovedBy)

	res, err := h.checkIn.CheckIn(ctx, "web-01", nil)
	require.NoError(t, err)
	require.Len(t, res.Commands, 1)
	assert.Equal(t, a.ID, res.Commands[0].ActionID)
}

func TestRemediationService_ConcurrentApprove(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	h.pause(t, "web-01")
	a := h.restart(t, "web-01", "nginx")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, who := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, who string) {
			defer wg.Done()
			_, errs[i] = h.actions.Approve(context.Background(), a.ID, who)
		}(i, who)
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		var stateErr *remediation.StateError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &stateErr):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, stale)

	history, err := h.actions.History(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRemediationService_ReadPaths(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01", "web-02")
	ctx := context.Background()

	h.restart(t, "web-01", "nginx")
	h.restart(t, "web-01", "redis")
	h.restart(t, "web-02", "nginx")
	h.pause(t, "web-02")
	h.restart(t, "web-02", "redis")

	t.Run("list by host", func(t *testing.T) {
		got, total, err := h.actions.List(ctx, remediation.Filter{HostID: "web-01"}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, got, 2)
	})

	t.Run("list by status", func(t *testing.T) {
		got, _, err := h.actions.List(ctx, remediation.Filter{Status: remediation.ActionStatusPending}, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "web-02", got[0].HostID)
	})

	t.Run("list rejects unknown filters", func(t *testing.T) {
		var validation *remediation.ValidationError
		_, _, err := h.actions.List(ctx, remediation.Filter{Status: "DONE"}, 10, 0)
		assert.True(t, errors.As(err, &validation))
		_, _, err = h.actions.List(ctx, remediation.Filter{ActionType: "reboot"}, 10, 0)
		assert.True(t, errors.As(err, &validation))
	})

	t.Run("summary", func(t *testing.T) {
		all, err := h.actions.Summary(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), all[remediation.ActionStatusApproved])
		assert.Equal(t, int64(1), all[remediation.ActionStatusPending])
		assert.Equal(t, int64(0), all[remediation.ActionStatusFailed])

		one, err := h.actions.Summary(ctx, "web-02")
		require.NoError(t, err)
		assert.Equal(t, int64(1), one[remediation.ActionStatusApproved])
	})

	t.Run("missing action", func(t *testing.T) {
		_, err := h.actions.Get(ctx, "missing")
		assert.ErrorIs(t, err, remediation.ErrNotFound)
		_, err = h.actions.History(ctx, "missing")
		assert.ErrorIs(t, err, remediation.ErrNotFound)
		_, err = h.actions.Approve(ctx, "missing", "alice")
		assert.ErrorIs(t, err, remediation.ErrNotFound)
	})
}
