package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
)

func TestReconcileService_RecordResult_InvalidOutcome(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")

	_, err := h.reconciler.RecordResult(context.Background(), "web-01", remediation.CommandResult{
		ActionID: "a-1",
		Outcome:  remediation.Outcome{Kind: "maybe"},
	})
	var validation *remediation.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestReconcileService_RecordResult_NotExecuting(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	a := h.restart(t, "web-01", "nginx")
	before := h.repo.AuditCount()

	applied, err := h.reconciler.RecordResult(context.Background(), "web-01", successFor(a.ID, `{}`))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, h.repo.AuditCount())

	got, err := h.actions.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.ActionStatusApproved, got.Status)
}

func TestReconcileService_ExpireStale(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01", "web-02", "web-03")
	ctx := context.Background()

	restart := h.restart(t, "web-01", "nginx")
	logs, err := h.actions.Create(ctx, remediation.CreateRequest{
		HostID: "web-02", ActionType: remediation.ActionTypeClearLogs,
		Parameters: remediation.Parameters{"path": "/var/log/nginx"},
	})
	require.NoError(t, err)
	fresh := h.restart(t, "web-03", "nginx")

	for _, id := range []string{"web-01", "web-02"} {
		_, err := h.checkIn.CheckIn(ctx, id, nil)
		require.NoError(t, err)
	}
	h.clock.Advance(20 * time.Minute)
	_, err = h.checkIn.CheckIn(ctx, "web-03", nil)
	require.NoError(t, err)

	timeouts := map[remediation.ActionType]time.Duration{
		remediation.ActionTypeRestartService: 10 * time.Minute,
	}
	n, err := h.reconciler.ExpireStale(ctx, h.clock.Now(), timeouts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired, err := h.actions.Get(ctx, restart.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.ActionStatusFailed, expired.Status)
	assert.Equal(t, remediation.FailureTimeout, expired.FailureKind)
	var timeoutErr *remediation.TimeoutError
	assert.True(t, errors.As(expired.Failure(), &timeoutErr))

	history, err := h.actions.History(ctx, restart.ID)
	require.NoError(t, err)
	assert.Equal(t, WatchdogActor, history[len(history)-1].Actor)

	for _, id := range []string{logs.ID, fresh.ID} {
		a, err := h.actions.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, remediation.ActionStatusExecuting, a.Status, "no timeout configured or not yet due")
	}

	require.Equal(t, 1, h.notifier.Count())
	assert.Equal(t, restart.ID, h.notifier.Calls[0].Action.ID)

	// A late result for the expired action is ignored.
	applied, err := h.reconciler.RecordResult(ctx, "web-01", successFor(restart.ID, `{}`))
	require.NoError(t, err)
	assert.False(t, applied)

	n, err = h.reconciler.ExpireStale(ctx, h.clock.Now(), timeouts)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcileService_ExpireStale_Disabled(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	h.restart(t, "web-01", "nginx")
	_, err := h.checkIn.CheckIn(context.Background(), "web-01", nil)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	n, err := h.reconciler.ExpireStale(context.Background(), h.clock.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// shrinkingWhitelist forgets action types, as after a catalog change.
type shrinkingWhitelist struct{ remediation.Whitelist }

func (shrinkingWhitelist) Render(at remediation.ActionType, _ remediation.Parameters) (*remediation.ValidatedCommand, error) {
	return nil, &remediation.ValidationError{ActionType: at, Reason: "action type is not whitelisted"}
}

func TestDispatchService_UnknownTemplateFailsAction(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	a := h.restart(t, "web-01", "nginx")

	d := NewDispatchService(h.repo, shrinkingWhitelist{}, logger.New(logger.Config{Level: "error"}), h.clock.Now)
	cmd, err := d.NextCommandFor(context.Background(), "web-01")
	require.NoError(t, err)
	assert.Nil(t, cmd)

	got, err := h.actions.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, remediation.ActionStatusFailed, got.Status)
	assert.Contains(t, string(got.Error), "no longer be rendered")
	assert.Contains(t, string(got.Error), "not whitelisted")
}

func TestDispatchService_RendersCommand(t *testing.T) {
	h := newHarness(t, RemediationOptions{}, "web-01")
	a := h.restart(t, "web-01", "nginx")

	cmd, err := h.dispatcher.NextCommandFor(context.Background(), "web-01")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, a.ID, cmd.ActionID)
	assert.Equal(t, "systemctl restart {{service}}", cmd.Template)
	assert.Equal(t, "systemctl restart nginx", cmd.Rendered)
}
