package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/testutil"
	"github.com/pratik-mahalle/fleetfix/internal/whitelist"
)

const testSecret = "0123456789abcdef-secret"

// harness wires the real services over in-memory repositories.
type harness struct {
	repo       *testutil.MockRemediationRepository
	hostRepo   *testutil.MockHostRepository
	notifier   *testutil.RecordingNotifier
	clock      *testutil.Clock
	hosts      *HostService
	actions    *RemediationService
	dispatcher *DispatchService
	reconciler *ReconcileService
	checkIn    *CheckInService
}

func newHarness(t *testing.T, opts RemediationOptions, hostIDs ...string) *harness {
	t.Helper()

	wl, err := whitelist.New(whitelist.Options{CustomScripts: []string{"rotate-certs.sh"}})
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	h := &harness{
		repo:     testutil.NewMockRemediationRepository(),
		hostRepo: testutil.NewMockHostRepository(),
		notifier: &testutil.RecordingNotifier{},
		clock:    testutil.NewClock(),
	}
	if opts.Now == nil {
		opts.Now = h.clock.Now
	}

	h.hosts = NewHostService(h.hostRepo, bcrypt.MinCost, log, h.clock.Now)
	h.actions = NewRemediationService(h.repo, wl, h.hosts, log, opts)
	h.dispatcher = NewDispatchService(h.repo, wl, log, h.clock.Now)
	h.reconciler = NewReconcileService(h.repo, h.notifier, log, h.clock.Now)
	h.checkIn = NewCheckInService(h.hosts, h.reconciler, h.dispatcher, log)

	for _, id := range hostIDs {
		_, err := h.hosts.Register(context.Background(), id, id, testSecret)
		require.NoError(t, err)
	}
	return h
}

func (h *harness) pause(t *testing.T, hostID string) {
	t.Helper()
	_, err := h.hosts.SetMaintenance(context.Background(), hostID, true)
	require.NoError(t, err)
}

func (h *harness) restart(t *testing.T, hostID, service string) *remediation.Action {
	t.Helper()
	a, err := h.actions.Create(context.Background(), restartRequest(hostID, service))
	require.NoError(t, err)
	return a
}

func restartRequest(hostID, service string) remediation.CreateRequest {
	return remediation.CreateRequest{
		HostID:     hostID,
		ActionType: remediation.ActionTypeRestartService,
		Parameters: remediation.Parameters{"service": service},
		Origin:     &remediation.Origin{Kind: remediation.OriginUser, Ref: "ops@example.com"},
	}
}
