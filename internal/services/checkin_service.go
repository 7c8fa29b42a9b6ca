package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/tracing"
)

// CheckInToucher records that a host called in.
type CheckInToucher interface {
	TouchCheckIn(ctx context.Context, hostID string) error
}

// CheckInResult is the hub's answer to one heartbeat.
type CheckInResult struct {
	// Commands holds at most one command.
	Commands []*remediation.Command
	Applied  int
	Ignored  int
}

// CheckInService runs one heartbeat: results first, then dispatch, so a finished
// command frees the host's slot for the next one in the same round trip.
type CheckInService struct {
	hosts      CheckInToucher
	reconciler remediation.Reconciler
	dispatcher remediation.Dispatcher
	logger     *logger.Logger
}

// NewCheckInService creates a new check-in service
func NewCheckInService(hosts CheckInToucher, reconciler remediation.Reconciler, dispatcher remediation.Dispatcher, log *logger.Logger) *CheckInService {
	return &CheckInService{
		hosts:      hosts,
		reconciler: reconciler,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// CheckIn processes the reported results of hostID and returns what to run next.
func (s *CheckInService) CheckIn(ctx context.Context, hostID string, results []remediation.CommandResult) (*CheckInResult, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.checkin",
		attribute.String("host_id", hostID),
		attribute.Int("results", len(results)),
	)
	defer span.End()

	if err := s.hosts.TouchCheckIn(ctx, hostID); err != nil {
		return nil, err
	}

	out := &CheckInResult{Commands: []*remediation.Command{}}
	for _, res := range results {
		applied, err := s.reconciler.RecordResult(ctx, hostID, res)
		if err != nil {
			return nil, fmt.Errorf("failed to record result for %s: %w", res.ActionID, err)
		}
		if applied {
			out.Applied++
		} else {
			out.Ignored++
		}
	}

	cmd, err := s.dispatcher.NextCommandFor(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to select next command: %w", err)
	}
	if cmd != nil {
		out.Commands = append(out.Commands, cmd)
	}

	metrics.RecordCheckIn(cmd != nil)
	s.logger.Ctx(ctx).WithFields(map[string]interface{}{
		"host_id":    hostID,
		"applied":    out.Applied,
		"ignored":    out.Ignored,
		"dispatched": len(out.Commands),
	}).Debug("Host checked in")

	return out, nil
}
