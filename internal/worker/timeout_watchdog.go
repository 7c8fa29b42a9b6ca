package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
)

// TimeoutWatchdog fails EXECUTING actions whose host never reported a result within
// the timeout configured for their action type.
type TimeoutWatchdog struct {
	expirer  remediation.Expirer
	timeouts map[remediation.ActionType]time.Duration
	now      func() time.Time
	logger   *logger.Logger
}

// NewTimeoutWatchdog creates a new timeout watchdog
func NewTimeoutWatchdog(expirer remediation.Expirer, timeouts map[remediation.ActionType]time.Duration, log *logger.Logger, now func() time.Time) *TimeoutWatchdog {
	if now == nil {
		now = time.Now
	}
	return &TimeoutWatchdog{expirer: expirer, timeouts: timeouts, now: now, logger: log}
}

// ParseTimeouts converts configured per-type timeouts, rejecting unknown action types.
func ParseTimeouts(raw map[string]time.Duration) (map[remediation.ActionType]time.Duration, error) {
	out := make(map[remediation.ActionType]time.Duration, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		at := remediation.ActionType(name)
		if !at.IsValid() {
			return nil, fmt.Errorf("timeout configured for unknown action type %q", name)
		}
		if raw[name] <= 0 {
			return nil, fmt.Errorf("timeout for %s must be positive", name)
		}
		out[at] = raw[name]
	}
	return out, nil
}

// Enabled reports whether any action type has a timeout.
func (w *TimeoutWatchdog) Enabled() bool {
	return len(w.timeouts) > 0
}

func (w *TimeoutWatchdog) Name() string { return "timeout-watchdog" }

// Run performs one sweep.
func (w *TimeoutWatchdog) Run(ctx context.Context) error {
	if !w.Enabled() {
		return nil
	}
	n, err := w.expirer.ExpireStale(ctx, w.now(), w.timeouts)
	if n > 0 {
		w.logger.WithFields(map[string]interface{}{
			"expired": n,
		}).Warn("Expired actions that never reported a result")
	}
	return err
}
