package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/logger"
	"github.com/pratik-mahalle/fleetfix/internal/pkg/metrics"
)

const (
	channelSlack   = "slack"
	channelWebhook = "webhook"
)

// NotificationOptions configures the outbound channels. Empty URLs disable a channel.
type NotificationOptions struct {
	SlackWebhookURL string
	SlackChannel    string
	WebhookURL      string
	WebhookSecret   string
	Timeout         time.Duration
}

// NotificationService implements remediation.Notifier. Deliveries run in the
// background; a failed delivery is logged and counted and never reaches the caller.
type NotificationService struct {
	opts       NotificationOptions
	logger     *logger.Logger
	httpClient *http.Client
	wg         sync.WaitGroup
}

// NewNotificationService creates a new notification service
func NewNotificationService(opts NotificationOptions, log *logger.Logger) *NotificationService {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &NotificationService{
		opts:   opts,
		logger: log,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Enabled reports whether any channel is configured.
func (s *NotificationService) Enabled() bool {
	return s.opts.SlackWebhookURL != "" || s.opts.WebhookURL != ""
}

// Notify fans the outcome out to every configured channel and returns immediately.
func (s *NotificationService) Notify(ctx context.Context, action *remediation.Action, outcome remediation.Outcome) {
	if !s.Enabled() || action == nil {
		return
	}

	event := newOutcomeEvent(action, outcome)
	// Detach from the request so delivery outlives it, but keep its values for tracing.
	base := context.WithoutCancel(ctx)

	if s.opts.SlackWebhookURL != "" {
		s.deliver(base, channelSlack, event, s.sendSlack)
	}
	if s.opts.WebhookURL != "" {
		s.deliver(base, channelWebhook, event, s.sendWebhook)
	}
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliver(ctx context.Context, channel string, event outcomeEvent, send func(context.Context, outcomeEvent) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		sendCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		fields := map[string]interface{}{
			"action_id": event.ActionID,
			"host_id":   event.HostID,
			"channel":   channel,
			"status":    event.Status,
		}
		if err := send(sendCtx, event); err != nil {
			metrics.RecordNotification(channel, "failed")
			s.logger.Ctx(ctx).WithFields(fields).ErrorWithErr(err, "Failed to deliver remediation notification")
			return
		}
		metrics.RecordNotification(channel, "sent")
		s.logger.Ctx(ctx).WithFields(fields).Debug("Remediation notification delivered")
	}()
}

// outcomeEvent is the document posted to the generic webhook.
type outcomeEvent struct {
	Event       string                   `json:"event"`
	Timestamp   string                   `json:"timestamp"`
	ActionID    string                   `json:"action_id"`
	HostID      string                   `json:"host_id"`
	ActionType  remediation.ActionType   `json:"action_type"`
	Status      remediation.ActionStatus `json:"status"`
	FailureKind remediation.FailureKind  `json:"failure_kind,omitempty"`
	Outcome     remediation.OutcomeKind  `json:"outcome"`
	Payload     json.RawMessage          `json:"payload,omitempty"`
	Origin      *remediation.Origin      `json:"origin,omitempty"`
	Summary     string                   `json:"summary"`
}

func newOutcomeEvent(a *remediation.Action, outcome remediation.Outcome) outcomeEvent {
	event := "remediation.completed"
	summary := fmt.Sprintf("%s on %s completed", a.ActionType, a.HostID)
	if a.Status == remediation.ActionStatusFailed {
		event = "remediation.failed"
		summary = a.Failure().Error()
	}

	ts := time.Now().UTC()
	if a.CompletedAt != nil {
		ts = a.CompletedAt.UTC()
	}

	payload := outcome.Payload
	if len(payload) == 0 {
		payload = nil
	}
	return outcomeEvent{
		Event:       event,
		Timestamp:   ts.Format(time.RFC3339),
		ActionID:    a.ID,
		HostID:      a.HostID,
		ActionType:  a.ActionType,
		Status:      a.Status,
		FailureKind: a.FailureKind,
		Outcome:     outcome.Kind,
		Payload:     payload,
		Origin:      a.Origin,
		Summary:     summary,
	}
}

// sendSlack posts the outcome to a Slack incoming webhook
func (s *NotificationService) sendSlack(ctx context.Context, event outcomeEvent) error {
	payload, err := json.Marshal(s.buildSlackMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.SlackWebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Slack API error (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// buildSlackMessage builds a Slack message payload
func (s *NotificationService) buildSlackMessage(event outcomeEvent) map[string]interface{} {
	color := "#36a64f" // green
	emoji := ":white_check_mark:"
	if event.Status == remediation.ActionStatusFailed {
		color = "#ff0000"
		emoji = ":rotating_light:"
		if event.FailureKind == remediation.FailureTimeout {
			color = "#ff8c00"
			emoji = ":hourglass:"
		}
	}

	msg := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color": color,
				"title": fmt.Sprintf("%s %s %s on %s", emoji, event.ActionType, event.Status, event.HostID),
				"text":  event.Summary,
				"fields": []map[string]interface{}{
					{"title": "Action", "value": event.ActionID, "short": true},
					{"title": "Host", "value": event.HostID, "short": true},
				},
				"footer": "fleetfix",
				"ts":     time.Now().Unix(),
			},
		},
	}
	if s.opts.SlackChannel != "" {
		msg["channel"] = s.opts.SlackChannel
	}
	return msg
}

// sendWebhook posts the outcome to the generic webhook, signed when a secret is set
func (s *NotificationService) sendWebhook(ctx context.Context, event outcomeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fleetfix-Event", event.Event)
	req.Header.Set("X-Fleetfix-Delivery", uuid.New().String())
	req.Header.Set("X-Fleetfix-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if s.opts.WebhookSecret != "" {
		req.Header.Set("X-Fleetfix-Signature", SignPayload(payload, s.opts.WebhookSecret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned error status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SignPayload signs the payload with HMAC-SHA256
func SignPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
