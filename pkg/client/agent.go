package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Command outcomes a host can report.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// HostIDHeader carries the checking-in host's identity.
const HostIDHeader = "X-Host-ID"

// CommandResult reports the outcome of a delivered command.
type CommandResult struct {
	ActionID string          `json:"action_id"`
	Outcome  string          `json:"outcome"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// PendingCommand is a command handed to a host. Running the same ActionID
// twice must be avoided by the agent.
type PendingCommand struct {
	ActionID   string                 `json:"action_id"`
	ActionType string                 `json:"action_type"`
	Command    string                 `json:"command"`
	Rendered   string                 `json:"rendered_command"`
	Parameters map[string]interface{} `json:"parameters"`
}

// CheckInResponse is the hub's answer to a heartbeat.
type CheckInResponse struct {
	PendingCommands []PendingCommand `json:"pending_commands"`
	ResultsApplied  int              `json:"results_applied"`
	ResultsIgnored  int              `json:"results_ignored"`
}

// CheckIn sends a heartbeat as hostID, reporting results, and returns at most
// one command to run next. The client's operator token is not used.
func (c *Client) CheckIn(ctx context.Context, hostID, secret string, results []CommandResult) (*CheckInResponse, error) {
	if results == nil {
		results = []CommandResult{}
	}
	header := http.Header{}
	header.Set(HostIDHeader, hostID)
	header.Set("Authorization", "Bearer "+secret)

	body := map[string]interface{}{
		"host_id":         hostID,
		"command_results": results,
	}
	raw, err := c.send(ctx, http.MethodPost, "/api/v1/agent/checkin", header, body)
	if err != nil {
		return nil, err
	}

	var resp CheckInResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse check-in response: %w", err)
	}
	return &resp, nil
}
