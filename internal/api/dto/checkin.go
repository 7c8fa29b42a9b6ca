package dto

import "encoding/json"

// CheckInRequest is the heartbeat body a host posts to the hub.
type CheckInRequest struct {
	HostID         string          `json:"host_id,omitempty" validate:"omitempty,hostid"`
	CommandResults []CommandResult `json:"command_results" validate:"max=32,dive"`
}

// CommandResult reports the outcome of a previously delivered command.
type CommandResult struct {
	ActionID string          `json:"action_id" validate:"required,max=64"`
	Outcome  string          `json:"outcome" validate:"required,oneof=success failure"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// PendingCommand is a command handed to the host. The action id is its idempotency token.
type PendingCommand struct {
	ActionID   string                 `json:"action_id"`
	ActionType string                 `json:"action_type"`
	Command    string                 `json:"command"`
	Rendered   string                 `json:"rendered_command"`
	Parameters map[string]interface{} `json:"parameters"`
}

// CheckInResponse always carries zero or one pending command.
type CheckInResponse struct {
	PendingCommands []PendingCommand `json:"pending_commands"`
	ResultsApplied  int              `json:"results_applied"`
	ResultsIgnored  int              `json:"results_ignored"`
}
