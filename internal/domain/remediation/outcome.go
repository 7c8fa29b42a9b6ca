package remediation

import "encoding/json"

// OutcomeKind is the result class reported for a dispatched command.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is either Success(payload) or Failure(payload).
type Outcome struct {
	Kind    OutcomeKind
	Payload json.RawMessage
}

func Success(payload json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: payload}
}

func Failure(payload json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeFailure, Payload: payload}
}

// FailureMessage wraps a plain message into a failure outcome.
func FailureMessage(msg string) Outcome {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return Failure(raw)
}

// IsValid reports whether the outcome kind is known.
func (o Outcome) IsValid() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeFailure
}

// TargetStatus is the terminal status this outcome drives an EXECUTING action to.
func (o Outcome) TargetStatus() ActionStatus {
	if o.Kind == OutcomeSuccess {
		return ActionStatusCompleted
	}
	return ActionStatusFailed
}

// CommandResult pairs a reported outcome with the action id it answers.
type CommandResult struct {
	ActionID string
	Outcome  Outcome
}
