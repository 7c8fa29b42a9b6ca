package remediation

// ActionStatus is a position in the action lifecycle.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "PENDING"
	ActionStatusApproved  ActionStatus = "APPROVED"
	ActionStatusExecuting ActionStatus = "EXECUTING"
	ActionStatusCompleted ActionStatus = "COMPLETED"
	ActionStatusFailed    ActionStatus = "FAILED"
	ActionStatusRejected  ActionStatus = "REJECTED"
)

// ActiveStatuses are the non-terminal statuses. At most one action per dedup key may hold one of them.
var ActiveStatuses = []ActionStatus{
	ActionStatusPending,
	ActionStatusApproved,
	ActionStatusExecuting,
}

// AllStatuses in lifecycle order.
var AllStatuses = []ActionStatus{
	ActionStatusPending,
	ActionStatusApproved,
	ActionStatusExecuting,
	ActionStatusCompleted,
	ActionStatusFailed,
	ActionStatusRejected,
}

var transitions = map[ActionStatus][]ActionStatus{
	ActionStatusPending:   {ActionStatusApproved, ActionStatusRejected},
	ActionStatusApproved:  {ActionStatusExecuting},
	ActionStatusExecuting: {ActionStatusCompleted, ActionStatusFailed},
}

// IsValid reports whether s is a known status.
func (s ActionStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal checks if the action status is terminal
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusCompleted || s == ActionStatusFailed || s == ActionStatusRejected
}

// IsActive reports whether s still occupies the action's dedup key.
func (s ActionStatus) IsActive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to ActionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate checks the edge and the payload rules of a transition.
func (t Transition) Validate() error {
	if !CanTransition(t.From, t.To) {
		return &StateError{ActionID: t.ActionID, Expected: t.From, Target: t.To, Actual: t.From}
	}
	switch t.To {
	case ActionStatusExecuting:
		// Only a dispatch claim may start execution; it also enforces one in flight per host.
		return &StateError{ActionID: t.ActionID, Expected: t.From, Target: t.To, Actual: t.From, Reason: "execution starts only through a dispatch claim"}
	case ActionStatusCompleted:
		if len(t.Error) > 0 {
			return &StateError{ActionID: t.ActionID, Expected: t.From, Target: t.To, Actual: t.From, Reason: "completed transition cannot carry an error"}
		}
	case ActionStatusFailed:
		if len(t.Result) > 0 {
			return &StateError{ActionID: t.ActionID, Expected: t.From, Target: t.To, Actual: t.From, Reason: "failed transition cannot carry a result"}
		}
	}
	return nil
}
