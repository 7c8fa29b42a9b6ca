package remediation

// AutoApprover is recorded as approved_by when the gate approves without a human.
const AutoApprover = "auto"

// Decision is the outcome of the approval gate for a new action.
type Decision struct {
	AutoApprove bool
	ApprovedBy  string
}

// Decide applies the approval policy. The host's maintenance flag is sampled once, when
// the action is created; later changes to the flag do not affect queued actions.
func Decide(hostPaused bool) Decision {
	if hostPaused {
		return Decision{}
	}
	return Decision{AutoApprove: true, ApprovedBy: AutoApprover}
}
