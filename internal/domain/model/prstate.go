package model

// PRStatus is the lifecycle position of a governed pull request.
type PRStatus string

const (
	// StatusPending: open, analysis not yet concluded.
	StatusPending PRStatus = "pending"
	// StatusApprovedOpen: open with risk accepted (low verdict or human override).
	StatusApprovedOpen PRStatus = "approved-open"
	// StatusBlockedClosed: closed by the engine pending human approval.
	StatusBlockedClosed PRStatus = "blocked-closed"
	// StatusMerged is terminal.
	StatusMerged PRStatus = "merged"
)

// PRState is the state machine's subject. It is not stored anywhere:
// every invocation reconstructs it from the live platform state (the
// open/closed/merged flag plus the most recent recoverable context),
// which is what makes concurrent and duplicate deliveries safe.
type PRState struct {
	Number      int
	Status      PRStatus
	BranchRef   string
	HeadSHA     string
	Context     *WorkflowContext // Most recent recoverable context, nil if none.
	LastVerdict *RiskVerdict     // Last verdict computed in this invocation, nil otherwise.
}

// DerivePRStatus maps live platform facts to a lifecycle status.
func DerivePRStatus(open, merged bool, recovered *WorkflowContext) PRStatus {
	switch {
	case merged:
		return StatusMerged
	case !open:
		// Closed without merge. With or without a recoverable context this
		// is the blocked position: an approval comment can still resume the
		// workflow, degrading to a fresh context when recovery missed.
		return StatusBlockedClosed
	case recovered != nil && recovered.RiskAccepted:
		return StatusApprovedOpen
	default:
		return StatusPending
	}
}
