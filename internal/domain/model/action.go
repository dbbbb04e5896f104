package model

// ActionKind identifies an outbound side effect produced by the state machine.
type ActionKind string

const (
	ActionCreatePullRequest ActionKind = "create-pull-request"
	ActionCreateBranch      ActionKind = "create-branch"
	ActionSetStatus         ActionKind = "set-status"
	ActionClosePR           ActionKind = "close-pr"
	ActionReopenPR          ActionKind = "reopen-pr"
	ActionMergePR           ActionKind = "merge-pr"
	ActionPostComment       ActionKind = "post-comment"
	ActionCreateTicket      ActionKind = "create-ticket"
	ActionUpdateTicket      ActionKind = "update-ticket"
	ActionNotify            ActionKind = "notify"
)

// StatusState mirrors the three commit-status colors the platform supports.
type StatusState string

const (
	StatusStatePending StatusState = "pending"
	StatusStateSuccess StatusState = "success"
	StatusStateFailure StatusState = "failure"
)

// Action is one ordered step of the sequence a decision emits. Fields are
// kind-specific; unused fields stay zero.
type Action struct {
	Kind     ActionKind
	PRNumber int

	Branch     string      // create-pull-request, create-branch.
	BaseBranch string      // create-branch.
	SHA        string      // set-status.
	State      StatusState // set-status.
	StateDesc  string      // set-status.

	Body string // post-comment; update-ticket note; notify body.
	// Embed, when set on a post-comment action, is serialized into the
	// comment body as a marker token at dispatch time. Dispatch-time
	// encoding lets a ticket reference created earlier in the same
	// sequence flow into the embedded context.
	Embed *WorkflowContext

	TicketSummary string // create-ticket.
	TicketRef     string // update-ticket; empty means "use the ref created earlier in this sequence".
	CorrelationID string // create-ticket.

	Subject string // notify.

	// Independent actions still attempt after a dependent-chain failure:
	// audit-trail completeness (tickets, notifications) is prioritized
	// over strict atomicity.
	Independent bool
}

// ActionOutcome records the result of dispatching a single action.
type ActionOutcome struct {
	Action  Action
	Err     error
	Skipped bool // Aborted because an earlier dependent action failed.
}
