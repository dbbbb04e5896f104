package model

// IntentKind tags the command variants the intent parser can produce.
type IntentKind string

const (
	IntentCreateBranch IntentKind = "create-branch"
	IntentApprove      IntentKind = "approve"
	IntentReject       IntentKind = "reject"
	IntentNone         IntentKind = "none"
)

// Intent is a structured command derived from free-form comment text.
// Exactly one Intent is derived per comment event; absence of a
// recognized command is IntentNone, not an error.
type Intent struct {
	Kind       IntentKind
	BranchName string // Only set for IntentCreateBranch.
}

// NoIntent is the zero command returned when no rule matches.
var NoIntent = Intent{Kind: IntentNone}
