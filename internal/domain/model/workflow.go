package model

// WorkflowContext is the durable cross-invocation state needed to resume a
// workflow after an unrelated later event (e.g. an approval comment on a PR
// the engine itself closed). It is never persisted locally: the codec embeds
// it in a posted comment and recovers it from the comment history of the
// same PR. A context belongs to exactly one PR.
type WorkflowContext struct {
	CorrelationID   string `json:"correlation_id"`
	OriginalRequest string `json:"original_request,omitempty"` // Triggering intent or change descriptor.
	TicketRef       string `json:"ticket_ref,omitempty"`
	RiskLevel       string `json:"risk_level,omitempty"` // Label form of the last computed verdict.
	HeadSHA         string `json:"head_sha,omitempty"`   // Commit the blocking status was set on.
	// RiskAccepted marks that a human overrode the verdict. Set on the
	// context embedded in the approval comment, posted before the reopen so
	// the reopen-triggered delivery can recognize itself as self-caused.
	RiskAccepted bool `json:"risk_accepted,omitempty"`
}
