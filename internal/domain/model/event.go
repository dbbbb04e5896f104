// Package model contains the domain types shared across the engine:
// events, intents, risk verdicts, workflow context, PR state, and actions.
package model

import "time"

// EventKind identifies the category of an inbound webhook event.
type EventKind string

const (
	EventPush           EventKind = "push"
	EventPROpened       EventKind = "pr-opened"
	EventPRSynchronized EventKind = "pr-synchronized"
	EventComment        EventKind = "comment"
)

// Event is an immutable record of an externally observed occurrence,
// normalized by the ingress adapter. It is consumed exactly once by a
// single invocation and never mutated.
type Event struct {
	Kind        EventKind
	Actor       string // GitHub login of whoever caused the event.
	Repo        string // "owner/name" full form.
	BranchRef   string // Populated for push events (bare branch name, no refs/heads/ prefix).
	PRNumber    int    // Populated for pr-* and comment events.
	HeadSHA     string // Head commit for pr-* events; used for commit statuses.
	CommentBody string // Populated for comment events.

	// ChangeSummary describes the change for risk classification:
	// PR title plus diff metadata as reported by the platform.
	ChangeSummary string
	ReceivedAt    time.Time
}
