package driven

import "context"

// Ticketer defines the driven port for the audit/ticketing capability.
type Ticketer interface {
	// CreateTicket opens a governance ticket and returns its reference
	// (e.g. "SCRUM-142").
	CreateTicket(ctx context.Context, summary, correlationID string) (string, error)

	// UpdateTicket appends a note to an existing ticket.
	UpdateTicket(ctx context.Context, ticketRef, note string) error
}

// Notifier defines the driven port for best-effort human notification.
// Failures are logged and never block the main action sequence.
type Notifier interface {
	SendNotification(ctx context.Context, subject, body string) error
}
