package driven

import (
	"context"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// JournalEntry records one dispatched action for loop-guard corroboration
// and operator audit.
type JournalEntry struct {
	Repo       string
	PRNumber   int
	ActionKind model.ActionKind
	Detail     string
	OK         bool
	At         time.Time
}

// ActionJournal defines the driven port for the local, best-effort record
// of the engine's own side effects. It is explicitly non-authoritative:
// all lifecycle decisions re-derive state from the platform, and the
// engine behaves correctly with an empty or unavailable journal. Callers
// treat Record failures as log-and-continue.
type ActionJournal interface {
	Record(ctx context.Context, e JournalEntry) error

	// Recent returns entries for the given PR newer than the window,
	// ordered newest first.
	Recent(ctx context.Context, repo string, prNumber int, window time.Duration) ([]JournalEntry, error)
}
