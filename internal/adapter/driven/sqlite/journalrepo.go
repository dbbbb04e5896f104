package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActionJournal = (*JournalRepo)(nil)

// JournalRepo is the SQLite implementation of the ActionJournal port. The
// journal is corroborative only; nothing reads it to decide lifecycle
// state, so every query here tolerates an empty table.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a new JournalRepo backed by the given DB.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Record inserts one dispatched-action entry.
func (r *JournalRepo) Record(ctx context.Context, e driven.JournalEntry) error {
	const query = `
		INSERT INTO action_journal (repo, pr_number, action_kind, detail, ok, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	ok := 0
	if e.OK {
		ok = 1
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	if _, err := r.db.Writer.ExecContext(ctx, query,
		e.Repo, e.PRNumber, string(e.ActionKind), e.Detail, ok, at.UTC(),
	); err != nil {
		return fmt.Errorf("insert journal entry for %s#%d: %w", e.Repo, e.PRNumber, err)
	}

	return nil
}

// Recent returns entries for the given PR recorded within the window,
// newest first.
func (r *JournalRepo) Recent(ctx context.Context, repo string, prNumber int, window time.Duration) ([]driven.JournalEntry, error) {
	const query = `
		SELECT repo, pr_number, action_kind, detail, ok, recorded_at
		FROM action_journal
		WHERE repo = ? AND pr_number = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC, id DESC
	`

	cutoff := time.Now().Add(-window).UTC()

	rows, err := r.db.Reader.QueryContext(ctx, query, repo, prNumber, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query journal for %s#%d: %w", repo, prNumber, err)
	}
	defer rows.Close()

	var entries []driven.JournalEntry
	for rows.Next() {
		var (
			e    driven.JournalEntry
			kind string
			ok   int
		)
		if err := rows.Scan(&e.Repo, &e.PRNumber, &kind, &e.Detail, &ok, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.ActionKind = model.ActionKind(kind)
		e.OK = ok != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than the retention window. Intended to run
// periodically from the composition root so the file does not grow without
// bound.
func (r *JournalRepo) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	const query = `DELETE FROM action_journal WHERE recorded_at < ?`

	cutoff := time.Now().Add(-retention).UTC()

	res, err := r.db.Writer.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune journal rows affected: %w", err)
	}

	return n, nil
}
