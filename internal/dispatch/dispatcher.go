// Package dispatch executes the ordered action sequences the state machine
// emits against the external collaborators. It owns sequencing, the
// dependent-chain abort rule, dispatch-time context embedding, and
// best-effort journaling. It never retries: retry policy lives in the
// adapters' transports.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
	"github.com/jthorburn/prwarden/internal/marker"
)

// Dispatcher submits actions to the execution, ticketing, and notification
// collaborators.
type Dispatcher struct {
	git      driven.GitClient
	ticketer driven.Ticketer
	notifier driven.Notifier
	journal  driven.ActionJournal
	logger   *slog.Logger
}

// New creates a Dispatcher. journal may be nil (journaling disabled);
// ticketer and notifier may be no-op implementations.
func New(git driven.GitClient, ticketer driven.Ticketer, notifier driven.Notifier, journal driven.ActionJournal, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{git: git, ticketer: ticketer, notifier: notifier, journal: journal, logger: logger}
}

// Dispatch executes actions in order. The first failing dependent action
// aborts all remaining dependent actions (a merge must not run after a
// failed reopen); actions marked Independent still attempt, because
// audit-trail completeness is prioritized over strict atomicity.
// A ticket created earlier in the sequence flows into later ticket updates
// and embedded contexts with an empty TicketRef.
func (d *Dispatcher) Dispatch(ctx context.Context, repo string, actions []model.Action) []model.ActionOutcome {
	outcomes := make([]model.ActionOutcome, 0, len(actions))
	chainBroken := false
	createdTicket := ""

	for _, a := range actions {
		if chainBroken && !a.Independent {
			outcomes = append(outcomes, model.ActionOutcome{Action: a, Skipped: true})
			continue
		}

		ref, err := d.execute(ctx, repo, a, createdTicket)
		if ref != "" {
			createdTicket = ref
		}
		if err != nil {
			d.logger.Error("action failed",
				"repo", repo, "pr", a.PRNumber, "action", a.Kind, "error", err)
			if !a.Independent {
				chainBroken = true
			}
		}

		d.record(ctx, repo, a, err)
		outcomes = append(outcomes, model.ActionOutcome{Action: a, Err: err})
	}

	return outcomes
}

// execute runs one action. For create-ticket it returns the new ticket ref.
func (d *Dispatcher) execute(ctx context.Context, repo string, a model.Action, createdTicket string) (string, error) {
	switch a.Kind {
	case model.ActionCreatePullRequest:
		_, err := d.git.CreatePullRequest(ctx, repo, a.Branch)
		return "", err

	case model.ActionCreateBranch:
		return "", d.git.CreateBranch(ctx, repo, a.Branch, a.BaseBranch)

	case model.ActionSetStatus:
		if a.SHA == "" {
			// No commit to attach a status to; not an error worth breaking
			// the chain for.
			d.logger.Warn("set-status skipped, no head SHA", "repo", repo, "pr", a.PRNumber)
			return "", nil
		}
		return "", d.git.SetStatus(ctx, repo, a.SHA, a.State, a.StateDesc)

	case model.ActionClosePR:
		return "", d.git.ClosePullRequest(ctx, repo, a.PRNumber)

	case model.ActionReopenPR:
		return "", d.git.ReopenPullRequest(ctx, repo, a.PRNumber)

	case model.ActionMergePR:
		return "", d.git.MergePullRequest(ctx, repo, a.PRNumber)

	case model.ActionPostComment:
		body := a.Body
		if a.Embed != nil {
			// Context is serialized at dispatch time so a ticket created
			// earlier in this sequence lands in the marker.
			embed := *a.Embed
			if embed.TicketRef == "" {
				embed.TicketRef = createdTicket
			}
			body = marker.Append(body, embed)
		}
		return "", d.git.PostComment(ctx, repo, a.PRNumber, body)

	case model.ActionCreateTicket:
		ref, err := d.ticketer.CreateTicket(ctx, a.TicketSummary, a.CorrelationID)
		if err != nil {
			return "", err
		}
		return ref, nil

	case model.ActionUpdateTicket:
		ref := a.TicketRef
		if ref == "" {
			ref = createdTicket
		}
		if ref == "" {
			d.logger.Warn("update-ticket skipped, no ticket reference", "repo", repo, "pr", a.PRNumber)
			return "", nil
		}
		return "", d.ticketer.UpdateTicket(ctx, ref, a.Body)

	case model.ActionNotify:
		// Best-effort by contract: a notification failure is logged by the
		// caller but, being Independent, never stalls the sequence.
		return "", d.notifier.SendNotification(ctx, a.Subject, a.Body)

	default:
		return "", fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// record journals the attempt best-effort; journal failures are logged and
// swallowed, never surfaced as action failures.
func (d *Dispatcher) record(ctx context.Context, repo string, a model.Action, actionErr error) {
	if d.journal == nil {
		return
	}

	detail := a.Branch
	if detail == "" {
		detail = a.StateDesc
	}

	e := driven.JournalEntry{
		Repo:       repo,
		PRNumber:   a.PRNumber,
		ActionKind: a.Kind,
		Detail:     detail,
		OK:         actionErr == nil,
		At:         time.Now().UTC(),
	}
	if err := d.journal.Record(ctx, e); err != nil {
		d.logger.Warn("journal write failed", "action", a.Kind, "error", err)
	}
}
