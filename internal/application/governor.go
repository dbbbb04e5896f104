// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jthorburn/prwarden/internal/dispatch"
	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
	"github.com/jthorburn/prwarden/internal/intent"
	"github.com/jthorburn/prwarden/internal/lifecycle"
	"github.com/jthorburn/prwarden/internal/loopguard"
	"github.com/jthorburn/prwarden/internal/marker"
	"github.com/jthorburn/prwarden/internal/risk"
)

// recentCommentLimit bounds how much comment history is scanned for a
// recoverable workflow context.
const recentCommentLimit = 50

// defaultBranches are never auto-PR'd on push.
var defaultBranches = []string{"main", "master"}

// authorizedLevels are the collaborator permissions allowed to approve or
// reject a blocked pull request.
var authorizedLevels = []string{"admin", "maintain", "write"}

// Governor drives one webhook delivery through the full decision pipeline:
// reconstruct state from the platform, loop-guard, parse or classify, run
// the state machine, and dispatch the resulting actions. It holds no
// mutable state between invocations; concurrent deliveries for the same PR
// are safe because every decision starts from live platform state.
type Governor struct {
	git        driven.GitClient
	engine     *risk.Engine
	machine    lifecycle.Machine
	dispatcher *dispatch.Dispatcher
	guard      loopguard.Guard
	journal    driven.ActionJournal
	logger     *slog.Logger
}

// NewGovernor creates a Governor. journal may be nil.
func NewGovernor(
	git driven.GitClient,
	engine *risk.Engine,
	dispatcher *dispatch.Dispatcher,
	guard loopguard.Guard,
	journal driven.ActionJournal,
	logger *slog.Logger,
) *Governor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		git:        git,
		engine:     engine,
		machine:    lifecycle.New(),
		dispatcher: dispatcher,
		guard:      guard,
		journal:    journal,
		logger:     logger,
	}
}

// HandleEvent processes one normalized event to completion. It returns an
// error only for reporting: the invocation never rolls back side effects
// already dispatched, and partial failure is logged per action.
func (g *Governor) HandleEvent(ctx context.Context, ev model.Event) error {
	switch ev.Kind {
	case model.EventPush:
		return g.handlePush(ctx, ev)
	case model.EventPROpened, model.EventPRSynchronized:
		return g.handleAnalysis(ctx, ev)
	case model.EventComment:
		return g.handleComment(ctx, ev)
	default:
		g.logger.Debug("ignoring event of unknown kind", "kind", ev.Kind)
		return nil
	}
}

// handlePush opens an auto-PR for pushes to non-default branches that have
// no open PR yet. Idempotent: an existing open PR makes this a no-op, so
// duplicate deliveries and rapid successive pushes are harmless.
func (g *Governor) handlePush(ctx context.Context, ev model.Event) error {
	if ev.BranchRef == "" || slices.Contains(defaultBranches, ev.BranchRef) {
		g.logger.Debug("ignoring push", "repo", ev.Repo, "branch", ev.BranchRef)
		return nil
	}

	if g.guard.SelfTriggered(ev, nil, nil) {
		g.logger.Info("suppressing self-triggered push", "repo", ev.Repo, "branch", ev.BranchRef, "actor", ev.Actor)
		return nil
	}

	existing, err := g.git.OpenPRNumberForBranch(ctx, ev.Repo, ev.BranchRef)
	if err != nil {
		return fmt.Errorf("check open PR for branch %s: %w", ev.BranchRef, err)
	}
	if existing != 0 {
		g.logger.Info("open PR already exists for branch", "repo", ev.Repo, "branch", ev.BranchRef, "pr", existing)
		return nil
	}

	g.logger.Info("creating auto-PR", "repo", ev.Repo, "branch", ev.BranchRef)
	return g.dispatchAll(ctx, ev.Repo, g.machine.OnPushNewBranch(ev.BranchRef))
}

// handleAnalysis runs the risk gate for pr-opened / pr-synchronized events.
func (g *Governor) handleAnalysis(ctx context.Context, ev model.Event) error {
	st, recent, err := g.reconstruct(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return err
	}

	if g.guard.SelfTriggered(ev, st.Context, recent) {
		g.logger.Info("suppressing self-triggered event",
			"repo", ev.Repo, "pr", ev.PRNumber, "kind", ev.Kind, "actor", ev.Actor)
		return nil
	}

	if st.Status == model.StatusMerged || st.Status == model.StatusBlockedClosed {
		// Stale delivery: the PR already reached a decided position.
		g.logger.Info("skipping analysis, PR not open", "repo", ev.Repo, "pr", ev.PRNumber, "status", st.Status)
		return nil
	}

	if ev.HeadSHA != "" {
		st.HeadSHA = ev.HeadSHA
	}

	if err := g.dispatchAll(ctx, ev.Repo, g.machine.OnAnalysisRequested(st)); err != nil {
		// A failed pending status does not stop the analysis; it only
		// degrades visibility.
		g.logger.Warn("failed to set pending status", "repo", ev.Repo, "pr", ev.PRNumber, "error", err)
	}

	change := ev.ChangeSummary
	if change == "" {
		change = fmt.Sprintf("pull request #%d on %s, branch %s", st.Number, ev.Repo, st.BranchRef)
	}

	// A later event's verdict always supersedes an earlier one for the
	// same PR: the verdict computed here is the authoritative one.
	verdict := g.engine.Classify(ctx, change)
	st.LastVerdict = &verdict
	g.logger.Info("risk verdict",
		"repo", ev.Repo, "pr", ev.PRNumber, "level", verdict.Level.String(), "source", verdict.Source)

	var actions []model.Action
	if g.engine.Blocks(verdict) {
		actions = g.machine.OnVerdictBlocked(st, verdict, g.correlationID(st), change)
	} else {
		actions = g.machine.OnVerdictLow(st, verdict)
	}
	return g.dispatchAll(ctx, ev.Repo, actions)
}

// handleComment extracts an intent from a comment and applies it.
func (g *Governor) handleComment(ctx context.Context, ev model.Event) error {
	if g.guard.SelfTriggered(ev, nil, nil) {
		g.logger.Debug("ignoring own comment", "repo", ev.Repo, "pr", ev.PRNumber)
		return nil
	}

	in := intent.Parse(ev.CommentBody)
	if in.Kind == model.IntentNone {
		return nil
	}

	// Approve/Reject gate on an authorization check; an unauthorized
	// actor's command is treated as no command at all, with no
	// user-visible error (who is authorized is not leaked).
	if in.Kind == model.IntentApprove || in.Kind == model.IntentReject {
		ok, err := g.authorized(ctx, ev.Repo, ev.Actor)
		if err != nil {
			return fmt.Errorf("permission lookup for %s: %w", ev.Actor, err)
		}
		if !ok {
			g.logger.Info("unauthorized intent downgraded to none",
				"repo", ev.Repo, "pr", ev.PRNumber, "actor", ev.Actor, "intent", in.Kind)
			return nil
		}
	}

	st, _, err := g.reconstruct(ctx, ev.Repo, ev.PRNumber)
	if err != nil {
		return err
	}

	switch in.Kind {
	case model.IntentCreateBranch:
		// Branch commands must address the bot; approval keywords work
		// bare so chatter never creates branches by accident.
		if !intent.Mentioned(ev.CommentBody) {
			return nil
		}
		return g.dispatchAll(ctx, ev.Repo, g.machine.OnCreateBranch(st, in.BranchName))

	case model.IntentApprove:
		if st.Status != model.StatusBlockedClosed {
			g.logger.Info("approve intent ignored, PR not blocked",
				"repo", ev.Repo, "pr", ev.PRNumber, "status", st.Status)
			return nil
		}
		if st.Context == nil {
			g.logger.Warn("approval without recoverable context, proceeding fresh",
				"repo", ev.Repo, "pr", ev.PRNumber)
		}
		return g.dispatchAll(ctx, ev.Repo, g.machine.OnApprove(st, ev.Actor, g.correlationID(st)))

	case model.IntentReject:
		if st.Status != model.StatusBlockedClosed {
			return nil
		}
		return g.dispatchAll(ctx, ev.Repo, g.machine.OnReject(st, ev.Actor))
	}

	return nil
}

// reconstruct derives the authoritative PRState for this invocation from
// live platform state: the open/closed/merged flag plus the newest
// recoverable workflow context in the comment history. The journal read is
// best-effort corroboration for the loop guard.
func (g *Governor) reconstruct(ctx context.Context, repo string, number int) (model.PRState, []driven.JournalEntry, error) {
	live, err := g.git.PullRequest(ctx, repo, number)
	if err != nil {
		return model.PRState{}, nil, fmt.Errorf("fetch PR %s#%d: %w", repo, number, err)
	}

	var recovered *model.WorkflowContext
	comments, err := g.git.ListRecentComments(ctx, repo, number, recentCommentLimit)
	if err != nil {
		// Degrade to no context rather than failing the invocation.
		g.logger.Warn("comment history unavailable", "repo", repo, "pr", number, "error", err)
	} else {
		bodies := make([]string, len(comments))
		for i, c := range comments {
			bodies[i] = c.Body
		}
		if c, derr := marker.Decode(bodies); derr == nil {
			recovered = &c
		} else if !errors.Is(derr, marker.ErrNotFound) {
			g.logger.Warn("context recovery failed", "repo", repo, "pr", number, "error", derr)
		}
	}

	var recent []driven.JournalEntry
	if g.journal != nil {
		if entries, jerr := g.journal.Recent(ctx, repo, number, loopguard.SuppressWindow); jerr == nil {
			recent = entries
		} else {
			g.logger.Warn("journal read failed", "repo", repo, "pr", number, "error", jerr)
		}
	}

	return model.PRState{
		Number:    number,
		Status:    model.DerivePRStatus(live.Open, live.Merged, recovered),
		BranchRef: live.BranchRef,
		HeadSHA:   live.HeadSHA,
		Context:   recovered,
	}, recent, nil
}

func (g *Governor) authorized(ctx context.Context, repo, actor string) (bool, error) {
	level, err := g.git.PermissionLevel(ctx, repo, actor)
	if err != nil {
		return false, err
	}
	return slices.Contains(authorizedLevels, strings.ToLower(level)), nil
}

// correlationID reuses the recovered context's id so a workflow keeps one
// id across invocations, minting a fresh one otherwise.
func (g *Governor) correlationID(st model.PRState) string {
	if st.Context != nil && st.Context.CorrelationID != "" {
		return st.Context.CorrelationID
	}
	return uuid.NewString()
}

// dispatchAll runs the sequence and folds per-action failures into one
// reportable error. Skipped actions are not failures.
func (g *Governor) dispatchAll(ctx context.Context, repo string, actions []model.Action) error {
	var errs []error
	for _, o := range g.dispatcher.Dispatch(ctx, repo, actions) {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Action.Kind, o.Err))
		}
	}
	return errors.Join(errs...)
}
