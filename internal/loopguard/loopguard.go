// Package loopguard decides whether an inbound event is a side effect of
// the engine's own actions. It runs unconditionally before intent parsing
// and risk classification: reacting to our own reopen or comment would
// loop forever. The predicate is deliberately biased: failing to suppress
// a self-caused event wastes one analysis, while suppressing a legitimate
// human event loses work, so when uncertain it does not suppress.
package loopguard

import (
	"strings"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

// SuppressWindow bounds how far back journal corroboration looks. Reopen
// and create webhooks arrive within seconds of the API call; anything
// older is treated as unrelated.
const SuppressWindow = 2 * time.Minute

// Guard holds the engine's own identity.
type Guard struct {
	// BotLogin is the account the engine acts as. GitHub App installations
	// surface as "<name>[bot]"; both forms are recognized.
	BotLogin string
}

// New creates a Guard for the given bot login.
func New(botLogin string) Guard {
	return Guard{BotLogin: botLogin}
}

// SelfTriggered reports whether ev was caused by the engine itself.
// recovered is the most recent workflow context decoded from the PR's
// comment history (nil when none), recent the engine's own journaled
// actions for the PR within SuppressWindow (nil or empty when the journal
// is unavailable, which never causes suppression by itself).
func (g Guard) SelfTriggered(ev model.Event, recovered *model.WorkflowContext, recent []driven.JournalEntry) bool {
	if g.isSelf(ev.Actor) {
		return true
	}

	if ev.Kind != model.EventPROpened && ev.Kind != model.EventPRSynchronized {
		return false
	}

	// A reopened or reclassified PR whose latest context says the risk was
	// already accepted must not be re-analyzed: the engine itself just
	// reopened it and a fresh analysis would close it again.
	if recovered != nil && recovered.RiskAccepted {
		return true
	}

	// Corroboration: the journal proves this process reopened or created
	// the same PR moments ago. Only positive proof suppresses.
	for _, e := range recent {
		if e.PRNumber != ev.PRNumber || !e.OK {
			continue
		}
		if e.ActionKind == model.ActionReopenPR || e.ActionKind == model.ActionCreatePullRequest {
			if ev.ReceivedAt.Sub(e.At) < SuppressWindow {
				return true
			}
		}
	}

	return false
}

func (g Guard) isSelf(actor string) bool {
	if g.BotLogin == "" || actor == "" {
		return false
	}
	if strings.EqualFold(actor, g.BotLogin) {
		return true
	}
	return strings.EqualFold(actor, g.BotLogin+"[bot]") ||
		strings.EqualFold(strings.TrimSuffix(actor, "[bot]"), g.BotLogin)
}
