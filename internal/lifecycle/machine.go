// Package lifecycle holds the pull-request state machine: pure decision
// functions that map a reconstructed PR state plus a classified trigger to
// an ordered action sequence. No I/O happens here; the dispatcher executes
// the sequence and the platform stores the resulting state.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// StatusContext is the commit-status check name the engine publishes under.
const StatusContext = "prwarden/risk"

// Machine produces action sequences for lifecycle transitions.
type Machine struct{}

// New creates a Machine.
func New() Machine { return Machine{} }

// OnPushNewBranch handles a push to a non-default branch that has no open
// PR yet: open one. The platform will deliver a pr-opened event for the
// new PR, which is where analysis starts.
func (Machine) OnPushNewBranch(branch string) []model.Action {
	return []model.Action{
		{Kind: model.ActionCreatePullRequest, Branch: branch},
	}
}

// OnAnalysisRequested marks the head commit pending before classification
// runs, so the status check is visible while the classifier thinks.
func (Machine) OnAnalysisRequested(st model.PRState) []model.Action {
	return []model.Action{
		{
			Kind:      model.ActionSetStatus,
			PRNumber:  st.Number,
			SHA:       st.HeadSHA,
			State:     model.StatusStatePending,
			StateDesc: "Analyzing change risk",
		},
	}
}

// OnVerdictLow transitions Pending → Approved-Open → Merged: success
// status, merge, ticket note when a ticket exists, success comment.
func (Machine) OnVerdictLow(st model.PRState, v model.RiskVerdict) []model.Action {
	actions := []model.Action{
		{
			Kind:      model.ActionSetStatus,
			PRNumber:  st.Number,
			SHA:       st.HeadSHA,
			State:     model.StatusStateSuccess,
			StateDesc: "Low risk - safe to merge",
		},
		{Kind: model.ActionMergePR, PRNumber: st.Number},
	}

	if st.Context != nil && st.Context.TicketRef != "" {
		actions = append(actions, model.Action{
			Kind:        model.ActionUpdateTicket,
			PRNumber:    st.Number,
			TicketRef:   st.Context.TicketRef,
			Body:        "Re-analysis returned LOW risk; pull request auto-merged.",
			Independent: true,
		})
	}

	actions = append(actions, model.Action{
		Kind:        model.ActionPostComment,
		PRNumber:    st.Number,
		Body:        verdictReport(v) + "\n\n**Auto-merge**: low risk, merging automatically.",
		Independent: true,
	})
	return actions
}

// OnVerdictBlocked transitions Pending → Blocked-Closed. Closing is the
// enforcement primitive: a failing status check alone cannot stop a merge
// without branch-protection features this engine assumes are unavailable.
// The blocked comment carries the workflow context so a later approval
// comment on the closed PR can resume the workflow.
func (Machine) OnVerdictBlocked(st model.PRState, v model.RiskVerdict, correlationID, originalRequest string) []model.Action {
	embed := &model.WorkflowContext{
		CorrelationID:   correlationID,
		OriginalRequest: originalRequest,
		RiskLevel:       v.Level.String(),
		HeadSHA:         st.HeadSHA,
	}

	summary := fmt.Sprintf("%s risk change blocked on PR #%d", v.Level, st.Number)

	return []model.Action{
		{
			Kind:      model.ActionSetStatus,
			PRNumber:  st.Number,
			SHA:       st.HeadSHA,
			State:     model.StatusStateFailure,
			StateDesc: fmt.Sprintf("%s risk - approval required", v.Level),
		},
		{Kind: model.ActionClosePR, PRNumber: st.Number},
		{
			Kind:          model.ActionCreateTicket,
			PRNumber:      st.Number,
			TicketSummary: summary,
			CorrelationID: correlationID,
			Independent:   true,
		},
		{
			Kind:     model.ActionPostComment,
			PRNumber: st.Number,
			Body: verdictReport(v) +
				"\n\n**Blocked**: this pull request has been closed pending approval." +
				"\nComment `approved` (authorized reviewers) to accept the risk and merge, or `rejected` to deny.",
			Embed:       embed,
			Independent: true,
		},
		{
			Kind:        model.ActionNotify,
			PRNumber:    st.Number,
			Subject:     summary,
			Body:        verdictReport(v),
			Independent: true,
		},
	}
}

// OnApprove transitions Blocked-Closed → Approved-Open → Merged. Ordering
// is load-bearing: the risk-accepted comment (with its embedded context)
// is posted before the reopen, so the reopen-triggered webhook delivery
// recovers a context marked RiskAccepted and suppresses re-analysis.
func (Machine) OnApprove(st model.PRState, actor, correlationID string) []model.Action {
	ctx := model.WorkflowContext{CorrelationID: correlationID, HeadSHA: st.HeadSHA}
	recovered := st.Context != nil
	if recovered {
		ctx = *st.Context
	}
	ctx.RiskAccepted = true

	acceptedBody := fmt.Sprintf("**Risk accepted**: unblocked by %s, reopening for merge.", actor)
	if !recovered {
		// Context recovery missed; say so where a human can re-supply it.
		acceptedBody += "\n\nNote: no prior analysis context was recoverable for this pull request; proceeding with a fresh workflow context."
	}

	var actions []model.Action
	if ctx.TicketRef != "" {
		actions = append(actions, model.Action{
			Kind:        model.ActionUpdateTicket,
			PRNumber:    st.Number,
			TicketRef:   ctx.TicketRef,
			Body:        fmt.Sprintf("Approved by %s: risk accepted, pull request unblocked.", actor),
			Independent: true,
		})
	}

	sha := ctx.HeadSHA
	if sha == "" {
		sha = st.HeadSHA
	}

	actions = append(actions,
		model.Action{
			Kind:     model.ActionPostComment,
			PRNumber: st.Number,
			Body:     acceptedBody,
			Embed:    &ctx,
		},
		model.Action{Kind: model.ActionReopenPR, PRNumber: st.Number},
		model.Action{
			Kind:      model.ActionSetStatus,
			PRNumber:  st.Number,
			SHA:       sha,
			State:     model.StatusStateSuccess,
			StateDesc: fmt.Sprintf("Approved by %s", actor),
		},
		model.Action{Kind: model.ActionMergePR, PRNumber: st.Number},
		model.Action{
			Kind:        model.ActionPostComment,
			PRNumber:    st.Number,
			Body:        "**Status**: merged automatically.",
			Independent: true,
		},
	)
	return actions
}

// OnReject keeps Blocked-Closed as the terminal answer for this request;
// only a future push restarts the workflow with a fresh PR.
func (Machine) OnReject(st model.PRState, actor string) []model.Action {
	actions := []model.Action{}
	if st.Context != nil && st.Context.TicketRef != "" {
		actions = append(actions, model.Action{
			Kind:        model.ActionUpdateTicket,
			PRNumber:    st.Number,
			TicketRef:   st.Context.TicketRef,
			Body:        fmt.Sprintf("Rejected by %s: request denied.", actor),
			Independent: true,
		})
	}
	return append(actions, model.Action{
		Kind:        model.ActionPostComment,
		PRNumber:    st.Number,
		Body:        fmt.Sprintf("**Request rejected**: the operation has been denied by %s. The pull request stays closed.", actor),
		Independent: true,
	})
}

// OnCreateBranch is the fast path for a branch-creation command: no risk
// analysis, just the branch and a confirmation.
func (Machine) OnCreateBranch(st model.PRState, name string) []model.Action {
	return []model.Action{
		{Kind: model.ActionCreateBranch, PRNumber: st.Number, Branch: name},
		{
			Kind:        model.ActionPostComment,
			PRNumber:    st.Number,
			Body:        fmt.Sprintf("Created branch `%s`.", name),
			Independent: true,
		},
	}
}

func verdictReport(v model.RiskVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Risk analysis** (%s)\n\n", v.Source)
	fmt.Fprintf(&b, "**Level**: %s\n\n%s", v.Level, v.Rationale)
	if len(v.References) > 0 {
		fmt.Fprintf(&b, "\n\nReferences: %s", strings.Join(v.References, ", "))
	}
	return b.String()
}
