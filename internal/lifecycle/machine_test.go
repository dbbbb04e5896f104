package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

func kinds(actions []model.Action) []model.ActionKind {
	out := make([]model.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func pendingState() model.PRState {
	return model.PRState{Number: 7, Status: model.StatusPending, HeadSHA: "abc123", BranchRef: "fix-css-typo"}
}

func TestOnPushNewBranch(t *testing.T) {
	actions := New().OnPushNewBranch("fix-css-typo")
	assert.Equal(t, []model.ActionKind{model.ActionCreatePullRequest}, kinds(actions))
	assert.Equal(t, "fix-css-typo", actions[0].Branch)
}

func TestOnVerdictLowMergesWithoutClosing(t *testing.T) {
	v := model.RiskVerdict{Level: model.RiskLow, Rationale: "CSS only", Source: "test-model"}
	actions := New().OnVerdictLow(pendingState(), v)

	assert.Equal(t, []model.ActionKind{
		model.ActionSetStatus,
		model.ActionMergePR,
		model.ActionPostComment,
	}, kinds(actions))
	assert.Equal(t, model.StatusStateSuccess, actions[0].State)
	assert.NotContains(t, kinds(actions), model.ActionClosePR)
}

func TestOnVerdictLowUpdatesExistingTicket(t *testing.T) {
	st := pendingState()
	st.Context = &model.WorkflowContext{CorrelationID: "c1", TicketRef: "SCRUM-9"}
	v := model.RiskVerdict{Level: model.RiskLow, Source: "test-model"}

	actions := New().OnVerdictLow(st, v)
	assert.Contains(t, kinds(actions), model.ActionUpdateTicket)
	for _, a := range actions {
		if a.Kind == model.ActionUpdateTicket {
			assert.Equal(t, "SCRUM-9", a.TicketRef)
			assert.True(t, a.Independent)
		}
	}
}

func TestOnVerdictBlockedClosesWithoutMerging(t *testing.T) {
	v := model.RiskVerdict{Level: model.RiskHigh, Rationale: "schema drop", Source: "test-model"}
	actions := New().OnVerdictBlocked(pendingState(), v, "corr-1", "push to refactor-auth")

	assert.Equal(t, []model.ActionKind{
		model.ActionSetStatus,
		model.ActionClosePR,
		model.ActionCreateTicket,
		model.ActionPostComment,
		model.ActionNotify,
	}, kinds(actions))
	assert.NotContains(t, kinds(actions), model.ActionMergePR)
	assert.Equal(t, model.StatusStateFailure, actions[0].State)

	// The blocked comment must carry a resumable context.
	comment := actions[3]
	require.NotNil(t, comment.Embed)
	assert.Equal(t, "corr-1", comment.Embed.CorrelationID)
	assert.Equal(t, "HIGH", comment.Embed.RiskLevel)
	assert.Equal(t, "abc123", comment.Embed.HeadSHA)
	assert.False(t, comment.Embed.RiskAccepted)

	// Ticket, comment, and notification are audit-trail actions that must
	// still attempt after a platform-mutation failure.
	assert.True(t, actions[2].Independent)
	assert.True(t, actions[3].Independent)
	assert.True(t, actions[4].Independent)
}

func TestOnApproveOrdersCommentBeforeReopen(t *testing.T) {
	st := pendingState()
	st.Status = model.StatusBlockedClosed
	st.Context = &model.WorkflowContext{
		CorrelationID: "corr-1",
		TicketRef:     "SCRUM-9",
		RiskLevel:     "HIGH",
		HeadSHA:       "abc123",
	}

	actions := New().OnApprove(st, "alice", "corr-1")
	assert.Equal(t, []model.ActionKind{
		model.ActionUpdateTicket,
		model.ActionPostComment,
		model.ActionReopenPR,
		model.ActionSetStatus,
		model.ActionMergePR,
		model.ActionPostComment,
	}, kinds(actions))

	// The accepted-comment precedes the reopen and flags RiskAccepted so the
	// reopen-triggered delivery suppresses re-analysis.
	accepted := actions[1]
	require.NotNil(t, accepted.Embed)
	assert.True(t, accepted.Embed.RiskAccepted)
	assert.Equal(t, "SCRUM-9", accepted.Embed.TicketRef)
	assert.False(t, accepted.Independent)

	assert.Equal(t, model.StatusStateSuccess, actions[3].State)
	assert.Equal(t, "abc123", actions[3].SHA)
}

func TestOnApproveWithoutRecoveredContext(t *testing.T) {
	st := pendingState()
	st.Status = model.StatusBlockedClosed

	actions := New().OnApprove(st, "alice", "corr-new")

	// No ticket to update, but the flow still reopens and merges.
	assert.Equal(t, []model.ActionKind{
		model.ActionPostComment,
		model.ActionReopenPR,
		model.ActionSetStatus,
		model.ActionMergePR,
		model.ActionPostComment,
	}, kinds(actions))
	require.NotNil(t, actions[0].Embed)
	assert.Equal(t, "corr-new", actions[0].Embed.CorrelationID)
	assert.True(t, actions[0].Embed.RiskAccepted)
}

func TestOnRejectStaysClosed(t *testing.T) {
	st := pendingState()
	st.Status = model.StatusBlockedClosed
	st.Context = &model.WorkflowContext{CorrelationID: "c1", TicketRef: "SCRUM-9"}

	actions := New().OnReject(st, "alice")
	assert.Equal(t, []model.ActionKind{
		model.ActionUpdateTicket,
		model.ActionPostComment,
	}, kinds(actions))
	assert.NotContains(t, kinds(actions), model.ActionReopenPR)
	assert.NotContains(t, kinds(actions), model.ActionMergePR)
}

func TestOnCreateBranch(t *testing.T) {
	actions := New().OnCreateBranch(pendingState(), "test-v2")
	assert.Equal(t, []model.ActionKind{
		model.ActionCreateBranch,
		model.ActionPostComment,
	}, kinds(actions))
	assert.Equal(t, "test-v2", actions[0].Branch)
}
