// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// ErrPRNotFound indicates the requested pull request does not exist.
var ErrPRNotFound = errors.New("pull request not found")

// LivePR is the platform-authoritative snapshot of a pull request. It is
// the only source of truth the engine trusts; local caches are never
// consulted for lifecycle decisions.
type LivePR struct {
	Number    int
	Open      bool
	Merged    bool
	HeadSHA   string
	BranchRef string
	Title     string
}

// Comment is one PR conversation entry as returned by the platform.
type Comment struct {
	Author string
	Body   string
}

// GitClient defines the driven port for the source-control execution
// capability. Every call is safe to retry at the adapter level; the engine
// itself never retries.
type GitClient interface {
	// CreatePullRequest opens a PR from branch onto the repository default
	// branch and returns the new PR number.
	CreatePullRequest(ctx context.Context, repo, branch string) (int, error)

	// OpenPRNumberForBranch returns the number of the open PR whose head is
	// branch, or (0, nil) when none exists.
	OpenPRNumberForBranch(ctx context.Context, repo, branch string) (int, error)

	// PullRequest fetches the live state of a PR.
	// Returns ErrPRNotFound if the number is unknown.
	PullRequest(ctx context.Context, repo string, number int) (LivePR, error)

	// SetStatus sets the commit status for sha under the engine's status context.
	SetStatus(ctx context.Context, repo, sha string, state model.StatusState, description string) error

	ClosePullRequest(ctx context.Context, repo string, number int) error
	ReopenPullRequest(ctx context.Context, repo string, number int) error
	MergePullRequest(ctx context.Context, repo string, number int) error

	PostComment(ctx context.Context, repo string, number int, body string) error

	// ListRecentComments returns up to limit conversation comments for the
	// PR, ordered newest first.
	ListRecentComments(ctx context.Context, repo string, number int, limit int) ([]Comment, error)

	// CreateBranch creates branch from the head of base (repository default
	// branch when base is empty).
	CreateBranch(ctx context.Context, repo, branch, base string) error

	// PermissionLevel returns the collaborator permission of user on repo:
	// "admin", "maintain", "write", "triage", "read", or "none".
	PermissionLevel(ctx context.Context, repo, user string) (string, error)
}
