// Package github implements the GitClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

// statusContext is the commit-status check name all statuses publish under.
const statusContext = "prwarden/risk"

// Compile-time interface satisfaction check.
var _ driven.GitClient = (*Client)(nil)

// Client implements the driven.GitClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// CreatePullRequest opens a PR from branch onto the repository default
// branch and returns the new PR number.
func (c *Client) CreatePullRequest(ctx context.Context, repoFullName, branch string) (int, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	base, err := c.defaultBranch(ctx, owner, repo)
	if err != nil {
		return 0, err
	}

	pr, resp, err := c.gh.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.Ptr(fmt.Sprintf("Auto-PR: %s", branch)),
		Head:  gh.Ptr(branch),
		Base:  gh.Ptr(base),
		Body:  gh.Ptr(fmt.Sprintf("Automatically opened for branch `%s`.", branch)),
	})
	if err != nil {
		return 0, fmt.Errorf("creating PR for %s branch %s: %w", repoFullName, branch, err)
	}
	logRateLimit(resp, repoFullName)

	return pr.GetNumber(), nil
}

// OpenPRNumberForBranch returns the number of the open PR whose head is
// branch, or (0, nil) when none exists.
func (c *Client) OpenPRNumberForBranch(ctx context.Context, repoFullName, branch string) (int, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, &gh.PullRequestListOptions{
		State:       "open",
		Head:        owner + ":" + branch,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("listing open PRs for %s branch %s: %w", repoFullName, branch, err)
	}
	logRateLimit(resp, repoFullName)

	if len(prs) == 0 {
		return 0, nil
	}
	return prs[0].GetNumber(), nil
}

// PullRequest fetches the live state of a PR.
func (c *Client) PullRequest(ctx context.Context, repoFullName string, number int) (driven.LivePR, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return driven.LivePR{}, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return driven.LivePR{}, fmt.Errorf("%s#%d: %w", repoFullName, number, driven.ErrPRNotFound)
		}
		return driven.LivePR{}, fmt.Errorf("fetching PR %s#%d: %w", repoFullName, number, err)
	}
	logRateLimit(resp, repoFullName)

	return driven.LivePR{
		Number:    pr.GetNumber(),
		Open:      pr.GetState() == "open",
		Merged:    pr.GetMerged() || !pr.GetMergedAt().IsZero(),
		HeadSHA:   pr.GetHead().GetSHA(),
		BranchRef: pr.GetHead().GetRef(),
		Title:     pr.GetTitle(),
	}, nil
}

// SetStatus sets the commit status for sha under the engine's status context.
func (c *Client) SetStatus(ctx context.Context, repoFullName, sha string, state model.StatusState, description string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Repositories.CreateStatus(ctx, owner, repo, sha, gh.RepoStatus{
		State:       gh.Ptr(string(state)),
		Description: gh.Ptr(description),
		Context:     gh.Ptr(statusContext),
	})
	if err != nil {
		return fmt.Errorf("setting %s status on %s@%s: %w", state, repoFullName, sha, err)
	}
	logRateLimit(resp, repoFullName)
	return nil
}

// ClosePullRequest closes a PR without merging.
func (c *Client) ClosePullRequest(ctx context.Context, repoFullName string, number int) error {
	return c.editState(ctx, repoFullName, number, "closed")
}

// ReopenPullRequest reopens a closed, unmerged PR.
func (c *Client) ReopenPullRequest(ctx context.Context, repoFullName string, number int) error {
	return c.editState(ctx, repoFullName, number, "open")
}

func (c *Client) editState(ctx context.Context, repoFullName string, number int, state string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, &gh.PullRequest{
		State: gh.Ptr(state),
	})
	if err != nil {
		return fmt.Errorf("setting PR %s#%d state to %s: %w", repoFullName, number, state, err)
	}
	logRateLimit(resp, repoFullName)
	return nil
}

// MergePullRequest merges a PR with the default merge method.
func (c *Client) MergePullRequest(ctx context.Context, repoFullName string, number int) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	result, resp, err := c.gh.PullRequests.Merge(ctx, owner, repo, number, "", &gh.PullRequestOptions{})
	if err != nil {
		return fmt.Errorf("merging PR %s#%d: %w", repoFullName, number, err)
	}
	logRateLimit(resp, repoFullName)

	if !result.GetMerged() {
		return fmt.Errorf("merging PR %s#%d: %s", repoFullName, number, result.GetMessage())
	}
	return nil
}

// PostComment adds a PR-level comment (via the Issues API, which is where
// PR conversation comments live).
func (c *Client) PostComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", repoFullName, number, err)
	}
	logRateLimit(resp, repoFullName)
	return nil
}

// ListRecentComments returns up to limit conversation comments, newest first.
func (c *Client) ListRecentComments(ctx context.Context, repoFullName string, number, limit int) ([]driven.Comment, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.Ptr("created"),
		Direction:   gh.Ptr("desc"),
		ListOptions: gh.ListOptions{PerPage: min(limit, 100)},
	}

	out := make([]driven.Comment, 0, limit)
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments for %s#%d (page %d): %w", repoFullName, number, opts.Page, err)
		}
		logRateLimit(resp, repoFullName)

		for _, cm := range comments {
			out = append(out, driven.Comment{
				Author: cm.GetUser().GetLogin(),
				Body:   cm.GetBody(),
			})
			if len(out) >= limit {
				return out, nil
			}
		}

		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateBranch creates branch from the head of base (the repository
// default branch when base is empty).
func (c *Client) CreateBranch(ctx context.Context, repoFullName, branch, base string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	if base == "" {
		base, err = c.defaultBranch(ctx, owner, repo)
		if err != nil {
			return err
		}
	}

	baseRef, resp, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+base)
	if err != nil {
		return fmt.Errorf("resolving base branch %s on %s: %w", base, repoFullName, err)
	}
	logRateLimit(resp, repoFullName)

	_, resp, err = c.gh.Git.CreateRef(ctx, owner, repo, gh.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: baseRef.GetObject().GetSHA(),
	})
	if err != nil {
		return fmt.Errorf("creating branch %s on %s: %w", branch, repoFullName, err)
	}
	logRateLimit(resp, repoFullName)
	return nil
}

// PermissionLevel returns the collaborator permission of user on repo.
func (c *Client) PermissionLevel(ctx context.Context, repoFullName, user string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	perm, resp, err := c.gh.Repositories.GetPermissionLevel(ctx, owner, repo, user)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			// Not a collaborator at all.
			return "none", nil
		}
		return "", fmt.Errorf("permission lookup for %s on %s: %w", user, repoFullName, err)
	}
	logRateLimit(resp, repoFullName)

	return perm.GetPermission(), nil
}

// defaultBranch fetches the repository's default branch name.
func (c *Client) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}
	logRateLimit(resp, owner+"/"+repo)

	if b := r.GetDefaultBranch(); b != "" {
		return b, nil
	}
	return "main", nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
