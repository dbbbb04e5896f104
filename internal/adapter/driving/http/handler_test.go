package httphandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// recordingHandler captures events handed to HandleEvent.
type recordingHandler struct {
	events []model.Event
	err    error
}

func (r *recordingHandler) HandleEvent(_ context.Context, ev model.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func newTestServer(t *testing.T, rec *recordingHandler) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(rec, logger)
	server := httptest.NewServer(NewServeMux(h, logger))
	t.Cleanup(server.Close)

	return server
}

func postWebhook(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(server.URL+"/api/v1/webhook", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestWebhook_PushEvent(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"ref": "refs/heads/feature-x",
		"after": "abc123",
		"repository": {"full_name": "octocat/hello-world"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)

	ev := rec.events[0]
	assert.Equal(t, model.EventPush, ev.Kind)
	assert.Equal(t, "feature-x", ev.BranchRef)
	assert.Equal(t, "abc123", ev.HeadSHA)
	assert.Equal(t, "octocat/hello-world", ev.Repo)
	assert.Equal(t, "alice", ev.Actor)
}

func TestWebhook_BranchDeletionIgnored(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"ref": "refs/heads/feature-x",
		"after": "0000000000000000000000000000000000000000",
		"deleted": true,
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_TagPushIgnored(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"ref": "refs/tags/v1.0.0",
		"after": "abc123",
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_PullRequestOpened(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "opened",
		"pull_request": {
			"number": 12,
			"title": "Rename user_id column",
			"head": {"ref": "schema-change", "sha": "def456"},
			"changed_files": 3,
			"additions": 40,
			"deletions": 12
		},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)

	ev := rec.events[0]
	assert.Equal(t, model.EventPROpened, ev.Kind)
	assert.Equal(t, 12, ev.PRNumber)
	assert.Equal(t, "def456", ev.HeadSHA)
	assert.Equal(t, "schema-change", ev.BranchRef)
	assert.Contains(t, ev.ChangeSummary, "Rename user_id column")
	assert.Contains(t, ev.ChangeSummary, "3 files changed, +40 -12")
}

func TestWebhook_PullRequestReopenedNormalizesToOpened(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "reopened",
		"pull_request": {"number": 12, "title": "t", "head": {"ref": "b", "sha": "s"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "prwarden-bot"}
	}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.EventPROpened, rec.events[0].Kind)
}

func TestWebhook_PullRequestSynchronize(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "synchronize",
		"pull_request": {"number": 12, "title": "t", "head": {"ref": "b", "sha": "newsha"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.EventPRSynchronized, rec.events[0].Kind)
	assert.Equal(t, "newsha", rec.events[0].HeadSHA)
}

func TestWebhook_PullRequestClosedIgnored(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "closed",
		"pull_request": {"number": 12, "title": "t", "head": {"ref": "b", "sha": "s"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_PRComment(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "created",
		"issue": {"number": 12, "pull_request": {"url": "https://api.github.com/repos/o/r/pulls/12"}},
		"comment": {"body": "approved", "user": {"login": "maint"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "maint"}
	}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, rec.events, 1)

	ev := rec.events[0]
	assert.Equal(t, model.EventComment, ev.Kind)
	assert.Equal(t, 12, ev.PRNumber)
	assert.Equal(t, "approved", ev.CommentBody)
	assert.Equal(t, "maint", ev.Actor)
}

func TestWebhook_IssueCommentOnPlainIssueIgnored(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "created",
		"issue": {"number": 9},
		"comment": {"body": "approved", "user": {"login": "maint"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "maint"}
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_EditedCommentIgnored(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"action": "edited",
		"issue": {"number": 12, "pull_request": {"url": "u"}},
		"comment": {"body": "approved", "user": {"login": "maint"}},
		"repository": {"full_name": "o/r"},
		"sender": {"login": "maint"}
	}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_InvalidJSON(t *testing.T) {
	rec := &recordingHandler{}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{not json`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, rec.events)
}

func TestWebhook_HandlerErrorReturns500(t *testing.T) {
	rec := &recordingHandler{err: errors.New("boom")}
	server := newTestServer(t, rec)

	resp := postWebhook(t, server, `{
		"ref": "refs/heads/b",
		"after": "sha",
		"repository": {"full_name": "o/r"},
		"sender": {"login": "alice"}
	}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &recordingHandler{})

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"status":"ok"`)
}
