// Package httphandler is the HTTP driving adapter: it receives platform
// webhook deliveries, normalizes them into domain events, and hands them
// to the governor.
package httphandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// EventHandler consumes one normalized domain event per invocation. The
// application governor satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.Event) error
}

// Handler serves the webhook ingress endpoint.
type Handler struct {
	events EventHandler
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(events EventHandler, logger *slog.Logger) *Handler {
	return &Handler{
		events: events,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/webhook", h.Webhook)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// webhookPayload is the union of the GitHub payload fields the engine
// cares about. Classification goes by payload shape rather than the
// X-GitHub-Event header so redeliveries and proxied deliveries that drop
// headers still classify correctly.
type webhookPayload struct {
	Ref     string `json:"ref"`
	After   string `json:"after"`
	Deleted bool   `json:"deleted"`
	Action  string `json:"action"`

	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`

	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`

	PullRequest *struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Head   struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		ChangedFiles int `json:"changed_files"`
		Additions    int `json:"additions"`
		Deletions    int `json:"deletions"`
	} `json:"pull_request"`

	Issue *struct {
		Number      int              `json:"number"`
		PullRequest *json.RawMessage `json:"pull_request"`
	} `json:"issue"`

	Comment *struct {
		Body string `json:"body"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
}

// Webhook accepts a platform delivery, normalizes it, and runs one engine
// invocation. Deliveries that do not map to a domain event are
// acknowledged and dropped.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	ev, ok := normalize(payload)
	if !ok {
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	if err := h.events.HandleEvent(r.Context(), ev); err != nil {
		h.logger.Error("event handling failed",
			"kind", ev.Kind, "repo", ev.Repo, "pr", ev.PRNumber, "error", err)
		writeError(w, http.StatusInternalServerError, "event handling failed")
		return
	}

	writeJSON(w, http.StatusAccepted, webhookResponse{Status: "accepted", Kind: string(ev.Kind)})
}

// normalize maps a raw payload onto a domain event. The bool result is
// false for deliveries the engine ignores: branch deletions, pushes to
// refs that are not branches, non-created comment actions, comments on
// plain issues, and pull request actions outside the lifecycle set.
func normalize(p webhookPayload) (model.Event, bool) {
	ev := model.Event{
		Actor:      p.Sender.Login,
		Repo:       p.Repository.FullName,
		ReceivedAt: time.Now(),
	}

	switch {
	case p.Comment != nil && p.Issue != nil:
		if p.Action != "created" || p.Issue.PullRequest == nil {
			return model.Event{}, false
		}
		ev.Kind = model.EventComment
		ev.PRNumber = p.Issue.Number
		ev.CommentBody = p.Comment.Body
		ev.Actor = p.Comment.User.Login
		return ev, true

	case p.PullRequest != nil:
		switch p.Action {
		case "opened", "reopened":
			ev.Kind = model.EventPROpened
		case "synchronize":
			ev.Kind = model.EventPRSynchronized
		default:
			return model.Event{}, false
		}
		pr := p.PullRequest
		ev.PRNumber = pr.Number
		ev.HeadSHA = pr.Head.SHA
		ev.BranchRef = pr.Head.Ref
		ev.ChangeSummary = changeSummary(pr.Title, pr.Head.Ref, pr.ChangedFiles, pr.Additions, pr.Deletions)
		return ev, true

	case p.Ref != "" && p.After != "":
		if p.Deleted || !strings.HasPrefix(p.Ref, "refs/heads/") {
			return model.Event{}, false
		}
		ev.Kind = model.EventPush
		ev.BranchRef = strings.TrimPrefix(p.Ref, "refs/heads/")
		ev.HeadSHA = p.After
		return ev, true
	}

	return model.Event{}, false
}

func changeSummary(title, branch string, files, additions, deletions int) string {
	var b strings.Builder
	b.WriteString(title)
	if branch != "" {
		fmt.Fprintf(&b, " (branch %s)", branch)
	}
	if files > 0 {
		plural := "files"
		if files == 1 {
			plural = "file"
		}
		fmt.Fprintf(&b, ", %d %s changed, +%d -%d", files, plural, additions, deletions)
	}
	return b.String()
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}
