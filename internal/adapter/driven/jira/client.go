// Package jira implements the Ticketer port against the Jira Cloud v3
// REST API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

const (
	defaultTimeout = 15 * time.Second
	retryElapsed   = 30 * time.Second
)

// Client creates and annotates governance tickets in a Jira project.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	token      string
	projectKey string
	logger     *slog.Logger
}

var _ driven.Ticketer = (*Client)(nil)

// NewClient creates a Jira client. baseURL is the site root, for example
// https://example.atlassian.net.
func NewClient(baseURL, email, token, projectKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		email:      email,
		token:      token,
		projectKey: projectKey,
		logger:     logger,
	}
}

// adfDoc wraps plain text in the Atlassian Document Format the v3 API
// requires for description and comment bodies.
func adfDoc(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

// CreateTicket opens a Task in the configured project and returns its key.
func (c *Client) CreateTicket(ctx context.Context, summary, correlationID string) (string, error) {
	description := fmt.Sprintf("Risk governance audit trail.\n\n%s\n\nCorrelation ID: %s\nCreated: %s",
		summary, correlationID, time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	payload := map[string]any{
		"fields": map[string]any{
			"project":     map[string]any{"key": c.projectKey},
			"summary":     summary,
			"description": adfDoc(description),
			"issuetype":   map[string]any{"name": "Task"},
		},
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := c.post(ctx, "/rest/api/3/issue", payload, &created); err != nil {
		return "", fmt.Errorf("creating jira issue: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("jira issue created without a key")
	}

	c.logger.Info("jira ticket created", "ticket", created.Key, "correlation_id", correlationID)
	return created.Key, nil
}

// UpdateTicket appends a comment to an existing issue.
func (c *Client) UpdateTicket(ctx context.Context, ticketRef, note string) error {
	payload := map[string]any{"body": adfDoc(note)}

	if err := c.post(ctx, "/rest/api/3/issue/"+ticketRef+"/comment", payload, nil); err != nil {
		return fmt.Errorf("commenting on jira issue %s: %w", ticketRef, err)
	}
	return nil
}

// post sends a JSON payload, retrying rate limits and server errors with
// exponential backoff. A non-nil out receives the decoded response body.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.email, c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil {
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
				}
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("jira returned %d", resp.StatusCode)
		default:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("jira returned %d: %s", resp.StatusCode, detail))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryElapsed
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// Disabled is a Ticketer that does nothing, used when Jira is not
// configured. Dependent actions still run; the audit trail simply has no
// ticket to point at.
type Disabled struct{}

var _ driven.Ticketer = Disabled{}

func (Disabled) CreateTicket(context.Context, string, string) (string, error) { return "", nil }

func (Disabled) UpdateTicket(context.Context, string, string) error { return nil }
