package jira_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jiraAdapter "github.com/jthorburn/prwarden/internal/adapter/driven/jira"
)

func newTestClient(t *testing.T, handler http.Handler) *jiraAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return jiraAdapter.NewClient(server.URL, "bot@example.com", "secret-token", "SCRUM", logger)
}

func TestCreateTicket(t *testing.T) {
	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "secret-token", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "10042", "key": "SCRUM-142"})
	})

	client := newTestClient(t, mux)

	key, err := client.CreateTicket(context.Background(), "[HIGH] Audit: PR #12", "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "SCRUM-142", key)

	fields := got["fields"].(map[string]any)
	assert.Equal(t, "[HIGH] Audit: PR #12", fields["summary"])
	assert.Equal(t, map[string]any{"key": "SCRUM"}, fields["project"])
	assert.Equal(t, map[string]any{"name": "Task"}, fields["issuetype"])

	desc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", desc["type"])
}

func TestCreateTicket_MissingKeyInResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "10042"})
	})

	client := newTestClient(t, mux)

	_, err := client.CreateTicket(context.Background(), "s", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a key")
}

func TestUpdateTicket(t *testing.T) {
	var got map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue/SCRUM-142/comment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "1"})
	})

	client := newTestClient(t, mux)

	err := client.UpdateTicket(context.Background(), "SCRUM-142", "Risk accepted by alice")
	require.NoError(t, err)

	body := got["body"].(map[string]any)
	content := body["content"].([]any)
	para := content[0].(map[string]any)
	text := para["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "Risk accepted by alice", text["text"])
}

func TestCreateTicket_RetriesServerError(t *testing.T) {
	attempts := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"key": "SCRUM-7"})
	})

	client := newTestClient(t, mux)

	key, err := client.CreateTicket(context.Background(), "s", "c")
	require.NoError(t, err)
	assert.Equal(t, "SCRUM-7", key)
	assert.Equal(t, 2, attempts)
}

func TestCreateTicket_DoesNotRetryClientError(t *testing.T) {
	attempts := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"errorMessages":["project is required"]}`, http.StatusBadRequest)
	})

	client := newTestClient(t, mux)

	_, err := client.CreateTicket(context.Background(), "s", "c")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "400")
}

func TestDisabled(t *testing.T) {
	var d jiraAdapter.Disabled

	key, err := d.CreateTicket(context.Background(), "s", "c")
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, d.UpdateTicket(context.Background(), "SCRUM-1", "note"))
}
