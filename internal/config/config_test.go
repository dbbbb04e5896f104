package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// allConfigKeys lists every PRWARDEN_ env var that Load() reads.
var allConfigKeys = []string{
	"PRWARDEN_GITHUB_TOKEN",
	"PRWARDEN_BOT_LOGIN",
	"PRWARDEN_LISTEN_ADDR",
	"PRWARDEN_DB_PATH",
	"PRWARDEN_ANTHROPIC_API_KEY",
	"PRWARDEN_RISK_MODEL",
	"PRWARDEN_BLOCK_AT",
	"PRWARDEN_CLASSIFY_TIMEOUT",
	"PRWARDEN_POLICY_DOC",
	"PRWARDEN_INCIDENT_DOC",
	"PRWARDEN_JIRA_BASE_URL",
	"PRWARDEN_JIRA_EMAIL",
	"PRWARDEN_JIRA_TOKEN",
	"PRWARDEN_JIRA_PROJECT",
	"PRWARDEN_SMTP_ADDR",
	"PRWARDEN_SMTP_USERNAME",
	"PRWARDEN_SMTP_PASSWORD",
	"PRWARDEN_MAIL_FROM",
	"PRWARDEN_MAIL_TO",
}

// isolateConfigEnv saves and unsets all PRWARDEN_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Setenv("PRWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("PRWARDEN_BOT_LOGIN", "prwarden-bot")
	t.Setenv("PRWARDEN_ANTHROPIC_API_KEY", "sk-ant-test")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("PRWARDEN_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("PRWARDEN_DB_PATH", "/tmp/test.db")
	t.Setenv("PRWARDEN_RISK_MODEL", "claude-test-model")
	t.Setenv("PRWARDEN_BLOCK_AT", "high")
	t.Setenv("PRWARDEN_CLASSIFY_TIMEOUT", "45s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "prwarden-bot", cfg.BotLogin)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "claude-test-model", cfg.RiskModel)
	assert.Equal(t, model.RiskHigh, cfg.BlockAt)
	assert.Equal(t, 45*time.Second, cfg.ClassifyTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "prwarden.db", cfg.DBPath)
	assert.Equal(t, model.RiskMedium, cfg.BlockAt)
	assert.Equal(t, 30*time.Second, cfg.ClassifyTimeout)
	assert.Empty(t, cfg.RiskModel)
	assert.False(t, cfg.JiraEnabled())
	assert.False(t, cfg.MailEnabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		unset string
	}{
		{"github token", "PRWARDEN_GITHUB_TOKEN"},
		{"bot login", "PRWARDEN_BOT_LOGIN"},
		{"anthropic key", "PRWARDEN_ANTHROPIC_API_KEY"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			os.Unsetenv(tc.unset)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.unset)
		})
	}
}

func TestLoad_InvalidBlockAt(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("PRWARDEN_BLOCK_AT", "critical")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRWARDEN_BLOCK_AT")
}

func TestLoad_InvalidClassifyTimeout(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("PRWARDEN_CLASSIFY_TIMEOUT", "soon")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRWARDEN_CLASSIFY_TIMEOUT")
}

func TestLoad_JiraAndMail(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("PRWARDEN_JIRA_BASE_URL", "https://example.atlassian.net")
	t.Setenv("PRWARDEN_JIRA_EMAIL", "bot@example.com")
	t.Setenv("PRWARDEN_JIRA_TOKEN", "jira-token")
	t.Setenv("PRWARDEN_JIRA_PROJECT", "SCRUM")
	t.Setenv("PRWARDEN_SMTP_ADDR", "smtp.example.com:587")
	t.Setenv("PRWARDEN_MAIL_FROM", "prwarden@example.com")
	t.Setenv("PRWARDEN_MAIL_TO", "governance@example.com, oncall@example.com,")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.JiraEnabled())
	assert.True(t, cfg.MailEnabled())
	assert.Equal(t, []string{"governance@example.com", "oncall@example.com"}, cfg.MailTo)
}
