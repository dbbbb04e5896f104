// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Platform.
	GitHubToken string
	BotLogin    string

	// Server.
	ListenAddr string
	DBPath     string

	// Risk classification.
	AnthropicAPIKey string
	RiskModel       string
	BlockAt         model.RiskLevel
	ClassifyTimeout time.Duration
	PolicyDocPath   string
	IncidentDocPath string

	// Ticketing (optional; Jira is disabled when JiraBaseURL is empty).
	JiraBaseURL    string
	JiraEmail      string
	JiraToken      string
	JiraProjectKey string

	// Notifications (optional; mail is disabled when SMTPAddr is empty).
	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailTo       []string
}

// JiraEnabled reports whether ticket creation is configured.
func (c *Config) JiraEnabled() bool {
	return c.JiraBaseURL != "" && c.JiraProjectKey != ""
}

// MailEnabled reports whether notification email is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPAddr != "" && c.MailFrom != "" && len(c.MailTo) > 0
}

// Load reads configuration from environment variables and returns a
// validated Config. PRWARDEN_GITHUB_TOKEN, PRWARDEN_BOT_LOGIN, and
// PRWARDEN_ANTHROPIC_API_KEY are required. Optional variables with
// defaults: PRWARDEN_LISTEN_ADDR (127.0.0.1:8080), PRWARDEN_DB_PATH
// (prwarden.db), PRWARDEN_BLOCK_AT (medium), PRWARDEN_CLASSIFY_TIMEOUT
// (30s). Jira and SMTP settings are optional; leaving them unset disables
// the corresponding adapter.
func Load() (*Config, error) {
	token := os.Getenv("PRWARDEN_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("PRWARDEN_GITHUB_TOKEN is required")
	}

	botLogin := os.Getenv("PRWARDEN_BOT_LOGIN")
	if botLogin == "" {
		return nil, fmt.Errorf("PRWARDEN_BOT_LOGIN is required")
	}

	apiKey := os.Getenv("PRWARDEN_ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("PRWARDEN_ANTHROPIC_API_KEY is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("PRWARDEN_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "prwarden.db"
	if v, ok := os.LookupEnv("PRWARDEN_DB_PATH"); ok {
		dbPath = v
	}

	blockAt := model.RiskMedium
	if v, ok := os.LookupEnv("PRWARDEN_BLOCK_AT"); ok {
		parsed, valid := model.ParseRiskLevel(v)
		if !valid {
			return nil, fmt.Errorf("PRWARDEN_BLOCK_AT has invalid risk level %q (want low, medium, or high)", v)
		}
		blockAt = parsed
	}

	classifyTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("PRWARDEN_CLASSIFY_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PRWARDEN_CLASSIFY_TIMEOUT has invalid duration %q: %w", v, err)
		}
		classifyTimeout = parsed
	}

	var mailTo []string
	if v := os.Getenv("PRWARDEN_MAIL_TO"); v != "" {
		for _, addr := range strings.Split(v, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				mailTo = append(mailTo, addr)
			}
		}
	}

	return &Config{
		GitHubToken:     token,
		BotLogin:        botLogin,
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		AnthropicAPIKey: apiKey,
		RiskModel:       os.Getenv("PRWARDEN_RISK_MODEL"),
		BlockAt:         blockAt,
		ClassifyTimeout: classifyTimeout,
		PolicyDocPath:   os.Getenv("PRWARDEN_POLICY_DOC"),
		IncidentDocPath: os.Getenv("PRWARDEN_INCIDENT_DOC"),
		JiraBaseURL:     os.Getenv("PRWARDEN_JIRA_BASE_URL"),
		JiraEmail:       os.Getenv("PRWARDEN_JIRA_EMAIL"),
		JiraToken:       os.Getenv("PRWARDEN_JIRA_TOKEN"),
		JiraProjectKey:  os.Getenv("PRWARDEN_JIRA_PROJECT"),
		SMTPAddr:        os.Getenv("PRWARDEN_SMTP_ADDR"),
		SMTPUsername:    os.Getenv("PRWARDEN_SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("PRWARDEN_SMTP_PASSWORD"),
		MailFrom:        os.Getenv("PRWARDEN_MAIL_FROM"),
		MailTo:          mailTo,
	}, nil
}
