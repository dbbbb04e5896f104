// Package anthropic implements the RiskClassifier port on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-3-5-haiku-latest"

	maxReplyTokens = 1024
	maxChangeChars = 5000
	retryElapsed   = 30 * time.Second
)

// Classifier asks a Claude model for a risk assessment of a proposed change.
type Classifier struct {
	client anthropic.Client
	model  anthropic.Model
}

// Classifier satisfies the driven port.
var _ driven.RiskClassifier = (*Classifier)(nil)

// New creates a Classifier. An empty model falls back to DefaultModel.
func New(apiKey, modelName string) *Classifier {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Classifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(modelName),
	}
}

// Classify sends the change summary plus knowledge documents to the model
// and parses the structured verdict out of its reply. Rate limiting and
// transient server errors are retried with exponential backoff; a call
// that is still throttled when retries are exhausted surfaces ErrThrottled.
func (c *Classifier) Classify(ctx context.Context, change, policyDoc, incidentDoc string) (model.RiskVerdict, error) {
	prompt := buildPrompt(change, policyDoc, incidentDoc)

	var text string
	op := func() error {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: maxReplyTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
			return backoff.Permanent(errors.New("unexpected response format: no text block"))
		}
		text = msg.Content[0].Text
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return model.RiskVerdict{}, fmt.Errorf("anthropic: %w", driven.ErrThrottled)
		}
		return model.RiskVerdict{}, fmt.Errorf("anthropic messages call: %w", err)
	}

	return parseVerdict(text, string(c.model)), nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

func buildPrompt(change, policyDoc, incidentDoc string) string {
	if len(change) > maxChangeChars {
		change = change[:maxChangeChars]
	}

	var b strings.Builder
	b.WriteString("You are a PR Risk Analyzer. Analyze the following change and provide a risk assessment.\n\n")
	b.WriteString("Proposed change:\n")
	b.WriteString(change)
	b.WriteString("\n\nKNOWLEDGE BASE CONTEXT (use this for risk analysis):\n\n")
	b.WriteString(policyDoc)
	b.WriteString("\n\n")
	b.WriteString(incidentDoc)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Analyze the change using the KNOWLEDGE BASE above\n")
	b.WriteString("2. Identify risk level: LOW, MEDIUM, or HIGH\n")
	b.WriteString("3. Reference specific incidents or policies from the KB by identifier\n")
	b.WriteString("4. Explain your reasoning\n\n")
	b.WriteString("Provide your analysis in this format:\n")
	b.WriteString("RISK LEVEL: [LOW/MEDIUM/HIGH]\n")
	b.WriteString("REASONING: [Your detailed analysis referencing KB]\n")
	b.WriteString("RECOMMENDATION: [What should be done]\n")
	return b.String()
}

// Matches "RISK LEVEL: HIGH" but also markdown-mangled variants such as
// "**RISK LEVEL:** HIGH" and "**RISK LEVEL**: HIGH".
var riskLevelRe = regexp.MustCompile(`(?i)RISK LEVEL\W+(HIGH|MEDIUM|LOW)`)

var reasoningRe = regexp.MustCompile(`(?is)REASONING\W+(.*?)(?:\n\s*\**RECOMMENDATION|\z)`)

// Incident and policy identifiers look like OUTAGE-2024-06 or POL-012.
var referenceRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]{2,}-[0-9]{2,4}(?:-[0-9]{2})?\b`)

// parseVerdict extracts the structured fields from the model's free-text
// reply. An unparseable level is treated as HIGH so a confused model can
// never wave a change through.
func parseVerdict(text, source string) model.RiskVerdict {
	level := model.RiskHigh
	if m := riskLevelRe.FindStringSubmatch(text); m != nil {
		if parsed, ok := model.ParseRiskLevel(m[1]); ok {
			level = parsed
		}
	}

	rationale := strings.TrimSpace(text)
	if m := reasoningRe.FindStringSubmatch(text); m != nil {
		if r := strings.TrimSpace(m[1]); r != "" {
			rationale = r
		}
	}

	var refs []string
	seen := make(map[string]struct{})
	for _, ref := range referenceRe.FindAllString(text, -1) {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	return model.RiskVerdict{
		Level:      level,
		Rationale:  rationale,
		References: refs,
		Source:     source,
	}
}
