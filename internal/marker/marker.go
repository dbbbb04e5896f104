// Package marker encodes workflow context into an opaque token embedded in
// posted comments, and recovers it from comment history on a later
// invocation. The token is an HTML comment: invisible in the platform's
// rendered markdown, preserved verbatim in the raw comment body the API
// returns, and untouched by markdown normalization.
package marker

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// ErrNotFound indicates no valid token exists anywhere in the scanned history.
var ErrNotFound = errors.New("no workflow context marker found")

const (
	prefix  = "prwarden"
	version = "v1"
)

// tokenRe matches our token and captures the payload. The payload alphabet
// is base64url, which cannot collide with HTML comment delimiters.
var tokenRe = regexp.MustCompile(`<!--\s*` + prefix + `:` + version + `\s+([A-Za-z0-9_-]+=*)\s*-->`)

// Encode produces the deterministic token form of c.
func Encode(c model.WorkflowContext) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal workflow context: %w", err)
	}
	return fmt.Sprintf("<!-- %s:%s %s -->", prefix, version, base64.URLEncoding.EncodeToString(raw)), nil
}

// Append attaches the token for c to a human-readable comment body.
// Encoding failure degrades to the bare body; a comment without context is
// recoverable later (the decoder just keeps scanning), a lost comment is not.
func Append(body string, c model.WorkflowContext) string {
	tok, err := Encode(c)
	if err != nil {
		return body
	}
	return body + "\n\n" + tok
}

// Decode scans comment bodies ordered newest first and returns the first
// context that parses. Malformed, foreign, or garbled tokens are skipped;
// the function is total over arbitrary input and returns ErrNotFound when
// nothing valid is present. When several valid tokens exist (repeated
// failed approvals leave one each), the most recent wins.
func Decode(bodies []string) (model.WorkflowContext, error) {
	for _, body := range bodies {
		for _, m := range tokenRe.FindAllStringSubmatch(body, -1) {
			raw, err := base64.URLEncoding.DecodeString(m[1])
			if err != nil {
				continue
			}
			var c model.WorkflowContext
			if err := json.Unmarshal(raw, &c); err != nil {
				continue
			}
			if c.CorrelationID == "" {
				// A payload without a correlation id is not ours.
				continue
			}
			return c, nil
		}
	}
	return model.WorkflowContext{}, ErrNotFound
}
