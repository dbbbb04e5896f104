// Package intent extracts structured commands from free-form comment text.
// Parsing is pure and total: every input yields exactly one Intent, with
// anything unrecognized, ambiguous, or malformed degrading to IntentNone.
package intent

import (
	"regexp"
	"strings"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// Keyword matching uses explicit whitespace boundaries rather than \b:
// regexp's \b treats '-' as a boundary, which would split identifiers like
// "fix-1" or match "approved" inside "disapproved"-adjacent tokens. A
// keyword counts only when flanked by whitespace or string edges.
var (
	approveRe = regexp.MustCompile(`(?i)(?:^|\s)approved?(?:$|[\s.!,?;:])`)
	rejectRe  = regexp.MustCompile(`(?i)(?:^|\s)(?:reject(?:ed)?|den(?:y|ied))(?:$|[\s.!,?;:])`)

	// create [a] [branch] [named] <token>. The optional "branch" keyword is
	// consumed before the capture so "create branch fix-1" yields fix-1.
	createRe = regexp.MustCompile(`(?i)(?:^|\s)create(?:\s+a)?(?:\s+branch)?(?:\s+named)?\s+([A-Za-z0-9_-]+)`)
	// Suffix phrasing: "create fix-1 branch".
	createSuffixRe = regexp.MustCompile(`(?i)(?:^|\s)create\s+([A-Za-z0-9_-]+)\s+branch(?:$|\s)`)

	mentionRe = regexp.MustCompile(`(?i)@prwarden\b`)
)

// fillerWords are command-phrase tokens that can never be a branch name.
// When the capture lands on one of these the phrase had no real name, as
// in "create a branch" with nothing after it.
var fillerWords = map[string]struct{}{
	"a":      {},
	"branch": {},
	"named":  {},
}

func isFiller(word string) bool {
	_, ok := fillerWords[strings.ToLower(word)]
	return ok
}

// Parse derives the single Intent carried by text.
//
// Priority order: approval/rejection keywords first, then branch creation,
// then none. Approval keywords work bare (no bot mention needed) so a plain
// "approved" comment on a blocked PR resumes the workflow.
func Parse(text string) model.Intent {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.NoIntent
	}

	if approveRe.MatchString(trimmed) {
		return model.Intent{Kind: model.IntentApprove}
	}
	if rejectRe.MatchString(trimmed) {
		return model.Intent{Kind: model.IntentReject}
	}

	if m := createRe.FindStringSubmatch(trimmed); m != nil {
		name := m[1]
		if isFiller(name) {
			// The optional groups backtracked onto a command word, as in
			// "create a branch" with no name after it. The suffix phrasing
			// is the only remaining reading.
			sm := createSuffixRe.FindStringSubmatch(trimmed)
			if sm == nil || isFiller(sm[1]) {
				return model.NoIntent
			}
			name = sm[1]
		}
		return model.Intent{Kind: model.IntentCreateBranch, BranchName: name}
	}

	return model.NoIntent
}

// Mentioned reports whether text addresses the bot directly.
func Mentioned(text string) bool {
	return mentionRe.MatchString(text)
}
