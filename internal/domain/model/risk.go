package model

import "strings"

// RiskLevel is an ordered risk classification. Higher values are riskier;
// ordering is significant because the merge gate is a threshold comparison.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

// String returns the canonical upper-case label for the level.
func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseRiskLevel maps a label to a RiskLevel, case-insensitively.
// Unrecognized labels report ok=false; callers decide the fallback.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return RiskLow, true
	case "MEDIUM":
		return RiskMedium, true
	case "HIGH":
		return RiskHigh, true
	default:
		return RiskHigh, false
	}
}

// RiskVerdict is the outcome of classifying one change. Immutable once
// produced; for a given PR the most recently produced verdict is
// authoritative and supersedes any earlier one.
type RiskVerdict struct {
	Level      RiskLevel
	Rationale  string
	References []string // Policy / incident identifiers cited by the classifier.
	Source     string   // Model identifier, or "fail-closed" when classification was unavailable.
}
