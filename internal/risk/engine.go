// Package risk gates merges on a classification of change risk. The
// concrete classifier is a black box behind a port; this package owns the
// timeout bound, the fail-closed fallback, and the block threshold.
package risk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jthorburn/prwarden/internal/domain/model"
	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

// FailClosedSource marks verdicts produced by the fallback path rather
// than the classifier.
const FailClosedSource = "fail-closed"

// Engine wraps the classification capability with the policies the state
// machine depends on.
type Engine struct {
	classifier  driven.RiskClassifier
	timeout     time.Duration
	blockAt     model.RiskLevel
	policyDoc   string
	incidentDoc string
	logger      *slog.Logger
}

// New creates an Engine. blockAt is the lowest level that blocks a merge;
// the fail-closed default is RiskMedium (MEDIUM and HIGH both block).
func New(classifier driven.RiskClassifier, timeout time.Duration, blockAt model.RiskLevel, policyDoc, incidentDoc string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier:  classifier,
		timeout:     timeout,
		blockAt:     blockAt,
		policyDoc:   policyDoc,
		incidentDoc: incidentDoc,
		logger:      logger,
	}
}

// Classify produces the authoritative verdict for a change. The classifier
// call is timeout-bounded; any failure (timeout, transport error, quota
// exhaustion, or an unparsable response) resolves to HIGH with rationale
// "classification unavailable". The engine never lets a failure pass
// through as LOW.
func (e *Engine) Classify(ctx context.Context, change string) model.RiskVerdict {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	verdict, err := e.classifier.Classify(cctx, change, e.policyDoc, e.incidentDoc)
	if err != nil {
		switch {
		case errors.Is(err, driven.ErrThrottled):
			// Distinguished for operability: quota exhaustion needs a
			// different operator response than an outage.
			e.logger.Warn("risk classifier throttled, failing closed", "error", err)
		case errors.Is(err, context.DeadlineExceeded):
			e.logger.Warn("risk classification timed out, failing closed", "timeout", e.timeout)
		default:
			e.logger.Error("risk classification failed, failing closed", "error", err)
		}
		return model.RiskVerdict{
			Level:     model.RiskHigh,
			Rationale: "classification unavailable",
			Source:    FailClosedSource,
		}
	}

	return verdict
}

// Blocks reports whether the verdict forbids an automatic merge.
func (e *Engine) Blocks(v model.RiskVerdict) bool {
	return v.Level >= e.blockAt
}
