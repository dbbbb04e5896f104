package driven

import (
	"context"
	"errors"

	"github.com/jthorburn/prwarden/internal/domain/model"
)

// ErrThrottled indicates the classification capability refused the call due
// to rate limiting or quota exhaustion. It triggers the same fail-closed
// path as any other failure but is surfaced distinctly in logs for
// operability.
var ErrThrottled = errors.New("classifier throttled")

// RiskClassifier defines the driven port for the external risk
// classification capability. The backend is a black box: the engine only
// depends on this one method and on the fail-closed contract its caller
// enforces (any error, including ErrThrottled and timeouts, is treated as
// HIGH risk upstream, never silently passed through as LOW).
type RiskClassifier interface {
	Classify(ctx context.Context, change, policyDoc, incidentDoc string) (model.RiskVerdict, error)
}
