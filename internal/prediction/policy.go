package prediction

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// DefaultModelDayThreshold is the number of days from which plain averaging
// is trusted over the model.
const DefaultModelDayThreshold = 20

// Estimator turns an aggregate report into a bill prediction
type Estimator interface {
	Estimate(ctx context.Context, report *models.AggregateReport) (models.Prediction, error)
}

// Policy picks the estimator for a report based on how many days it covers
type Policy struct {
	threshold   int
	model       Estimator
	statistical Estimator
}

// NewPolicy creates a policy. Reports with fewer than threshold days go to
// model; a zero threshold always selects statistical.
func NewPolicy(threshold int, model, statistical Estimator) *Policy {
	if threshold < 0 {
		threshold = DefaultModelDayThreshold
	}
	return &Policy{
		threshold:   threshold,
		model:       model,
		statistical: statistical,
	}
}

// Select reports which method Predict would use
func (p *Policy) Select(report *models.AggregateReport) models.Method {
	if report.UniqueDays < p.threshold {
		return models.MethodAI
	}
	return models.MethodStatistical
}

// Predict runs the selected estimator
func (p *Policy) Predict(ctx context.Context, report *models.AggregateReport) (models.Prediction, error) {
	method := p.Select(report)
	zerolog.Ctx(ctx).Debug().
		Int("unique_days", report.UniqueDays).
		Int("threshold", p.threshold).
		Str("method", string(method)).
		Msg("Selected estimator")

	if method == models.MethodAI {
		return p.model.Estimate(ctx, report)
	}
	return p.statistical.Estimate(ctx, report)
}
