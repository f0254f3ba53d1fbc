package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// Generator produces a free-form answer for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelAssisted asks a generative model for the estimate and degrades to
// arithmetic when the answer cannot be parsed.
type ModelAssisted struct {
	generator   Generator
	billingDays int
	profile     models.Profile
	now         func() time.Time
}

// NewModelAssisted creates a model-assisted estimator
func NewModelAssisted(generator Generator, billingDays int, profile models.Profile) *ModelAssisted {
	if billingDays < 1 {
		billingDays = DefaultBillingDays
	}
	return &ModelAssisted{
		generator:   generator,
		billingDays: billingDays,
		profile:     profile,
		now:         time.Now,
	}
}

// Estimate returns an error only when the model endpoint itself failed.
func (m *ModelAssisted) Estimate(ctx context.Context, report *models.AggregateReport) (models.Prediction, error) {
	logger := zerolog.Ctx(ctx)
	f := computeFigures(report, m.billingDays)

	prompt := BuildPrompt(report, m.profile, m.billingDays, m.now())
	text, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		var parseErr *models.ParseError
		if errors.As(err, &parseErr) {
			logger.Warn().Err(err).Msg("Model envelope unusable, using fallback estimate")
			return fallback(f), nil
		}
		return models.Prediction{}, fmt.Errorf("model prediction: %w", err)
	}

	answer, err := ParseAnswer(text)
	if err != nil {
		logger.Warn().Err(err).Int("answer_len", len(text)).Msg("Model answer unparseable, using fallback estimate")
		return fallback(f), nil
	}

	p := coalesce(answer, f)
	p.Method = models.MethodAI
	return p, nil
}

func fallback(f figures) models.Prediction {
	return models.Prediction{
		MonthlyBill:            f.monthlyBill,
		Confidence:             models.ConfidenceLow,
		ConsumptionPattern:     "Unable to analyze pattern due to parsing error",
		Trends:                 "Trend analysis failed",
		Recommendations:        []string{"Monitor energy usage regularly", "Consider energy audit"},
		Anomalies:              "Analysis incomplete",
		PeakUsageDays:          "Data unavailable",
		EstimatedUnitsPerMonth: f.monthlyUnits,
		CostPerUnit:            f.costPerUnit,
		Method:                 models.MethodAI,
	}
}
