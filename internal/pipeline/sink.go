package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
)

// Outcome describes one finished run. Report may be set on a failed run
// when only the prediction step failed. Prediction is nil unless Phase is
// PhaseReady.
type Outcome struct {
	RunID      string
	Channel    string
	StartedAt  time.Time
	FinishedAt time.Time
	Phase      Phase
	Err        string
	Report     *models.AggregateReport
	Prediction *models.Prediction
	Profile    models.Profile
}

// Sink consumes finished runs
type Sink interface {
	Name() string
	Publish(ctx context.Context, outcome Outcome) error
}

// publish hands the outcome to every sink in order. Sink failures are
// logged and never change the published state.
func (o *Orchestrator) publish(ctx context.Context, outcome Outcome) {
	logger := zerolog.Ctx(ctx)
	for _, sink := range o.sinks {
		if err := sink.Publish(ctx, outcome); err != nil {
			logger.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to publish run outcome")
			if o.recorder != nil {
				o.recorder.ObserveSinkError(sink.Name())
			}
		}
	}
}
