package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/processor"
)

// Phase is the lifecycle state of the orchestrator
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// ErrRunInFlight is returned by Run while another run is loading
var ErrRunInFlight = errors.New("pipeline run already in flight")

// Fetcher retrieves the raw feed
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.RawReading, error)
}

// Predictor turns a report into a bill estimate
type Predictor interface {
	Predict(ctx context.Context, report *models.AggregateReport) (models.Prediction, error)
}

// Recorder receives run measurements. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveRun(phase string, duration time.Duration)
	ObservePrediction(method, confidence string, monthlyBill float64, uniqueDays int)
	ObserveSinkError(sink string)
}

// State is a snapshot of the published result
type State struct {
	Phase      Phase
	RunID      string
	StartedAt  time.Time
	UpdatedAt  time.Time
	Err        string
	Report     *models.AggregateReport
	Prediction *models.Prediction
	Profile    models.Profile
}

// Options configures an Orchestrator
type Options struct {
	Channel  string
	Profile  models.Profile
	Sinks    []Sink
	Recorder Recorder
}

// Orchestrator sequences fetch, aggregation and prediction, and publishes the
// result of the latest run. At most one run is in flight at a time.
type Orchestrator struct {
	fetcher   Fetcher
	predictor Predictor
	channel   string
	profile   models.Profile
	sinks     []Sink
	recorder  Recorder
	now       func() time.Time
	newID     func() string

	mu    sync.RWMutex
	state State
	wg    sync.WaitGroup
}

// New creates an idle orchestrator
func New(fetcher Fetcher, predictor Predictor, opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		predictor: predictor,
		channel:   opts.Channel,
		profile:   opts.Profile,
		sinks:     opts.Sinks,
		recorder:  opts.Recorder,
		now:       time.Now,
		newID:     uuid.NewString,
		state:     State{Phase: PhaseIdle, Profile: opts.Profile},
	}
}

// Snapshot returns the current state. The report and prediction are shared
// and must not be modified.
func (o *Orchestrator) Snapshot() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Run executes one pipeline run and waits for it. It returns ErrRunInFlight
// when a run is already loading.
func (o *Orchestrator) Run(ctx context.Context) error {
	runID, started, ok := o.begin()
	if !ok {
		return ErrRunInFlight
	}
	o.wg.Add(1)
	defer o.wg.Done()
	return o.execute(ctx, runID, started)
}

// Refetch starts a run in the background. It reports false, and does
// nothing, when a run is already loading. The run outlives ctx cancellation
// but keeps its values.
func (o *Orchestrator) Refetch(ctx context.Context) bool {
	runID, started, ok := o.begin()
	if !ok {
		zerolog.Ctx(ctx).Debug().Msg("Refetch ignored, run already in flight")
		return false
	}

	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.execute(runCtx, runID, started)
	}()
	return true
}

// Wait blocks until every started run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) begin() (string, time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase == PhaseLoading {
		return "", time.Time{}, false
	}
	runID := o.newID()
	started := o.now()
	o.state.Phase = PhaseLoading
	o.state.RunID = runID
	o.state.StartedAt = started
	o.state.Err = ""
	return runID, started, true
}

func (o *Orchestrator) execute(ctx context.Context, runID string, started time.Time) error {
	logger := zerolog.Ctx(ctx).With().Str("run_id", runID).Str("channel", o.channel).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("Pipeline run started")

	report, prediction, err := o.process(ctx)
	finished := o.now()

	outcome := Outcome{
		RunID:      runID,
		Channel:    o.channel,
		StartedAt:  started,
		FinishedAt: finished,
		Report:     report,
		Profile:    o.profile,
	}

	o.mu.Lock()
	o.state.UpdatedAt = finished
	if err != nil {
		o.state.Phase = PhaseFailed
		o.state.Err = err.Error()
		outcome.Phase = PhaseFailed
		outcome.Err = err.Error()
	} else {
		o.state.Phase = PhaseReady
		o.state.Report = report
		o.state.Prediction = &prediction
		outcome.Phase = PhaseReady
		outcome.Prediction = &prediction
	}
	o.mu.Unlock()

	duration := finished.Sub(started)
	if o.recorder != nil {
		o.recorder.ObserveRun(string(outcome.Phase), duration)
		if err == nil {
			o.recorder.ObservePrediction(string(prediction.Method), string(prediction.Confidence), prediction.MonthlyBill, report.UniqueDays)
		}
	}

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("Pipeline run failed")
	} else {
		logger.Info().
			Dur("duration", duration).
			Int("unique_days", report.UniqueDays).
			Str("method", string(prediction.Method)).
			Str("confidence", string(prediction.Confidence)).
			Float64("monthly_bill", prediction.MonthlyBill).
			Msg("Pipeline run finished")
	}

	o.publish(ctx, outcome)
	return err
}

func (o *Orchestrator) process(ctx context.Context) (*models.AggregateReport, models.Prediction, error) {
	raw, err := o.fetcher.Fetch(ctx)
	if err != nil {
		return nil, models.Prediction{}, fmt.Errorf("fetch telemetry: %w", err)
	}

	report, err := processor.Process(raw)
	if err != nil {
		return nil, models.Prediction{}, fmt.Errorf("aggregate readings: %w", err)
	}
	zerolog.Ctx(ctx).Debug().
		Int("raw_entries", len(raw)).
		Int("valid_entries", len(report.ValidEntries)).
		Int("unique_days", report.UniqueDays).
		Msg("Aggregated feed")

	prediction, err := o.predictor.Predict(ctx, report)
	if err != nil {
		return report, models.Prediction{}, fmt.Errorf("predict bill: %w", err)
	}
	return report, prediction, nil
}
