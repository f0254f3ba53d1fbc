package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/prediction"
)

type fetchFunc func(ctx context.Context) ([]models.RawReading, error)

func (f fetchFunc) Fetch(ctx context.Context) ([]models.RawReading, error) { return f(ctx) }

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type recordingSink struct {
	name     string
	err      error
	mu       sync.Mutex
	outcomes []Outcome
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return s.err
}

type recordingRecorder struct {
	mu         sync.Mutex
	phases     []string
	sinkErrors []string
	bills      []float64
}

func (r *recordingRecorder) ObserveRun(phase string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, phase)
}

func (r *recordingRecorder) ObservePrediction(_, _ string, monthlyBill float64, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, monthlyBill)
}

func (r *recordingRecorder) ObserveSinkError(sink string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinkErrors = append(r.sinkErrors, sink)
}

func dailyFeed(days int) []models.RawReading {
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	feed := make([]models.RawReading, 0, days)
	for i := 0; i < days; i++ {
		feed = append(feed, models.RawReading{
			CreatedAt: start.AddDate(0, 0, i).Format(time.RFC3339),
			Field1:    "4",
			Field2:    "30",
			Field3:    "230",
		})
	}
	return feed
}

func staticFetcher(feed []models.RawReading) Fetcher {
	return fetchFunc(func(context.Context) ([]models.RawReading, error) { return feed, nil })
}

func newPolicy(gen prediction.Generator) *prediction.Policy {
	return prediction.NewPolicy(
		prediction.DefaultModelDayThreshold,
		prediction.NewModelAssisted(gen, 30, models.Profile{}),
		prediction.NewStatistical(30),
	)
}

func unusedGenerator(t *testing.T) prediction.Generator {
	return generatorFunc(func(context.Context, string) (string, error) {
		t.Error("model must not be called")
		return "", nil
	})
}

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func TestRun_EndToEndStatistical(t *testing.T) {
	sink := &recordingSink{name: "memory"}
	rec := &recordingRecorder{}
	o := New(staticFetcher(dailyFeed(25)), newPolicy(unusedGenerator(t)), Options{
		Channel:  "629098",
		Sinks:    []Sink{sink},
		Recorder: rec,
	})
	assert.Equal(t, PhaseIdle, o.Snapshot().Phase)

	require.NoError(t, o.Run(testContext(t)))

	state := o.Snapshot()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Empty(t, state.Err)
	assert.NotEmpty(t, state.RunID)
	require.NotNil(t, state.Report)
	require.NotNil(t, state.Prediction)
	assert.Equal(t, 25, state.Report.UniqueDays)
	assert.Len(t, state.Report.DailyAverages, 25)
	assert.Equal(t, models.MethodStatistical, state.Prediction.Method)
	assert.Equal(t, models.ConfidenceHigh, state.Prediction.Confidence)
	assert.InDelta(t, 900.0, state.Prediction.MonthlyBill, 1e-9)

	require.Len(t, sink.outcomes, 1)
	assert.Equal(t, state.RunID, sink.outcomes[0].RunID)
	assert.Equal(t, "629098", sink.outcomes[0].Channel)
	assert.Equal(t, PhaseReady, sink.outcomes[0].Phase)
	assert.Equal(t, []string{"ready"}, rec.phases)
	assert.Len(t, rec.bills, 1)
}

func TestRun_ModelBranchFallbackStaysReady(t *testing.T) {
	gen := generatorFunc(func(context.Context, string) (string, error) { return "no structured answer", nil })
	o := New(staticFetcher(dailyFeed(5)), newPolicy(gen), Options{})

	require.NoError(t, o.Run(testContext(t)))

	state := o.Snapshot()
	assert.Equal(t, PhaseReady, state.Phase)
	assert.Equal(t, models.MethodAI, state.Prediction.Method)
	assert.Equal(t, models.ConfidenceLow, state.Prediction.Confidence)
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fetcher Fetcher
		gen     prediction.Generator
		wantErr error
	}{
		{
			name: "fetch",
			fetcher: fetchFunc(func(context.Context) ([]models.RawReading, error) {
				return nil, &models.NetworkError{Source: "thingspeak", StatusCode: 502, Status: "502 Bad Gateway"}
			}),
		},
		{
			name: "no valid data",
			fetcher: staticFetcher([]models.RawReading{
				{CreatedAt: "2024-02-01T09:00:00Z", Field1: "n/a", Field2: "1"},
			}),
			wantErr: models.ErrInsufficientData,
		},
		{
			name:    "model unreachable",
			fetcher: staticFetcher(dailyFeed(3)),
			gen: generatorFunc(func(context.Context, string) (string, error) {
				return "", &models.NetworkError{Source: "gemini", Err: errors.New("connection refused")}
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := tt.gen
			if gen == nil {
				gen = unusedGenerator(t)
			}
			sink := &recordingSink{name: "memory"}
			o := New(tt.fetcher, newPolicy(gen), Options{Sinks: []Sink{sink}})

			err := o.Run(testContext(t))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var netErr *models.NetworkError
				assert.ErrorAs(t, err, &netErr)
			}
			state := o.Snapshot()
			assert.Equal(t, PhaseFailed, state.Phase)
			assert.Equal(t, err.Error(), state.Err)
			assert.Nil(t, state.Prediction)
			require.Len(t, sink.outcomes, 1)
			assert.Equal(t, PhaseFailed, sink.outcomes[0].Phase)
			assert.Nil(t, sink.outcomes[0].Prediction)
		})
	}
}

func TestRun_FailureKeepsLastGoodResult(t *testing.T) {
	fail := false
	fetcher := fetchFunc(func(context.Context) ([]models.RawReading, error) {
		if fail {
			return nil, &models.NetworkError{Source: "thingspeak"}
		}
		return dailyFeed(21), nil
	})
	o := New(fetcher, newPolicy(unusedGenerator(t)), Options{})
	ctx := testContext(t)

	require.NoError(t, o.Run(ctx))
	first := o.Snapshot()

	fail = true
	require.Error(t, o.Run(ctx))

	state := o.Snapshot()
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.NotEmpty(t, state.Err)
	assert.Same(t, first.Prediction, state.Prediction)

	fail = false
	require.NoError(t, o.Run(ctx))
	assert.Empty(t, o.Snapshot().Err)
	assert.NotEqual(t, first.RunID, o.Snapshot().RunID)
}

func TestRefetch_IgnoredWhileLoading(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls int
	var mu sync.Mutex
	fetcher := fetchFunc(func(context.Context) ([]models.RawReading, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return dailyFeed(20), nil
	})
	o := New(fetcher, newPolicy(unusedGenerator(t)), Options{})
	ctx := testContext(t)

	require.True(t, o.Refetch(ctx))
	<-entered
	assert.Equal(t, PhaseLoading, o.Snapshot().Phase)

	assert.False(t, o.Refetch(ctx))
	assert.ErrorIs(t, o.Run(ctx), ErrRunInFlight)

	close(release)
	o.Wait()

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.Equal(t, PhaseReady, o.Snapshot().Phase)
}

func TestRefetch_SurvivesCallerCancellation(t *testing.T) {
	o := New(staticFetcher(dailyFeed(20)), newPolicy(unusedGenerator(t)), Options{})
	ctx, cancel := context.WithCancel(testContext(t))

	require.True(t, o.Refetch(ctx))
	cancel()
	o.Wait()

	assert.Equal(t, PhaseReady, o.Snapshot().Phase)
}

func TestPublish_SinkErrorsDoNotChangeState(t *testing.T) {
	failing := &recordingSink{name: "broken", err: fmt.Errorf("write failed")}
	healthy := &recordingSink{name: "memory"}
	rec := &recordingRecorder{}
	o := New(staticFetcher(dailyFeed(20)), newPolicy(unusedGenerator(t)), Options{
		Sinks:    []Sink{failing, healthy},
		Recorder: rec,
	})

	require.NoError(t, o.Run(testContext(t)))

	assert.Equal(t, PhaseReady, o.Snapshot().Phase)
	assert.Len(t, failing.outcomes, 1)
	assert.Len(t, healthy.outcomes, 1)
	assert.Equal(t, []string{"broken"}, rec.sinkErrors)
}

func TestSnapshot_CarriesProfile(t *testing.T) {
	profile := models.Profile{Name: "Home", State: "Kerala"}
	o := New(staticFetcher(dailyFeed(1)), newPolicy(unusedGenerator(t)), Options{Profile: profile})

	assert.Equal(t, profile, o.Snapshot().Profile)
}
