package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/store"
)

// Pipeline is the orchestrator surface used by the API
type Pipeline interface {
	Snapshot() pipeline.State
	Refetch(ctx context.Context) bool
}

// RunLister reads the run history
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type Handler struct {
	pipeline Pipeline
	runs     RunLister
	channel  string
}

func NewHandler(p Pipeline, runs RunLister, channel string) *Handler {
	return &Handler{pipeline: p, runs: runs, channel: channel}
}

type energyData struct {
	*models.AggregateReport
	Prediction *models.Prediction `json:"prediction"`
}

type energyResponse struct {
	Phase     string          `json:"phase"`
	Channel   string          `json:"channel"`
	RunID     string          `json:"runId,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      *energyData     `json:"data"`
	Profile   *models.Profile `json:"profile,omitempty"`
}

type runsResponse struct {
	Runs []store.Run `json:"runs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) GetEnergy(w http.ResponseWriter, r *http.Request) {
	state := h.pipeline.Snapshot()

	response := energyResponse{
		Phase:   string(state.Phase),
		Channel: h.channel,
		RunID:   state.RunID,
		Error:   state.Err,
	}
	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt
		response.UpdatedAt = &updated
	}
	if state.Report != nil {
		response.Data = &energyData{AggregateReport: state.Report, Prediction: state.Prediction}
	}
	if !state.Profile.IsZero() {
		profile := state.Profile
		response.Profile = &profile
	}

	writeJSON(r.Context(), w, http.StatusOK, response)
}

func (h *Handler) Refetch(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.Refetch(r.Context()) {
		writeJSON(r.Context(), w, http.StatusConflict, errorResponse{Error: pipeline.ErrRunInFlight.Error()})
		return
	}
	writeJSON(r.Context(), w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	if h.runs == nil {
		writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Error: "run history is disabled"})
		return
	}

	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, store.MaxListLimit)
	}

	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Int("limit", limit).Msg("failed to list runs")
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "failed to list runs"})
		return
	}

	writeJSON(ctx, w, http.StatusOK, runsResponse{Runs: runs})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}
