package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/models"
	"github.com/kanna-karuppasamy/smart-meter-bill-estimator/internal/pipeline"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Store keeps the history of pipeline runs in SQLite
type Store struct {
	db *sql.DB
}

// Run is one persisted pipeline run
type Run struct {
	RunID        string             `json:"runId"`
	Channel      string             `json:"channel"`
	Phase        string             `json:"phase"`
	Error        *string            `json:"error,omitempty"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   time.Time          `json:"finishedAt"`
	ValidEntries int                `json:"validEntries"`
	UniqueDays   int                `json:"uniqueDays"`
	Prediction   *models.Prediction `json:"prediction,omitempty"`
}

// Open opens the database at path and creates the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema if missing
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			run_id TEXT PRIMARY KEY,
			channel TEXT,
			phase TEXT,
			error TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			valid_entries INTEGER,
			unique_days INTEGER,
			method TEXT,
			confidence TEXT,
			monthly_bill REAL,
			prediction_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_finished ON pipeline_runs(finished_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
	}
	return nil
}

// Name identifies the store as a run sink
func (s *Store) Name() string { return "store" }

// Publish records a finished run
func (s *Store) Publish(ctx context.Context, outcome pipeline.Outcome) error {
	return s.RecordRun(ctx, outcome)
}

// RecordRun inserts one row per run, including failed runs
func (s *Store) RecordRun(ctx context.Context, outcome pipeline.Outcome) error {
	var (
		errMsg         *string
		validEntries   int
		uniqueDays     int
		method         *string
		confidence     *string
		monthlyBill    *float64
		predictionJSON *string
	)
	if outcome.Err != "" {
		errMsg = &outcome.Err
	}
	if outcome.Report != nil {
		validEntries = len(outcome.Report.ValidEntries)
		uniqueDays = outcome.Report.UniqueDays
	}
	if p := outcome.Prediction; p != nil {
		m, c := string(p.Method), string(p.Confidence)
		method, confidence, monthlyBill = &m, &c, &p.MonthlyBill
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		js := string(raw)
		predictionJSON = &js
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO pipeline_runs(run_id, channel, phase, error, started_at, finished_at, valid_entries, unique_days, method, confidence, monthly_bill, prediction_json)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.RunID, outcome.Channel, string(outcome.Phase), errMsg,
		outcome.StartedAt.UTC(), outcome.FinishedAt.UTC(),
		validEntries, uniqueDays, method, confidence, monthlyBill, predictionJSON)
	if err != nil {
		return fmt.Errorf("record run %s: %w", outcome.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit is clamped to
// [1, MaxListLimit]; zero or less means DefaultListLimit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, channel, phase, error, started_at, finished_at, valid_entries, unique_days, prediction_json
		FROM pipeline_runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			r              Run
			errMsg         sql.NullString
			predictionJSON sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Channel, &r.Phase, &errMsg, &r.StartedAt, &r.FinishedAt, &r.ValidEntries, &r.UniqueDays, &predictionJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if errMsg.Valid {
			r.Error = &errMsg.String
		}
		if predictionJSON.Valid && predictionJSON.String != "" {
			var p models.Prediction
			if err := json.Unmarshal([]byte(predictionJSON.String), &p); err != nil {
				return nil, fmt.Errorf("decode prediction of run %s: %w", r.RunID, err)
			}
			r.Prediction = &p
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
