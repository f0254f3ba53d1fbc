package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Trigger starts a pipeline run unless one is already in flight
type Trigger interface {
	Refetch(ctx context.Context) bool
}

// Scheduler requests a pipeline refresh on a cron schedule
type Scheduler struct {
	spec    string
	trigger Trigger
	cron    *cron.Cron
	entry   cron.EntryID
}

// New validates spec and creates a stopped scheduler. spec accepts the
// standard five fields and descriptors such as "@every 15m".
func New(spec string, trigger Trigger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{
		spec:    spec,
		trigger: trigger,
		cron:    cron.New(),
	}, nil
}

// Start schedules the refresh job and stops it when ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	id, err := s.cron.AddFunc(s.spec, func() {
		started := s.trigger.Refetch(ctx)
		logger.Info().Str("schedule", s.spec).Bool("started", started).Msg("Scheduled refresh")
	})
	if err != nil {
		return fmt.Errorf("error scheduling cron job: %w", err)
	}
	s.entry = id
	s.cron.Start()
	logger.Info().Str("schedule", s.spec).Time("next", s.Next()).Msg("Refresh scheduler started")

	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
	}()
	return nil
}

// Next returns the next scheduled refresh, or the zero time before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop stops the scheduler. The returned context is done once a running
// job has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
