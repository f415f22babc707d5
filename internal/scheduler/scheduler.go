// Package scheduler triggers publishing runs periodically.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/publish"
)

// Runner executes one publishing run.
type Runner interface {
	Run(ctx context.Context, req publish.RunRequest) (index.RunRecord, error)
}

// Scheduler wraps a gocron scheduler running automatic publication.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    Runner
	logger    *slog.Logger
}

// New creates a scheduler that will call runner.
func New(runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create: %w", err)
	}
	return &Scheduler{scheduler: s, runner: runner, logger: logger}, nil
}

// Every schedules a publishing run each interval until ctx is done. Ticks
// that fire while a run is still executing are skipped.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
		gocron.WithContext(ctx),
		gocron.WithName("automatic-publication"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("scheduler: add job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler: started")
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("scheduler: stopping")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rec, err := s.runner.Run(ctx, publish.RunRequest{Trigger: publish.TriggerSchedule})
	switch {
	case err == nil:
		s.logger.Info("scheduler: run done", slog.String("run", rec.ID), slog.String("outcome", rec.Outcome))
	case errors.Is(err, apperr.ErrNoCandidates):
		s.logger.Debug("scheduler: nothing to publish")
	case errors.Is(err, apperr.ErrRunInProgress):
		s.logger.Info("scheduler: run already in progress, skipping")
	default:
		s.logger.Error("scheduler: run failed", slog.String("outcome", rec.Outcome), slog.String("error", err.Error()))
	}
}
