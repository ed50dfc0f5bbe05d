package usecase

import (
	"context"
	"log/slog"
	"time"

	"MarketAdvisor/internal/ports"
)

// Runner executes one full pipeline run.
type Runner interface {
	Run(ctx context.Context, day time.Time) (Report, error)
}

// Scheduler wires the cron driver with the orchestrator.
type Scheduler struct {
	driver     ports.Scheduler
	runner     Runner
	runTimeout time.Duration
	log        *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. A positive
// runTimeout bounds every triggered run.
func NewScheduler(driver ports.Scheduler, runner Runner, runTimeout time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{driver: driver, runner: runner, runTimeout: runTimeout, log: log}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.trigger(ctx, trigger) })
}

func (s *Scheduler) trigger(ctx context.Context, trigger time.Time) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	report, err := s.runner.Run(runCtx, trigger)
	if err != nil {
		s.log.Error("scheduled run failed", "run_id", report.RunID, "trigger", trigger, "error", err)
		return
	}
	s.log.Info("scheduled run finished", "run_id", report.RunID, "degraded", report.Degraded())
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
