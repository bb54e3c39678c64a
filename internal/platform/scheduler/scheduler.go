// Package scheduler runs recurring jobs on cron schedules with second
// precision. A run that is still in progress when its next tick fires is
// skipped rather than overlapped.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/lnwallet-ledger/internal/platform/metrics"
	"github.com/robfig/cron/v3"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a scheduler whose jobs receive ctx; cancelling it stops running jobs.
func New(ctx context.Context, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	logger = logger.With("component", "scheduler")
	cronLogger := slogAdapter{logger: logger}
	return &Scheduler{
		ctx: ctx,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		metrics: m,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// AddJob registers job under a six field cron expression, e.g. "0 0 */4 * * *".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.RunNow(job)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Debug("Running job", "job", job.Name())

	err := job.Run(s.ctx)
	s.metrics.ObserveJob(job.Name(), err)
	if err != nil {
		s.logger.Error("Job failed", "job", job.Name(), "error", err)
		return err
	}

	s.logger.Debug("Job completed", "job", job.Name())
	return nil
}

// slogAdapter satisfies cron.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, append(keysAndValues, "error", err)...)
}
