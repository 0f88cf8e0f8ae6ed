package toolshell

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/spec-context/specctxd/internal/scheduler"
)

// CronScheduler schedules jobs with robfig/cron, independently of the
// interval-only ticker scheduler.Scheduler, so the tool-results sweep
// runs on an "@every" cron spec derived from its TTL rather than a
// fixed Go ticker.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewCronScheduler builds a cron-backed scheduler. It does not replace
// scheduler.Scheduler — other jobs may still register with that ticker
// scheduler; this type exists specifically for jobs whose cadence is
// naturally expressed as a cron spec.
func NewCronScheduler(logger *slog.Logger) *CronScheduler {
	return &CronScheduler{cron: cron.New(), logger: logger}
}

// ScheduleSweep registers job to run every job.Interval(), expressed as a
// "@every" cron spec, and logs failures the way scheduler.Scheduler does.
func (s *CronScheduler) ScheduleSweep(ctx context.Context, job *SweepJob) error {
	spec := fmt.Sprintf("@every %s", job.Interval())
	_, err := s.cron.AddFunc(spec, func() {
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", job.Name(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("toolshell: schedule sweep job: %w", err)
	}
	return nil
}

// Start begins running registered cron jobs in the background.
func (s *CronScheduler) Start() { s.cron.Start() }

// Stop halts the cron scheduler, waiting for in-flight jobs to finish.
func (s *CronScheduler) Stop() { <-s.cron.Stop().Done() }

// asSchedulerJob adapts SweepJob to the interval-ticker scheduler.Job
// interface too, so callers that prefer the simpler ticker scheduler over
// cron syntax may use scheduler.Scheduler.AddJob(job, job.Interval())
// directly instead of CronScheduler.
var _ scheduler.Job = (*SweepJob)(nil)
