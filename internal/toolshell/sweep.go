package toolshell

import (
	"context"
	"log/slog"
	"time"
)

// SweepJob is a scheduler.Job that proactively sweeps the tool-results
// offload directory. It supplements (never replaces) the synchronous
// pre-write sweep MaybeOffload already performs.
type SweepJob struct {
	Dir    string
	TTL    time.Duration
	logger *slog.Logger
}

// NewSweepJob builds a sweep job for dir, logging through logger.
func NewSweepJob(dir string, ttl time.Duration, logger *slog.Logger) *SweepJob {
	if ttl <= 0 {
		ttl = OffloadTTLDefault
	}
	return &SweepJob{Dir: dir, TTL: ttl, logger: logger}
}

// Name implements scheduler.Job.
func (j *SweepJob) Name() string { return "tool-results-sweep" }

// Run implements scheduler.Job.
func (j *SweepJob) Run(ctx context.Context) error {
	if err := sweep(j.Dir, j.TTL); err != nil {
		return err
	}
	j.logger.Debug("swept tool-results offload directory", "dir", j.Dir, "ttl", j.TTL)
	return nil
}

// Interval returns ttl/2, floored at one minute, per the proactive-sweep
// cadence the supplemental spec calls for.
func (j *SweepJob) Interval() time.Duration {
	interval := j.TTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}
