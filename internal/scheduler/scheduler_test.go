package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingJob struct {
	name string
	runs int32
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsJobOnInterval(t *testing.T) {
	job := &countingJob{name: "offload-sweep"}
	s := NewScheduler(testLogger())
	s.AddJob(job, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 2
	}, time.Second, time.Millisecond)
}

func TestScheduler_StopHaltsFurtherRuns(t *testing.T) {
	job := &countingJob{name: "offload-sweep"}
	s := NewScheduler(testLogger())
	s.AddJob(job, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 1
	}, time.Second, time.Millisecond)

	s.Stop()
	after := atomic.LoadInt32(&job.runs)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&job.runs))
}
