package scheduler

import (
	"context"
	"fmt"
)

// Kind introspects which scheduling policy a Scheduler implements.
type Kind int

const (
	KindSerial Kind = iota
	KindStealing
)

func (k Kind) String() string {
	if k == KindSerial {
		return "serial"
	}
	return "stealing"
}

// ErrStopped is returned by ScheduleTask when the scheduler has already
// been stopped; per spec §4.1 this is the only failure mode of
// ScheduleTask, and represents a caller contract violation.
var ErrStopped = fmt.Errorf("scheduler: stopped")

// Scheduler runs Tasks with a chosen concurrency policy.
type Scheduler interface {
	// Start prepares workers. Idempotent once started.
	Start()
	// Stop drains queues and joins workers. Idempotent.
	Stop()
	// ScheduleTask enqueues t for execution. FIFO is guaranteed only
	// within whichever single worker queue t lands on.
	ScheduleTask(t Task) error
	// WaitForProgress blocks until job's completion latch is released.
	WaitForProgress(job *JobContext)
	// Kind reports which policy this Scheduler implements.
	Kind() Kind
}

// ScheduleTeardown races to become the single submitter of job's teardown
// task via JobContext.checkOrSubmitTeardown, and if it wins, schedules a
// task that runs JobContext.runTeardown. Shared by both scheduler
// policies so the "exactly one teardown task per job" guarantee (spec
// §4.1) has one implementation.
func ScheduleTeardown(s Scheduler, job *JobContext, request RequestHandle) error {
	if !job.checkOrSubmitTeardown() {
		return nil
	}
	return s.ScheduleTask(Task{
		Job:             job,
		Request:         request,
		PreferredWorker: job.PreferredWorker,
		IsTeardown:      true,
		Run: func(ctx context.Context, worker int) Result {
			job.runTeardown()
			return ResultComplete
		},
	})
}
