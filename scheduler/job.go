package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ReadinessProvider is polled by the teardown task before it invokes the
// job's completion callback, used to wait for a durability notification
// before releasing the job (spec §4.1).
type ReadinessProvider func() bool

// CompletionFunc is invoked exactly once per job, from the teardown task.
type CompletionFunc func()

// JobContext is the scope of a single scheduled unit of dataflow-graph
// execution (spec §3). One request may issue several jobs.
type JobContext struct {
	id int64

	latch      sync.WaitGroup
	latchOnce  sync.Once
	completing atomic.Bool
	teardownOwner atomic.Bool

	taskUseCount atomic.Int64

	PreferredWorker int // -1 if none
	OnComplete      CompletionFunc
	Readiness       ReadinessProvider
}

// NewJobContext allocates a job with the given id. PreferredWorker
// defaults to -1 (no preference); callers may set it before scheduling
// any tasks.
func NewJobContext(id int64) *JobContext {
	var j = &JobContext{id: id, PreferredWorker: -1}
	j.latch.Add(1)
	return j
}

func (j *JobContext) ID() int64 { return j.id }

// WaitForProgress blocks until the job's completion latch is released,
// implementing scheduler.wait_for_progress (spec §4.1).
func (j *JobContext) WaitForProgress() { j.latch.Wait() }

// release fires the latch exactly once, regardless of how many times
// release is called (teardown always calls this exactly once, but callers
// racing a forced completion path are tolerated).
func (j *JobContext) release() {
	j.latchOnce.Do(j.latch.Done)
}

// IncrTaskUse registers a new in-flight task for this job.
func (j *JobContext) IncrTaskUse() { j.taskUseCount.Add(1) }

// DecrTaskUse marks one in-flight task as finished.
func (j *JobContext) DecrTaskUse() { j.taskUseCount.Add(-1) }

// TaskUseCount reports the number of tasks currently in flight for this
// job.
func (j *JobContext) TaskUseCount() int64 { return j.taskUseCount.Load() }

// checkOrSubmitTeardown atomically races to become the single submitter of
// this job's teardown task, per spec §4.1's check_or_submit_teardown. The
// winner (true) must schedule the teardown task; losers (false) simply
// return ResultComplete.
func (j *JobContext) checkOrSubmitTeardown() (winner bool) {
	return j.teardownOwner.CompareAndSwap(false, true)
}

// runTeardown waits on the readiness provider (if any), invokes the
// completion callback exactly once, and releases the latch. Called by the
// single teardown task a job ever dispatches.
func (j *JobContext) runTeardown() {
	if j.Readiness != nil {
		for !j.Readiness() {
			// The readiness provider is expected to be cheap to poll
			// (e.g. an atomic durability-LSN comparison); yielding
			// between polls avoids pulling in a timer dependency for
			// what is, in the steady state, a single check.
			runtime.Gosched()
		}
	}
	if j.OnComplete != nil {
		j.OnComplete()
	}
	j.release()
}
