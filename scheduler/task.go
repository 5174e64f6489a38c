// Package scheduler implements the task scheduler of spec §4.1: two
// interchangeable policies (serial, work-stealing), per-job completion
// latches, and the teardown rendezvous that guarantees a job's completion
// callback runs exactly once.
package scheduler

import (
	"context"

	"github.com/estuary/sqlflow/errs"
)

// Result is the outcome a task body returns, dictating what the scheduler
// does next (spec §4.1 "Task result contract").
type Result int

const (
	// ResultComplete removes the task; nothing further happens.
	ResultComplete Result = iota
	// ResultProceed re-executes the task body immediately, without
	// re-queuing. Callers must ensure the body makes progress each call
	// or the owning worker spins forever.
	ResultProceed
	// ResultYield re-queues the task at the tail of the same worker's
	// queue.
	ResultYield
	// ResultCompleteAndTeardown removes the task and guarantees the
	// job's teardown task is scheduled.
	ResultCompleteAndTeardown
)

// TxnKind classifies a task's relationship to a transaction, per spec §3's
// Task data model.
type TxnKind int

const (
	TxnNone TxnKind = iota
	TxnInTransaction
)

// RequestHandle is the minimal view of a request a task needs: whether it
// has been canceled, where to record an error, and how to abort its
// transaction. reqcontext.Context implements this; scheduler
// itself stays ignorant of the full request/transaction/session layers
// above it.
type RequestHandle interface {
	Cancelled() bool
	RecordError(errs.ErrorInfo)
	AbortTransaction()
}

// Body is the unit of work a Task runs. Both scheduler policies pass
// context.Background() as ctx; cancellation reaches a task through its
// RequestHandle instead. worker is the id of the worker currently running it (useful for a
// body that wants to record its own preferred-worker hint for future
// tasks it schedules).
type Body func(ctx context.Context, worker int) Result

// Task is a unit of schedulable work.
type Task struct {
	ID              int64
	Job             *JobContext
	Request         RequestHandle
	TxnKind         TxnKind
	PreferredWorker int // -1 if none
	Run             Body
	// IsTeardown marks a task produced by ScheduleTeardown, letting the
	// stealing policy steer it onto a suspended worker when
	// StealingOptions.TeardownTryOnSuspendedWorker is set.
	IsTeardown bool
}

// runCancellationCheck implements spec §4.1's cancellation contract: a task
// checks the request's cancel flag at entry; on observed cancellation it
// records request_canceled, aborts the transaction if any, and completes
// without running further work.
func runCancellationCheck(t Task) (Result, bool) {
	if t.Request == nil || !t.Request.Cancelled() {
		return ResultComplete, false
	}
	t.Request.RecordError(errs.New(errs.CodeRequestCanceled, "the operation has been canceled"))
	if t.TxnKind == TxnInTransaction {
		t.Request.AbortTransaction()
	}
	return ResultComplete, true
}
