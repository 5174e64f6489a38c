package txn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/stretchr/testify/require"
)

func TestTerminationStateAdmitsTasksUntilTerminal(t *testing.T) {
	var term = NewTerminationState()
	require.True(t, term.TryEnterTask())
	require.True(t, term.TryEnterTask())
	require.Equal(t, int64(2), term.TaskCount())

	term.ExitTask()
	require.Equal(t, int64(1), term.TaskCount())

	require.True(t, term.RequestCommit())
	require.False(t, term.TryEnterTask(), "no new tasks admitted once going_to_commit is set")
}

func TestTerminationStateAbortDominatesCommit(t *testing.T) {
	var term = NewTerminationState()
	term.RequestAbort()
	require.False(t, term.RequestCommit(), "commit must fail once abort is set")
	require.True(t, term.GoingToAbort())
	require.False(t, term.GoingToCommit())
}

func TestTerminationStateAbortAfterCommitStillWins(t *testing.T) {
	var term = NewTerminationState()
	require.True(t, term.RequestCommit())
	term.RequestAbort()
	require.True(t, term.GoingToAbort())
	require.True(t, term.GoingToCommit(), "commit bit is sticky; abort is the dominant signal callers must check")
}

func TestTerminationStateWaitForQuiescenceBlocksUntilTasksExit(t *testing.T) {
	var term = NewTerminationState()
	require.True(t, term.TryEnterTask())

	var waited atomic.Bool
	var done = make(chan struct{})
	go func() {
		term.WaitForQuiescence()
		waited.Store(true)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.False(t, waited.Load())

	term.ExitTask()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForQuiescence did not unblock after ExitTask")
	}
	require.True(t, waited.Load())
}

type fakeCommitter struct {
	commitLSN uint64
	commitErr error
	aborted   atomic.Bool
}

func (f *fakeCommitter) Commit(ctx context.Context) (uint64, error) {
	return f.commitLSN, f.commitErr
}

func (f *fakeCommitter) Abort(ctx context.Context) error {
	f.aborted.Store(true)
	return nil
}

func TestContextCommitSucceedsOnQuiescence(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	require.True(t, c.TryEnterTask())
	c.ExitTask()

	var committer = &fakeCommitter{commitLSN: 42}
	var lsn, info = c.RequestCommit(context.Background(), committer)
	require.True(t, info.IsZero())
	require.Equal(t, uint64(42), lsn)
	require.Equal(t, uint64(42), c.CommitLSN())
}

func TestContextCommitFailsWhenAlreadyAborting(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	c.Termination().RequestAbort()

	var committer = &fakeCommitter{}
	var _, info = c.RequestCommit(context.Background(), committer)
	require.False(t, info.IsZero())
	require.Equal(t, errs.CodeInactiveTransaction, info.Code)
}

func TestContextCommitPropagatesStorageFailureAsIOError(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	var committer = &fakeCommitter{commitErr: errors.New("disk full")}

	var _, info = c.RequestCommit(context.Background(), committer)
	require.False(t, info.IsZero())
	require.Equal(t, errs.CodeIOError, info.Code)
	require.True(t, c.Termination().GoingToAbort(), "a failed commit must abort the transaction")
}

func TestContextAbortWaitsForInFlightTasksThenCallsAbort(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	require.True(t, c.TryEnterTask())

	var committer = &fakeCommitter{}
	var abortDone = make(chan error, 1)
	go func() { abortDone <- c.RequestAbort(context.Background(), committer) }()

	time.Sleep(20 * time.Millisecond)
	require.False(t, committer.aborted.Load(), "abort must wait for quiescence before touching storage")

	c.ExitTask()

	select {
	case err := <-abortDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RequestAbort did not return after task exited")
	}
	require.True(t, committer.aborted.Load())
}

func TestContextCheckDDLAbortsOnTableWithWrites(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	c.MarkTableWritten("orders")

	var info = c.CheckDDL("orders")
	require.False(t, info.IsZero(), "a DDL statement against a table this transaction already wrote must be rejected")
	require.True(t, c.Termination().GoingToAbort())
	require.False(t, c.LastError().IsZero())
}

func TestContextCheckDDLAllowsTableWithoutWrites(t *testing.T) {
	var c = New(1, auth.ModeOCC, false)
	var info = c.CheckDDL("orders")
	require.True(t, info.IsZero())
	require.False(t, c.Termination().GoingToAbort())
}

func TestDurabilityManagerFiresAvailableImmediately(t *testing.T) {
	var sched = scheduler.NewSerial()
	sched.Start()
	defer sched.Stop()

	var job = scheduler.NewJobContext(1)
	job.Readiness = func() bool { return true }
	var completed = make(chan struct{})
	job.OnComplete = func() { close(completed) }

	var mgr = NewDurabilityManager(sched)
	var fired atomic.Bool
	mgr.Register(PendingCommit{
		TxnID:    1,
		Kind:     ResponseAvailable,
		Job:      job,
		Request:  nil,
		Callback: func(err error) { fired.Store(true) },
	})

	require.True(t, fired.Load())
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown was not submitted for an immediately-satisfied commit")
	}
}

func TestDurabilityManagerFiresOnlyCommitsAtOrBelowNotifiedLevel(t *testing.T) {
	var sched = scheduler.NewSerial()
	sched.Start()
	defer sched.Stop()

	var mgr = NewDurabilityManager(sched)

	var mu sync.Mutex
	var fired []string
	var register = func(id string, kind ResponseKind) *scheduler.JobContext {
		var job = scheduler.NewJobContext(1)
		job.Readiness = func() bool { return true }
		job.OnComplete = func() {}
		mgr.Register(PendingCommit{
			Kind: kind,
			Job:  job,
			Callback: func(err error) {
				mu.Lock()
				fired = append(fired, id)
				mu.Unlock()
			},
		})
		return job
	}

	register("stored", ResponseStored)
	register("propagated", ResponsePropagated)
	require.Equal(t, 2, mgr.Pending())

	mgr.Notify(ResponseStored)

	mu.Lock()
	require.Equal(t, []string{"stored"}, fired)
	mu.Unlock()
	require.Equal(t, 1, mgr.Pending())

	mgr.Notify(ResponsePropagated)

	mu.Lock()
	require.Equal(t, []string{"stored", "propagated"}, fired)
	mu.Unlock()
	require.Equal(t, 0, mgr.Pending())
}

func TestResponseKindString(t *testing.T) {
	require.Equal(t, "available", ResponseAvailable.String())
	require.Equal(t, "stored", ResponseStored.String())
	require.Equal(t, "propagated", ResponsePropagated.String())
}
