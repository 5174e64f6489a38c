package reqcontext

import (
	"testing"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/estuary/sqlflow/txn"
	"github.com/stretchr/testify/require"
)

func TestContextCancellationIsObservableByTasks(t *testing.T) {
	var sched = scheduler.NewSerial()
	var job = scheduler.NewJobContext(1)
	var c = New(1, 1, "select 1", nil, job, sched, NewMemoryResource(1<<20), 4)

	require.False(t, c.Cancelled())
	c.Cancel()
	require.True(t, c.Cancelled())

	var handle scheduler.RequestHandle = c
	require.True(t, handle.Cancelled())
}

func TestContextRecordErrorIsFirstWins(t *testing.T) {
	var c = New(1, 1, "select 1", nil, scheduler.NewJobContext(1), scheduler.NewSerial(), NewMemoryResource(1<<20), 4)
	c.RecordError(errs.New(errs.CodeIOError, "disk full"))
	c.RecordError(errs.New(errs.CodeRequestCanceled, "canceled"))

	require.Equal(t, errs.CodeIOError, c.LastError().Code, "first recorded error must stick")
}

func TestContextAbortTransactionRequestsAbort(t *testing.T) {
	var tx = txn.New(1, auth.ModeOCC, false)
	var c = New(1, 1, "insert into t values (1)", tx, scheduler.NewJobContext(1), scheduler.NewSerial(), NewMemoryResource(1<<20), 4)

	c.AbortTransaction()
	require.True(t, tx.Termination().GoingToAbort())
}

func TestMemoryResourceTryAllocate(t *testing.T) {
	var m = NewMemoryResource(100)
	require.True(t, m.TryAllocate(60))
	require.True(t, m.TryAllocate(40))
	require.False(t, m.TryAllocate(1), "budget is already exhausted")

	m.Release(40)
	require.True(t, m.TryAllocate(40))
}

func TestStatsValueUnsetUntilTouched(t *testing.T) {
	var s = NewStats()
	var _, ok = s.Value(CounterInserted)
	require.False(t, ok)

	s.Count(CounterInserted, 3)
	s.Count(CounterInserted, 2)
	var v, ok2 = s.Value(CounterInserted)
	require.True(t, ok2)
	require.Equal(t, int64(5), v)
}

func TestWriterPoolAcquireReleaseCapacity(t *testing.T) {
	var p = NewWriterPool(2)

	var w1, ok1 = p.Acquire()
	require.True(t, ok1)
	var w2, ok2 = p.Acquire()
	require.True(t, ok2)
	require.Equal(t, 2, p.InUse())

	var _, ok3 = p.Acquire()
	require.False(t, ok3, "pool is at capacity")

	p.Release(w1)
	require.Equal(t, 1, p.InUse())

	var w3, ok4 = p.Acquire()
	require.True(t, ok4)
	require.NotNil(t, w3)

	p.ReleaseAll()
	require.Equal(t, 0, p.InUse())
	_ = w2
}
