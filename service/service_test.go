package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/config"
	"github.com/estuary/sqlflow/controller"
	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/estuary/sqlflow/session"
	"github.com/estuary/sqlflow/storage"
	"github.com/estuary/sqlflow/txn"
)

// emitFlow is a single-task flow that writes one record to results and
// completes, used to exercise ResolveAndExecute end to end without a
// real compiled plan.
type emitFlow struct {
	value   field.Value
	results chan<- field.Record
}

func (f *emitFlow) NumMainTasks() int { return 1 }
func (f *emitFlow) NumPretasks() int  { return 0 }
func (f *emitFlow) CreateTasks(scheduler.RequestHandle) []scheduler.Task {
	return []scheduler.Task{{
		Run: func(ctx context.Context, worker int) scheduler.Result {
			f.results <- field.Record{f.value}
			return scheduler.ResultComplete
		},
	}}
}
func (f *emitFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("no subinputs")
}
func (f *emitFlow) Close() error { return nil }

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	var cfg = config.Default()
	cfg.Scheduler.Kind = config.SchedulerSerial
	cfg.Execution.WriterSeats = 4
	cfg.Execution.ResultChannelCapacity = 8

	var store = storage.NewMemStore(field.NewKeyComparator([]int{0}))
	var b = NewBridge(cfg, store, storage.NewManager(), nil)
	require.NoError(t, b.Start())
	t.Cleanup(func() { require.NoError(t, b.Shutdown()) })
	return b
}

func singleStepPlan(value field.Value) *Plan {
	var g = dag.NewGraph()
	g.AddStep(dag.KindProcess, 0, 0, 0)
	return &Plan{
		Graph: g,
		BindFlows: func(params map[string]field.Value, results chan<- field.Record) controller.FlowFactory {
			return func(step *dag.Step) dag.Flow {
				return &emitFlow{value: value, results: results}
			}
		},
	}
}

func TestBeginTransactionAcquiresWritePreserveLocks(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var handle, err = b.BeginTransaction(1, TransactionOptions{WritePreserves: []string{"orders"}})
	require.True(t, err.IsZero())

	var c = b.locks.Control(storageLockID("orders"))
	require.False(t, c.CanLock(), "write-preserve storage must be held exclusively while the transaction is open")

	require.True(t, b.CloseTransaction(1, handle).IsZero())
	require.True(t, c.CanLock(), "closing the transaction must release its write-preserve locks")
}

func TestBeginTransactionReadOnlyUsesRTXMode(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)
	var handle, err = b.BeginTransaction(1, TransactionOptions{ReadOnly: true})
	require.True(t, err.IsZero())

	var sess, _ = b.sessions.Lookup(1)
	var tctx, ok = sess.Txns.Lookup(handle)
	require.True(t, ok)
	require.Equal(t, auth.ModeRTX, tctx.Mode)
}

func TestFindTransactionResolvesBySystemID(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)
	var handle, err = b.BeginTransaction(1, TransactionOptions{SystemID: 42})
	require.True(t, err.IsZero())

	var found, ok = b.FindTransaction(1, 42)
	require.True(t, ok)
	require.Equal(t, handle, found)

	var _, missing = b.FindTransaction(1, 99)
	require.False(t, missing)
}

func TestPrepareRejectsUnknownSession(t *testing.T) {
	var b = newTestBridge(t)
	var _, err = b.Prepare(99, "select 1", nil, &Plan{})
	require.Equal(t, errs.CodeNotFound, err.Code)
}

func TestResolveAndExecuteStreamsResultRecords(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var plan = singleStepPlan(field.Int64(7))
	var stmtHandle, prepErr = b.Prepare(1, "select 7", nil, plan)
	require.True(t, prepErr.IsZero())

	var results = make(chan field.Record, 1)
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, 0, nil, results)
	require.True(t, execErr.IsZero())

	var rec, ok = <-results
	require.True(t, ok)
	require.Equal(t, int64(7), rec[0].Int())

	var _, stillOpen = <-results
	require.False(t, stillOpen, "results channel must be closed once the graph completes")
}

func TestResolveAndExecuteRejectsMissingParameter(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var plan = singleStepPlan(field.Int64(1))
	var stmtHandle, _ = b.Prepare(1, "select :n", map[string]field.Kind{"n": field.KindInt64}, plan)

	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, 0, nil, nil)
	require.False(t, execErr.IsZero())
}

func TestCommitAvailableFiresImmediately(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)
	var handle, beginErr = b.BeginTransaction(1, TransactionOptions{})
	require.True(t, beginErr.IsZero())

	var resultCh, commitErr = b.Commit(context.Background(), 1, handle, txn.ResponseAvailable)
	require.True(t, commitErr.IsZero())

	select {
	case info := <-resultCh:
		require.True(t, info.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("commit callback never fired")
	}

	var sess, _ = b.sessions.Lookup(1)
	var _, stillOpen = sess.Txns.Lookup(handle)
	require.False(t, stillOpen)
}

func TestAbortReleasesLocksAndClosesTransaction(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)
	var handle, _ = b.BeginTransaction(1, TransactionOptions{WritePreserves: []string{"widgets"}})

	require.True(t, b.Abort(context.Background(), 1, handle).IsZero())

	var c = b.locks.Control(storageLockID("widgets"))
	require.True(t, c.CanLock())

	var sess, _ = b.sessions.Lookup(1)
	var _, stillOpen = sess.Txns.Lookup(handle)
	require.False(t, stillOpen)
}

func ddlPlan(table string) *Plan {
	var g = dag.NewGraph()
	g.AddStep(dag.KindProcess, 0, 0, 0)
	return &Plan{
		Graph: g,
		BindFlows: func(params map[string]field.Value, results chan<- field.Record) controller.FlowFactory {
			return func(step *dag.Step) dag.Flow {
				return &emitFlow{value: field.Int64(1), results: results}
			}
		},
		DDLTable: table,
	}
}

func TestResolveAndExecuteRejectsDDLWithoutTransaction(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var stmtHandle, _ = b.Prepare(1, "create table orders (...)", nil, ddlPlan("orders"))
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, 0, nil, nil)
	require.Equal(t, errs.CodeInactiveTransaction, execErr.Code)
}

func TestResolveAndExecuteRejectsDDLUnderReadOnlyTransaction(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var txnHandle, beginErr = b.BeginTransaction(1, TransactionOptions{ReadOnly: true})
	require.True(t, beginErr.IsZero())

	var stmtHandle, _ = b.Prepare(1, "create table orders (...)", nil, ddlPlan("orders"))
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, txnHandle, nil, nil)
	require.Equal(t, errs.CodeWriteByRTX, execErr.Code)
}

func TestResolveAndExecuteRejectsDDLUnderLongTransactionWithoutModifiesDefinitions(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var txnHandle, beginErr = b.BeginTransaction(1, TransactionOptions{IsLong: true})
	require.True(t, beginErr.IsZero())

	var stmtHandle, _ = b.Prepare(1, "create table orders (...)", nil, ddlPlan("orders"))
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, txnHandle, nil, nil)
	require.Equal(t, errs.CodeLTXWriteWithoutWritePreserve, execErr.Code)
}

func TestResolveAndExecuteRejectsDDLAfterTableWritten(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var txnHandle, beginErr = b.BeginTransaction(1, TransactionOptions{})
	require.True(t, beginErr.IsZero())

	var sess, _ = b.sessions.Lookup(1)
	var tctx, _ = sess.Txns.Lookup(txnHandle)
	tctx.MarkTableWritten("orders")

	var stmtHandle, _ = b.Prepare(1, "create table orders (...)", nil, ddlPlan("orders"))
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, txnHandle, nil, nil)
	require.Equal(t, errs.CodeUnsupportedRuntimeFeature, execErr.Code)
}

func TestResolveAndExecuteRunsDDLUnderOrdinaryTransaction(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)

	var txnHandle, beginErr = b.BeginTransaction(1, TransactionOptions{})
	require.True(t, beginErr.IsZero())

	var stmtHandle, _ = b.Prepare(1, "create table orders (...)", nil, ddlPlan("orders"))
	var execErr = b.ResolveAndExecute(context.Background(), 1, stmtHandle, txnHandle, nil, nil)
	require.True(t, execErr.IsZero())
}

func TestCloseTransactionNotFound(t *testing.T) {
	var b = newTestBridge(t)
	b.OpenSession(1)
	var err = b.CloseTransaction(1, session.TransactionHandle(12345))
	require.Equal(t, errs.CodeNotFound, err.Code)
}
