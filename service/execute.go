package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/estuary/sqlflow/controller"
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/reqcontext"
	"github.com/estuary/sqlflow/session"
	"github.com/estuary/sqlflow/storage"
	"github.com/estuary/sqlflow/txn"
)

// ResolveAndExecute resolves stmtHandle's compiled plan, binds params,
// drives it to completion through the DAG controller, and forwards
// every record the graph produces to results (spec §6 "resolve &
// execute ... writes records to channel"). results may be nil, matching
// the "optional channel" of a DDL statement that produces no rows.
func (b *Bridge) ResolveAndExecute(ctx context.Context, sessionID session.SessionID, stmtHandle session.StatementHandle, txnHandle session.TransactionHandle, params map[string]field.Value, results chan<- field.Record) errs.ErrorInfo {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return sessErr
	}

	var stmt, ok = sess.Statements.Lookup(stmtHandle)
	if !ok {
		return errs.New(errs.CodeNotFound, "no such statement %d", stmtHandle)
	}
	stmt.Acquire()
	defer stmt.Release()

	if err := bindParameters(stmt, params); !err.IsZero() {
		return err
	}

	var plan, planOK = stmt.Plan.(*Plan)
	if !planOK {
		return errs.New(errs.CodeUnsupportedRuntimeFeature, "statement %d has no executable plan", stmtHandle)
	}

	var tctx *txn.Context
	if txnHandle != 0 {
		tctx, ok = sess.Txns.Lookup(txnHandle)
		if !ok {
			return errs.New(errs.CodeInactiveTransaction, "no such transaction %d", txnHandle)
		}
		if !tctx.TryEnterTask() {
			return errs.New(errs.CodeInactiveTransaction, "transaction %d is no longer accepting tasks", txnHandle)
		}
		defer tctx.ExitTask()
	}

	if plan.DDLTable != "" {
		if tctx == nil {
			return errs.New(errs.CodeInactiveTransaction, "DDL statement against %q requires an active transaction", plan.DDLTable)
		}
		if err := tctx.CheckDDL(plan.DDLTable); !err.IsZero() {
			return err
		}
	}

	var w, seated = b.writers.Acquire()
	if !seated {
		return errs.New(errs.CodeIOError, "no writer seats available")
	}
	defer b.writers.Release(w)

	var job = b.newJob()
	var mem = reqcontext.NewMemoryResource(b.cfg.Execution.MemoryBudgetBytes)
	var reqCtx = reqcontext.New(b.nextReq.Add(1), int64(sessionID), stmt.SQL, tctx, job, b.sched, mem, b.cfg.Execution.ResultChannelCapacity)
	job.OnComplete = func() { close(reqCtx.Results) }

	var ctrl = controller.New(plan.Graph, b.sched, job, reqCtx, plan.BindFlows(params, reqCtx.Results))

	reqCtx.Submitting()
	ctrl.Activate()
	reqCtx.Started()

	var runErr = make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	for rec := range reqCtx.Results {
		if results == nil {
			continue
		}
		select {
		case results <- rec:
		case <-ctx.Done():
			reqCtx.Cancel()
		}
	}
	if results != nil {
		close(results)
	}

	if err := <-runErr; err != nil {
		reqCtx.RecordError(ioError(err))
	}
	reqCtx.Finishing()

	if plan.DDLTable != "" && b.Catalog != nil && reqCtx.LastError().IsZero() {
		b.applyCatalogDDL(ctx, plan)
	}
	return reqCtx.LastError()
}

// applyCatalogDDL persists a successfully executed DDL statement's table
// definition change to the catalog mirror, logging the change tagged by
// the table's Gazette label set (spec §6's observability surface).
func (b *Bridge) applyCatalogDDL(ctx context.Context, plan *Plan) {
	var fields = log.Fields(storage.LabelFields(storage.LabelSet(plan.DDLDatabase, plan.DDLSchema, plan.DDLTable)))

	if plan.DDLDescriptor != nil {
		if err := b.Catalog.Put(ctx, plan.DDLDatabase, plan.DDLSchema, plan.DDLDescriptor); err != nil {
			b.log.Log(log.ErrorLevel, fields, "catalog put failed: "+err.Error())
			return
		}
		b.log.Log(log.InfoLevel, fields, "catalog table created")
		return
	}
	if err := b.Catalog.Drop(ctx, plan.DDLDatabase, plan.DDLSchema, plan.DDLTable); err != nil {
		b.log.Log(log.ErrorLevel, fields, "catalog drop failed: "+err.Error())
		return
	}
	b.log.Log(log.InfoLevel, fields, "catalog table dropped")
}
