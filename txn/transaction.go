package txn

import (
	"context"
	"time"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/errs"
)

// Kind is a transaction's primary lifecycle position (spec §4.6).
type Kind int

const (
	KindInit Kind = iota
	KindActive
	KindGoingToCommit
	KindCCCommitting
	KindCommittedAvailable
	KindCommittedStored
	KindGoingToAbort
	KindAborted
	KindUnknown
)

// Committer is the storage-layer commit/abort surface a TransactionContext
// drives once its termination state reaches quiescence. Storage supplies
// the concrete implementation; txn depends only on this narrow interface
// to avoid a storage<->txn import cycle.
type Committer interface {
	Commit(ctx context.Context) (lsn uint64, err error)
	Abort(ctx context.Context) error
}

// Context wraps the storage-layer transaction: the termination state,
// DDL write-tracking for auth gating, and timing (spec §3 "Transaction
// context").
type Context struct {
	ID                  int64
	Mode                auth.TxnMode
	ModifiesDefinitions bool

	term *TerminationState

	startedAt time.Time
	commitLSN uint64

	tableWrites map[string]bool
	lastError   errs.ErrorInfo
}

// New builds a transaction context in the active state.
func New(id int64, mode auth.TxnMode, modifiesDefinitions bool) *Context {
	return &Context{
		ID:                  id,
		Mode:                mode,
		ModifiesDefinitions: modifiesDefinitions,
		term:                NewTerminationState(),
		startedAt:           time.Now(),
		tableWrites:         make(map[string]bool),
	}
}

// Termination returns the transaction's packed termination-state word.
func (c *Context) Termination() *TerminationState { return c.term }

// State reports the transaction's current coarse lifecycle Kind, derived
// from the termination state and whichever commit/abort outcome has been
// recorded.
func (c *Context) State() Kind {
	switch {
	case c.lastError.Code == errs.CodeInactiveTransaction && c.term.GoingToAbort():
		return KindAborted
	case c.term.GoingToAbort():
		return KindGoingToAbort
	case c.term.GoingToCommit():
		return KindGoingToCommit
	default:
		return KindActive
	}
}

// TryEnterTask admits a new in-transaction task if the transaction is
// still accepting work.
func (c *Context) TryEnterTask() bool { return c.term.TryEnterTask() }

// ExitTask records that an in-transaction task has finished.
func (c *Context) ExitTask() { c.term.ExitTask() }

// MarkTableWritten records that a row has been written to table within
// this transaction, for the DDL "no backfill" gate (spec §4.8).
func (c *Context) MarkTableWritten(table string) { c.tableWrites[table] = true }

// CheckDDL applies the DDL gating rules of spec §4.8 to a DDL statement
// against table under this transaction.
func (c *Context) CheckDDL(table string) errs.ErrorInfo {
	var info = auth.CheckDDL(c.Mode, c.ModifiesDefinitions, c.tableWrites[table])
	if !info.IsZero() {
		c.abortWith(info)
	}
	return info
}

// abortWith records info as the transaction's terminal error and sets
// going_to_abort, so subsequent statements observe err_inactive_transaction
// (spec §4.8 "A DDL error aborts the transaction").
func (c *Context) abortWith(info errs.ErrorInfo) {
	c.lastError = errs.First(c.lastError, info)
	c.term.RequestAbort()
}

// RequestCommit implements spec §4.6's commit path: set going_to_commit
// (rejected if already aborting — abort dominates), wait for task-count
// quiescence, re-check abort (which may have raced in while waiting),
// then invoke the storage commit.
func (c *Context) RequestCommit(ctx context.Context, committer Committer) (lsn uint64, err errs.ErrorInfo) {
	if !c.term.RequestCommit() {
		return 0, errs.New(errs.CodeInactiveTransaction, "transaction %d is aborting", c.ID)
	}
	c.term.WaitForQuiescence()
	if c.term.GoingToAbort() {
		return 0, errs.New(errs.CodeInactiveTransaction, "transaction %d aborted before commit completed", c.ID)
	}
	var commitLSN, commitErr = committer.Commit(ctx)
	if commitErr != nil {
		var info = errs.New(errs.CodeIOError, "commit failed for transaction %d: %v", c.ID, commitErr)
		c.abortWith(info)
		return 0, info
	}
	c.commitLSN = commitLSN
	return commitLSN, errs.ErrorInfo{}
}

// RequestAbort implements spec §4.6's abort path: set going_to_abort
// unconditionally, wait for task-count quiescence, then invoke the
// storage abort.
func (c *Context) RequestAbort(ctx context.Context, committer Committer) error {
	c.term.RequestAbort()
	c.term.WaitForQuiescence()
	return committer.Abort(ctx)
}

// LastError returns the transaction's recorded terminal error, if any.
func (c *Context) LastError() errs.ErrorInfo { return c.lastError }

// CommitLSN returns the log sequence number the storage commit returned,
// valid only once RequestCommit has succeeded.
func (c *Context) CommitLSN() uint64 { return c.commitLSN }

// Elapsed reports how long the transaction has been open.
func (c *Context) Elapsed() time.Duration { return time.Since(c.startedAt) }
