package service

import (
	"context"

	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/session"
	"github.com/estuary/sqlflow/storage"
	"github.com/estuary/sqlflow/txn"
)

// TransactionOptions are the transaction-option fields spec §6
// recognizes on begin_transaction.
type TransactionOptions struct {
	ReadOnly            bool     `json:"readonly"`
	IsLong              bool     `json:"is_long"`
	ModifiesDefinitions bool     `json:"modifies_definitions"`
	WritePreserves      []string `json:"write_preserves"`
	Label               string   `json:"label"`
	ReadAreasInclusive  []string `json:"read_areas_inclusive"`
	ReadAreasExclusive  []string `json:"read_areas_exclusive"`

	// SystemID is an optional caller-supplied correlation id, looked up
	// again through FindTransaction — e.g. to resume a transaction
	// across a reconnect without the client needing to remember our
	// internal handle.
	SystemID int64 `json:"system_id"`
}

// BeginTransaction opens a transaction against sessionID per opts,
// acquiring an exclusive storage.Control for every write-preserve name
// before the transaction becomes visible to other callers (spec §4.8
// "storage locks").
func (b *Bridge) BeginTransaction(sessionID session.SessionID, opts TransactionOptions) (session.TransactionHandle, errs.ErrorInfo) {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return 0, sessErr
	}

	var locks = make([]*storage.Control, 0, len(opts.WritePreserves))
	for _, name := range opts.WritePreserves {
		var c = b.locks.Control(storageLockID(name))
		c.Lock()
		locks = append(locks, c)
	}

	var mode = b.transactionMode(opts)
	var tctx = txn.New(b.nextTxn.Add(1), mode, opts.ModifiesDefinitions)
	var handle = session.TransactionHandle(tctx.ID)
	if !sess.Txns.Put(handle, tctx) {
		for _, c := range locks {
			c.Release()
		}
		return 0, errs.New(errs.CodeTargetAlreadyExists, "transaction handle %d already in use", handle)
	}

	b.mu.Lock()
	b.held[handle] = locks
	if opts.SystemID != 0 {
		b.systemIdx[systemKey{session: sessionID, system: opts.SystemID}] = handle
	}
	b.mu.Unlock()

	return handle, errs.ErrorInfo{}
}

// releaseLocks releases every write-preserve lock BeginTransaction
// acquired for handle, and forgets its bookkeeping. Safe to call more
// than once; the second call is a no-op.
func (b *Bridge) releaseLocks(handle session.TransactionHandle) {
	b.mu.Lock()
	var locks = b.held[handle]
	delete(b.held, handle)
	b.mu.Unlock()
	for _, c := range locks {
		c.Release()
	}
}

// CloseTransaction disposes a transaction without requesting commit or
// abort from storage — for a host that is discarding a transaction it
// never drove to a terminal outcome (e.g. a disconnected client).
func (b *Bridge) CloseTransaction(sessionID session.SessionID, handle session.TransactionHandle) errs.ErrorInfo {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return sessErr
	}
	if !sess.Txns.Remove(handle) {
		return errs.New(errs.CodeNotFound, "no such transaction %d", handle)
	}
	b.releaseLocks(handle)
	return errs.ErrorInfo{}
}

// FindTransaction resolves a previously begun transaction by the
// caller-supplied correlation id passed as TransactionOptions.SystemID.
func (b *Bridge) FindTransaction(sessionID session.SessionID, systemID int64) (session.TransactionHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var handle, ok = b.systemIdx[systemKey{session: sessionID, system: systemID}]
	return handle, ok
}

// Commit requests commit of handle at the given durability kind. The
// returned channel receives exactly one errs.ErrorInfo once storage has
// notified the requested durability level (or immediately, for
// ResponseAvailable); the transaction is removed from the session's
// store and its write-preserve locks released before Commit returns,
// since both of those only depend on the commit call itself succeeding,
// not on durability propagation.
func (b *Bridge) Commit(ctx context.Context, sessionID session.SessionID, handle session.TransactionHandle, kind txn.ResponseKind) (<-chan errs.ErrorInfo, errs.ErrorInfo) {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return nil, sessErr
	}
	var tctx, ok = sess.Txns.Lookup(handle)
	if !ok {
		return nil, errs.New(errs.CodeInactiveTransaction, "no such transaction %d", handle)
	}

	var _, commitErr = tctx.RequestCommit(ctx, b.store)
	if !commitErr.IsZero() {
		return nil, commitErr
	}

	sess.Txns.Remove(handle)
	b.releaseLocks(handle)

	var result = make(chan errs.ErrorInfo, 1)
	var job = b.newJob()
	b.durable.Register(txn.PendingCommit{
		TxnID:   tctx.ID,
		Kind:    kind,
		Job:     job,
		Request: noopRequest{},
		Callback: func(err error) {
			result <- ioError(err)
			close(result)
		},
	})
	return result, errs.ErrorInfo{}
}

// Abort requests abort of handle, releasing its write-preserve locks and
// deregistering it from the session's transaction store.
func (b *Bridge) Abort(ctx context.Context, sessionID session.SessionID, handle session.TransactionHandle) errs.ErrorInfo {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return sessErr
	}
	var tctx, ok = sess.Txns.Lookup(handle)
	if !ok {
		return errs.New(errs.CodeInactiveTransaction, "no such transaction %d", handle)
	}

	var abortErr = tctx.RequestAbort(ctx, b.store)
	sess.Txns.Remove(handle)
	b.releaseLocks(handle)
	return ioError(abortErr)
}
