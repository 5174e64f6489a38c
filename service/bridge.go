// Package service implements the external interface surface of spec §6:
// the bridge a hosting framework calls into to start/stop the core,
// open and close transactions, prepare statements, resolve and execute
// them, and commit or abort. Grounded on the teacher's
// `consumer.Application`-shaped bridge (`go/consumer/app.go`), which
// plays the same role of translating framework calls into the runtime's
// own request/job/transaction plumbing.
package service

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/config"
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/ops"
	"github.com/estuary/sqlflow/reqcontext"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/estuary/sqlflow/session"
	"github.com/estuary/sqlflow/storage"
	"github.com/estuary/sqlflow/txn"
)

// Bridge is the process-wide entry point a host drives per spec §6's
// table. It owns the task scheduler, the session registry, the storage
// lock manager, and the durability manager, and mediates every
// transaction's write-preserve locks.
type Bridge struct {
	cfg     *config.Config
	store   storage.Store
	locks   *storage.Manager
	sched   scheduler.Scheduler
	durable *txn.DurabilityManager
	writers *reqcontext.WriterPool
	log     ops.Logger

	// Catalog is the table-definition mirror DDL statements read and
	// write through ResolveAndExecute. Nil is valid — a host that never
	// runs DDL (or has no catalog backing store configured) simply never
	// populates it, and DDL statements that reach ResolveAndExecute still
	// get their §4.8 gating check without a catalog write.
	Catalog *storage.CatalogMirror

	sessions *session.Registry

	mu        sync.Mutex
	held      map[session.TransactionHandle][]*storage.Control
	systemIdx map[systemKey]session.TransactionHandle
	nextTxn   atomic.Int64
	nextStmt  atomic.Int64
	nextJob   atomic.Int64
	nextReq   atomic.Int64
}

type systemKey struct {
	session session.SessionID
	system  int64
}

// NewBridge builds a Bridge over store, with locks arbitrating
// write-preserve access, configured per cfg. catalog may be nil for a
// host that has no table-definition mirror configured; DDL statements
// still get their §4.8 gating check, just no catalog persistence.
func NewBridge(cfg *config.Config, store storage.Store, locks *storage.Manager, catalog *storage.CatalogMirror) *Bridge {
	var sched scheduler.Scheduler
	if cfg.Scheduler.Kind == config.SchedulerSerial {
		sched = scheduler.NewSerial()
	} else {
		sched = scheduler.NewStealing(scheduler.StealingOptions{
			NumWorkers:                   cfg.Scheduler.WorkerCount,
			TeardownTryOnSuspendedWorker: cfg.Scheduler.TeardownTryOnSuspendedWorker,
		})
	}
	return &Bridge{
		cfg:       cfg,
		store:     store,
		locks:     locks,
		sched:     sched,
		durable:   txn.NewDurabilityManager(sched),
		writers:   reqcontext.NewWriterPool(cfg.Execution.WriterSeats),
		log:       ops.WithFields(ops.Std(), log.Fields{"component": "service"}),
		Catalog:   catalog,
		sessions:  session.NewRegistry(4096),
		held:      make(map[session.TransactionHandle][]*storage.Control),
		systemIdx: make(map[systemKey]session.TransactionHandle),
	}
}

// Start prepares the task scheduler for work. Idempotent, matching
// scheduler.Scheduler.Start's own idempotence.
func (b *Bridge) Start() error {
	b.sched.Start()
	b.log.Log(log.InfoLevel, nil, "service started")
	return nil
}

// Shutdown drains and stops the task scheduler.
func (b *Bridge) Shutdown() error {
	b.sched.Stop()
	b.log.Log(log.InfoLevel, nil, "service stopped")
	return nil
}

// OpenSession registers a new session under id in the bridge's registry;
// the host passes the same id to every subsequent call for that session.
func (b *Bridge) OpenSession(id session.SessionID) { b.sessions.Open(id) }

// CloseSession disposes a session's statement and transaction stores.
func (b *Bridge) CloseSession(id session.SessionID) { b.sessions.Close(id) }

// storageLockID derives a stable lock identity for a named storage, so
// write-preserve locking can key storage.Manager.Control by the names a
// transaction option carries rather than requiring the caller to already
// know internal storage ids.
func storageLockID(name string) int64 {
	var h = fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func (b *Bridge) session(id session.SessionID) (*session.Session, errs.ErrorInfo) {
	var s, ok = b.sessions.Lookup(id)
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "no such session %d", id)
	}
	return s, errs.ErrorInfo{}
}

func (b *Bridge) transactionMode(opts TransactionOptions) auth.TxnMode {
	switch {
	case opts.ReadOnly:
		return auth.ModeRTX
	case opts.IsLong:
		return auth.ModeLTX
	default:
		return auth.ModeOCC
	}
}

// newJob allocates a fresh JobContext id for one dataflow-graph
// execution or commit/abort teardown.
func (b *Bridge) newJob() *scheduler.JobContext {
	return scheduler.NewJobContext(b.nextJob.Add(1))
}

// noopRequest is the scheduler.RequestHandle used for commit/abort
// teardown tasks, which need neither cancellation nor error recording —
// the transaction lifecycle calls already carry their own errs.ErrorInfo
// return path.
type noopRequest struct{}

func (noopRequest) Cancelled() bool            { return false }
func (noopRequest) RecordError(errs.ErrorInfo) {}
func (noopRequest) AbortTransaction()          {}

var _ scheduler.RequestHandle = noopRequest{}

// ioError wraps a raw storage/driver error as the externally visible
// err_io_error code (spec §7 "Writer/channel I/O failures ... surfaced
// as err_io_error").
func ioError(err error) errs.ErrorInfo {
	if err == nil {
		return errs.ErrorInfo{}
	}
	return errs.New(errs.CodeIOError, "%v", err)
}
