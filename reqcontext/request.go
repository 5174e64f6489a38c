package reqcontext

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/ops"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/estuary/sqlflow/txn"
	log "github.com/sirupsen/logrus"
)

// MemoryResource is a fixed budget of bytes a request's operators may
// consume, checked cooperatively at allocation points. This stands in
// for the core's memory-resource abstraction; an allocation that would
// exceed the budget is refused, with TryAllocate reporting false at the
// call site that asked for it.
type MemoryResource struct {
	limit atomic.Int64
	used  atomic.Int64
}

// NewMemoryResource builds a resource with the given byte budget.
func NewMemoryResource(limitBytes int64) *MemoryResource {
	var m = &MemoryResource{}
	m.limit.Store(limitBytes)
	return m
}

// TryAllocate reserves n bytes, failing if doing so would exceed the
// budget.
func (m *MemoryResource) TryAllocate(n int64) bool {
	for {
		var used = m.used.Load()
		var limit = m.limit.Load()
		if used+n > limit {
			return false
		}
		if m.used.CompareAndSwap(used, used+n) {
			return true
		}
	}
}

// Release returns n bytes to the budget.
func (m *MemoryResource) Release(n int64) { m.used.Add(-n) }

// Committer is the narrow storage surface RequestContext needs to drive
// a commit/abort once requested; it is just txn.Committer under another
// name so callers don't need to import txn for this alone.
type Committer = txn.Committer

// Context is the per-top-level-request scope of spec §4.4: it binds a
// transaction context (optional), a job context, a scheduler handle, a
// memory resource, a result-record channel, and session metadata, and
// implements scheduler.RequestHandle so tasks can check cancellation and
// record errors directly against it.
type Context struct {
	ID        int64
	SessionID int64
	Statement string

	Txn       *txn.Context
	Job       *scheduler.JobContext
	Scheduler scheduler.Scheduler
	Memory    *MemoryResource
	Stats     *Stats

	Results chan field.Record

	log ops.Logger

	mu        sync.Mutex
	cancelled atomic.Bool
	lastError errs.ErrorInfo

	acceptedAt time.Time
}

// New builds a request context bound to job and sched, with a result
// channel of the given buffer depth. txnCtx may be nil for DDL under an
// implicit LTX.
func New(id, sessionID int64, statement string, txnCtx *txn.Context, job *scheduler.JobContext, sched scheduler.Scheduler, mem *MemoryResource, resultBuffer int) *Context {
	requestsInFlight.Inc()
	var c = &Context{
		ID:         id,
		SessionID:  sessionID,
		Statement:  statement,
		Txn:        txnCtx,
		Job:        job,
		Scheduler:  sched,
		Memory:     mem,
		Stats:      NewStats(),
		Results:    make(chan field.Record, resultBuffer),
		log:        ops.WithFields(ops.Std(), log.Fields{"request_id": id, "session_id": sessionID}),
		acceptedAt: time.Now(),
	}
	c.log.Log(log.InfoLevel, nil, "request accepted")
	return c
}

// Cancelled reports whether this request has been canceled (implements
// scheduler.RequestHandle).
func (c *Context) Cancelled() bool { return c.cancelled.Load() }

// Cancel sets the cancellation flag; tasks observe it at their next
// cancellation check (spec §5 "Cancellation and timeouts").
func (c *Context) Cancel() { c.cancelled.Store(true) }

// RecordError attaches info to the request under first-error-wins
// semantics (implements scheduler.RequestHandle).
func (c *Context) RecordError(info errs.ErrorInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = errs.First(c.lastError, info)
}

// LastError returns the request's recorded error, if any.
func (c *Context) LastError() errs.ErrorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// AbortTransaction requests abort of this request's bound transaction,
// if any (implements scheduler.RequestHandle). The actual storage abort
// call is driven by whoever owns the Committer; this only flips the
// termination-state bit so in-flight tasks observe it.
func (c *Context) AbortTransaction() {
	if c.Txn != nil {
		c.Txn.Termination().RequestAbort()
	}
}

// Submitting, Started, and Finishing log the remaining lifecycle
// transitions of spec §4.4, each with elapsed time since acceptance.
func (c *Context) Submitting() {
	c.log.Log(log.InfoLevel, log.Fields{"elapsed_ms": c.elapsedMillis()}, "request submitting")
}

func (c *Context) Started() {
	c.log.Log(log.InfoLevel, log.Fields{"elapsed_ms": c.elapsedMillis()}, "request started")
}

func (c *Context) Finishing() {
	requestsInFlight.Dec()
	var fields = log.Fields{"elapsed_ms": c.elapsedMillis()}
	if info := c.LastError(); !info.IsZero() {
		fields["error_code"] = info.Code.String()
		c.log.Log(log.ErrorLevel, fields, "request finishing")
		return
	}
	c.log.Log(log.InfoLevel, fields, "request finishing")
}

func (c *Context) elapsedMillis() int64 {
	return time.Since(c.acceptedAt).Milliseconds()
}
