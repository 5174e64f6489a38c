package txn

import (
	"sync"

	"github.com/estuary/sqlflow/scheduler"
)

// ResponseKind is the durability level at which a commit callback fires
// (spec §4.4 "Commit response kinds"). Ordered from least to most
// durable; a pending commit's callback fires once storage notifies a
// level at or past the one the client requested.
type ResponseKind int

const (
	ResponseAvailable ResponseKind = iota
	ResponseStored
	ResponsePropagated
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseAvailable:
		return "available"
	case ResponseStored:
		return "stored"
	case ResponsePropagated:
		return "propagated"
	default:
		return "unknown"
	}
}

// PendingCommit is one outstanding commit callback, awaiting storage's
// durability notification to reach its requested ResponseKind.
type PendingCommit struct {
	TxnID    int64
	Kind     ResponseKind
	Job      *scheduler.JobContext
	Request  scheduler.RequestHandle
	Callback func(err error)
}

// DurabilityManager schedules commit-callback tasks under the chosen
// response kind and, on durability notification from the storage layer,
// fires callbacks for every pending commit whose kind has now been met,
// submitting each one's job teardown (spec §4.4 "Durability callback").
type DurabilityManager struct {
	mu      sync.Mutex
	pending []PendingCommit
	sched   scheduler.Scheduler
}

// NewDurabilityManager builds a manager that schedules teardown tasks
// through sched.
func NewDurabilityManager(sched scheduler.Scheduler) *DurabilityManager {
	return &DurabilityManager{sched: sched}
}

// Register records a commit awaiting durability, or — for
// ResponseAvailable, which is satisfied immediately once the storage
// commit call returns — fires its callback and submits teardown right
// away.
func (d *DurabilityManager) Register(p PendingCommit) {
	if p.Kind == ResponseAvailable {
		d.fire(p, nil)
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, p)
	d.mu.Unlock()
}

// Notify is called with the durability level storage has just reached.
// Every pending commit whose requested kind is now satisfied (kind <=
// level) has its callback fired and its teardown submitted, exactly
// once, and is removed from the pending set.
func (d *DurabilityManager) Notify(level ResponseKind) {
	d.mu.Lock()
	var remaining = make([]PendingCommit, 0, len(d.pending))
	var fire []PendingCommit
	for _, p := range d.pending {
		if p.Kind <= level {
			fire = append(fire, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	d.pending = remaining
	d.mu.Unlock()

	for _, p := range fire {
		d.fire(p, nil)
	}
}

func (d *DurabilityManager) fire(p PendingCommit, err error) {
	if p.Callback != nil {
		p.Callback(err)
	}
	if p.Job != nil {
		_ = scheduler.ScheduleTeardown(d.sched, p.Job, p.Request)
	}
}

// Pending reports how many commits are still awaiting a durability
// notification.
func (d *DurabilityManager) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
