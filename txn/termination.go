// Package txn implements the transaction lifecycle of spec §4.6: the
// packed termination-state word gating new in-transaction work, the
// commit/abort state machine built on it, and the durability-callback
// bookkeeping of §4.4.
package txn

import (
	"sync"
	"sync/atomic"
)

const (
	abortBit      = uint64(1) << 63
	commitBit     = uint64(1) << 62
	taskCountMask = commitBit - 1
)

// TerminationState is the 64-bit packed word of spec §3: bit 63
// going-to-abort, bit 62 going-to-commit, bits 0-61 the count of
// in-flight in-transaction tasks. It is the sole authoritative gate for
// admitting new in-transaction work.
type TerminationState struct {
	word atomic.Uint64
	mu   sync.Mutex
	cond *sync.Cond
}

// NewTerminationState builds a termination state with zero in-flight
// tasks and neither flag set.
func NewTerminationState() *TerminationState {
	var t = &TerminationState{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// TryEnterTask atomically admits a new in-transaction task, incrementing
// the task count, unless going_to_abort or going_to_commit is already
// set (spec §4.6 "To enter a new in-transaction task").
func (t *TerminationState) TryEnterTask() bool {
	for {
		var old = t.word.Load()
		if old&(abortBit|commitBit) != 0 {
			return false
		}
		if t.word.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// ExitTask atomically decrements the in-flight task count and wakes any
// goroutine waiting in WaitForQuiescence if the count has reached zero.
func (t *TerminationState) ExitTask() {
	var next = t.word.Add(^uint64(0)) // -1, two's-complement decrement
	if next&taskCountMask == 0 {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

// TaskCount reports the current in-flight task count.
func (t *TerminationState) TaskCount() int64 {
	return int64(t.word.Load() & taskCountMask)
}

// GoingToAbort reports whether the abort bit is set.
func (t *TerminationState) GoingToAbort() bool { return t.word.Load()&abortBit != 0 }

// GoingToCommit reports whether the commit bit is set.
func (t *TerminationState) GoingToCommit() bool { return t.word.Load()&commitBit != 0 }

// RequestCommit sets going_to_commit, unless going_to_abort is already
// set — abort dominates commit (spec §4.6, §9 Open Question resolved in
// DESIGN.md). Returns false if the transaction is already aborting.
func (t *TerminationState) RequestCommit() bool {
	for {
		var old = t.word.Load()
		if old&abortBit != 0 {
			return false
		}
		if old&commitBit != 0 {
			return true
		}
		if t.word.CompareAndSwap(old, old|commitBit) {
			return true
		}
	}
}

// RequestAbort sets going_to_abort unconditionally, regardless of
// whether going_to_commit is already set; abort always wins.
func (t *TerminationState) RequestAbort() {
	for {
		var old = t.word.Load()
		if old&abortBit != 0 {
			return
		}
		if t.word.CompareAndSwap(old, old|abortBit) {
			return
		}
	}
}

// WaitForQuiescence blocks until the in-flight task count reaches zero.
func (t *TerminationState) WaitForQuiescence() {
	t.mu.Lock()
	for t.word.Load()&taskCountMask != 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}
