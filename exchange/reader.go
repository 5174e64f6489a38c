package exchange

import (
	"container/heap"

	"github.com/estuary/sqlflow/field"
)

// ReaderState is the priority-queue group reader's own small state
// machine, independent of the owning step's primary state (spec §4.2
// "Priority-queue group reader").
type ReaderState int

const (
	StateReaderInit ReaderState = iota
	StateBeforeMember
	StateOnMember
	StateAfterGroup
	StateEOF
)

// iteratorPair tracks one input partition's position within its
// pregrouped, key-sorted record slice.
type iteratorPair struct {
	partition int
	records   []field.Record
	idx       int
	seq       int // insertion order, for stable tie-breaking across partitions
}

func (it *iteratorPair) done() bool        { return it.idx >= len(it.records) }
func (it *iteratorPair) current() field.Record { return it.records[it.idx] }

// mergeHeap is a min-heap of iteratorPairs ordered by the current group
// key, breaking ties by insertion (partition) order so the merge is
// stable across partitions (spec §4.2 "Ties on key are broken by
// insertion order across partitions").
type mergeHeap struct {
	cmp   field.KeyComparator
	pairs []*iteratorPair
}

func (h *mergeHeap) Len() int { return len(h.pairs) }
func (h *mergeHeap) Less(i, j int) bool {
	var a, b = h.pairs[i], h.pairs[j]
	if c := h.cmp.Compare(a.current(), b.current()); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}
func (h *mergeHeap) Swap(i, j int) { h.pairs[i], h.pairs[j] = h.pairs[j], h.pairs[i] }
func (h *mergeHeap) Push(x interface{}) { h.pairs = append(h.pairs, x.(*iteratorPair)) }
func (h *mergeHeap) Pop() interface{} {
	var n = len(h.pairs)
	var x = h.pairs[n-1]
	h.pairs = h.pairs[:n-1]
	return x
}

// Reader performs the k-way merge across a group exchange's per-partition
// pregrouped (key-sorted) record slices, exposing the init ->
// before_member -> on_member -> after_group -> eof state machine of spec
// §4.2.
type Reader struct {
	cmp        field.KeyComparator
	h          *mergeHeap
	state      ReaderState
	currentKey field.Record
}

// NewReader builds a merge reader over partitions, each of which must
// already be sorted by cmp's key (the pregroup step). Empty partitions
// contribute nothing.
func NewReader(cmp field.KeyComparator, partitions [][]field.Record) *Reader {
	var h = &mergeHeap{cmp: cmp}
	for p, records := range partitions {
		if len(records) == 0 {
			continue
		}
		h.pairs = append(h.pairs, &iteratorPair{partition: p, records: records, seq: p})
	}
	heap.Init(h)
	return &Reader{cmp: cmp, h: h, state: StateReaderInit}
}

// NextGroup advances to the next distinct key, returning false once every
// partition is exhausted (state transitions to eof).
func (r *Reader) NextGroup() bool {
	if r.h.Len() == 0 {
		r.state = StateEOF
		return false
	}
	r.currentKey = r.h.pairs[0].current()
	r.state = StateBeforeMember
	return true
}

// NextMember returns the next record in the current group, in merge
// order, or ok=false once the group is exhausted (state transitions to
// after_group).
func (r *Reader) NextMember() (record field.Record, ok bool) {
	if r.h.Len() == 0 || r.cmp.Compare(r.h.pairs[0].current(), r.currentKey) != 0 {
		r.state = StateAfterGroup
		return nil, false
	}
	var top = r.h.pairs[0]
	record = top.current()
	top.idx++
	if top.done() {
		heap.Pop(r.h)
	} else {
		heap.Fix(r.h, 0)
	}
	r.state = StateOnMember
	return record, true
}

// State reports the reader's current position in its own state machine.
func (r *Reader) State() ReaderState { return r.state }
