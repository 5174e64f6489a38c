package exchange

import (
	"context"
	"sort"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/scheduler"
)

// GroupFlow pregroups records by a key-index vector, building a
// per-partition pointer table (here, an in-place key-sorted slice) and
// merging it via a min-heap k-way merge to produce a sorted-by-key source
// read (spec §4.2 "Group").
type GroupFlow struct {
	Sink   *Sink
	Source *Source
	cmp    field.KeyComparator
}

var _ dag.Flow = (*GroupFlow)(nil)

// NewGroupFlow builds a group exchange keyed on keyIndexes, with
// numInputParts sink partitions feeding a single merged output partition.
func NewGroupFlow(keyIndexes []int, numInputParts int) *GroupFlow {
	return &GroupFlow{
		Sink:   NewSink(numInputParts),
		Source: NewSource(1),
		cmp:    field.NewKeyComparator(keyIndexes),
	}
}

func (f *GroupFlow) NumMainTasks() int { return 1 }
func (f *GroupFlow) NumPretasks() int  { return 0 }

// pregroup sorts each partition's buffered records by key in place,
// building the "pointer table" the merge reader walks.
func (f *GroupFlow) pregroup(partitions [][]field.Record) {
	for _, records := range partitions {
		sort.SliceStable(records, func(i, j int) bool {
			return f.cmp.Compare(records[i], records[j]) < 0
		})
	}
}

// CreateTasks returns the task that pregroups the sink's buffered
// partitions, merges them via Reader, and pushes the merged,
// key-sorted stream into the single output partition.
func (f *GroupFlow) CreateTasks(request scheduler.RequestHandle) []scheduler.Task {
	return []scheduler.Task{{
		Request: request,
		Run: func(ctx context.Context, worker int) scheduler.Result {
			var partitions = f.Sink.Drain()
			f.pregroup(partitions)

			var reader = NewReader(f.cmp, partitions)
			var merged []field.Record
			for reader.NextGroup() {
				for {
					var rec, ok = reader.NextMember()
					if !ok {
						break
					}
					merged = append(merged, rec)
				}
			}
			f.Source.Receive(0, merged)
			return scheduler.ResultComplete
		},
	}}
}

func (f *GroupFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("group exchange has no subinputs")
}

func (f *GroupFlow) Close() error { return nil }
