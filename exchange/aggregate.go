package exchange

import (
	"context"
	"sort"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/scheduler"
)

// AggregateFlow behaves like GroupFlow but folds each group's value field
// through an incremental AggregateFunc (pre / mid / post) as records are
// consumed from the merge, rather than buffering the whole group (spec
// §4.2 "Aggregate").
type AggregateFlow struct {
	Sink        *Sink
	Source      *Source
	cmp         field.KeyComparator
	keyIndexes  []int
	valueIndex  int
	fn          field.AggregateFunc
}

var _ dag.Flow = (*AggregateFlow)(nil)

// NewAggregateFlow builds an aggregate exchange keyed on keyIndexes,
// folding the field at valueIndex through fn, with numInputParts sink
// partitions feeding a single merged output partition (one output record
// per distinct key).
func NewAggregateFlow(keyIndexes []int, valueIndex int, fn field.AggregateFunc, numInputParts int) *AggregateFlow {
	return &AggregateFlow{
		Sink:       NewSink(numInputParts),
		Source:     NewSource(1),
		cmp:        field.NewKeyComparator(keyIndexes),
		keyIndexes: keyIndexes,
		valueIndex: valueIndex,
		fn:         fn,
	}
}

func (f *AggregateFlow) NumMainTasks() int { return 1 }
func (f *AggregateFlow) NumPretasks() int  { return 0 }

func (f *AggregateFlow) pregroup(partitions [][]field.Record) {
	for _, records := range partitions {
		sort.SliceStable(records, func(i, j int) bool {
			return f.cmp.Compare(records[i], records[j]) < 0
		})
	}
}

// CreateTasks returns the task that merges the sink's pregrouped
// partitions and, per distinct key, folds member values through the
// aggregate function's pre/mid/post phases as each member is consumed
// from the merge.
func (f *AggregateFlow) CreateTasks(request scheduler.RequestHandle) []scheduler.Task {
	return []scheduler.Task{{
		Request: request,
		Run: func(ctx context.Context, worker int) scheduler.Result {
			var partitions = f.Sink.Drain()
			f.pregroup(partitions)
			var reader = NewReader(f.cmp, partitions)

			var out []field.Record
			for reader.NextGroup() {
				var keyRecord field.Record
				var state field.Value
				var haveState bool
				for {
					var rec, ok = reader.NextMember()
					if !ok {
						break
					}
					if keyRecord == nil {
						keyRecord = rec
					}
					var value = rec[f.valueIndex]
					if !haveState {
						var err error
						state, err = f.fn.Pre(value)
						if err != nil {
							continue
						}
						haveState = true
						continue
					}
					var next, err = f.fn.Mid(state, value)
					if err != nil {
						continue
					}
					state = next
				}
				if !haveState {
					continue
				}
				var result, err = f.fn.Post(state)
				if err != nil {
					continue
				}
				out = append(out, appendAggregate(keyRecord, f.keyIndexes, result))
			}
			f.Source.Receive(0, out)
			return scheduler.ResultComplete
		},
	}}
}

// appendAggregate builds the output record for one group: its key fields,
// in declared order, followed by the folded aggregate value.
func appendAggregate(keyRecord field.Record, keyIndexes []int, aggregate field.Value) field.Record {
	var out = make(field.Record, 0, len(keyIndexes)+1)
	for _, idx := range keyIndexes {
		out = append(out, keyRecord[idx])
	}
	return append(out, aggregate)
}

func (f *AggregateFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("aggregate exchange has no subinputs")
}

func (f *AggregateFlow) Close() error { return nil }
