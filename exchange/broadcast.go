package exchange

import (
	"context"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/scheduler"
)

// BroadcastFlow copies every input partition to every downstream
// partition (spec §4.2 "Broadcast").
type BroadcastFlow struct {
	Sink            *Sink
	Source          *Source
	downstreamParts int
}

var _ dag.Flow = (*BroadcastFlow)(nil)

// NewBroadcastFlow builds a broadcast exchange accepting numInputParts
// sink partitions and fanning each out to downstreamParts source
// partitions.
func NewBroadcastFlow(numInputParts, downstreamParts int) *BroadcastFlow {
	return &BroadcastFlow{
		Sink:            NewSink(numInputParts),
		Source:          NewSource(downstreamParts),
		downstreamParts: downstreamParts,
	}
}

func (f *BroadcastFlow) NumMainTasks() int { return 1 }
func (f *BroadcastFlow) NumPretasks() int  { return 0 }

func (f *BroadcastFlow) CreateTasks(request scheduler.RequestHandle) []scheduler.Task {
	return []scheduler.Task{{
		Request: request,
		Run: func(ctx context.Context, worker int) scheduler.Result {
			var all []field.Record
			for _, records := range f.Sink.Drain() {
				all = append(all, records...)
			}
			for p := 0; p < f.downstreamParts; p++ {
				f.Source.Receive(p, all)
			}
			return scheduler.ResultComplete
		},
	}}
}

func (f *BroadcastFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("broadcast exchange has no subinputs")
}

func (f *BroadcastFlow) Close() error { return nil }
