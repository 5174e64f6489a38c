package exchange

import (
	"context"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/scheduler"
)

// ForwardFlow is a 1:1 passthrough exchange: sinks route records to
// sources without grouping (spec §4.2 "Forward").
type ForwardFlow struct {
	Sink   *Sink
	Source *Source
}

var _ dag.Flow = (*ForwardFlow)(nil)

// NewForwardFlow builds a forward exchange flow with numPartitions on
// both the sink and source side.
func NewForwardFlow(numPartitions int) *ForwardFlow {
	return &ForwardFlow{
		Sink:   NewSink(numPartitions),
		Source: NewSource(numPartitions),
	}
}

func (f *ForwardFlow) NumMainTasks() int { return 1 }
func (f *ForwardFlow) NumPretasks() int  { return 0 }

// CreateTasks returns the single task implementing `transfer()`: moving
// everything currently buffered in the sink into the source.
func (f *ForwardFlow) CreateTasks(request scheduler.RequestHandle) []scheduler.Task {
	return []scheduler.Task{{
		Request: request,
		Run: func(ctx context.Context, worker int) scheduler.Result {
			Transfer(f.Sink, f.Source)
			return scheduler.ResultComplete
		},
	}}
}

func (f *ForwardFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("forward exchange has no subinputs")
}

func (f *ForwardFlow) Close() error { return nil }
