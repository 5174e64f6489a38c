package controller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/stretchr/testify/require"
)

// countingFlow runs a fixed number of main tasks, each completing
// immediately and incrementing a shared counter, with no subinputs.
type countingFlow struct {
	numMain int
	ran     *atomic.Int64
}

func (f *countingFlow) NumMainTasks() int { return f.numMain }
func (f *countingFlow) NumPretasks() int  { return 0 }
func (f *countingFlow) CreateTasks(scheduler.RequestHandle) []scheduler.Task {
	var tasks = make([]scheduler.Task, f.numMain)
	for i := range tasks {
		tasks[i] = scheduler.Task{
			Run: func(ctx context.Context, worker int) scheduler.Result {
				f.ran.Add(1)
				return scheduler.ResultComplete
			},
		}
	}
	return tasks
}
func (f *countingFlow) CreatePretask(int, scheduler.RequestHandle) scheduler.Task {
	panic("no subinputs")
}
func (f *countingFlow) Close() error { return nil }

func TestControllerDrivesTwoStepChainToCompletion(t *testing.T) {
	var g = dag.NewGraph()
	var upstream = g.AddStep(dag.KindProcess, 0, 1, 0)
	var downstream = g.AddStep(dag.KindProcess, 1, 0, 0)
	upstream.ConnectTo(downstream, 0, 0)

	var upstreamRan, downstreamRan atomic.Int64

	var sched = scheduler.NewSerial()
	sched.Start()
	defer sched.Stop()

	var job = scheduler.NewJobContext(1)
	var completed = make(chan struct{})
	job.Readiness = func() bool { return true }
	job.OnComplete = func() { close(completed) }

	var ctrl = New(g, sched, job, nil, func(step *dag.Step) dag.Flow {
		if step.ID() == upstream.ID() {
			return &countingFlow{numMain: 1, ran: &upstreamRan}
		}
		return &countingFlow{numMain: 1, ran: &downstreamRan}
	})

	ctrl.Activate()

	var runDone = make(chan error, 1)
	go func() { runDone <- ctrl.Run(context.Background()) }()

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller Run to return")
	}

	require.Equal(t, int64(1), upstreamRan.Load())
	require.Equal(t, int64(1), downstreamRan.Load())
	require.Equal(t, dag.StatePrimaryDeactivated, upstream.State().Primary())
	require.Equal(t, dag.StatePrimaryDeactivated, downstream.State().Primary())
}

func TestEventChannelClosedUnblocksPop(t *testing.T) {
	var ch = NewEventChannel()
	var done = make(chan struct{})
	go func() {
		var _, ok = ch.Pop()
		require.False(t, ok)
		close(done)
	}()
	ch.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Pop to unblock")
	}
	require.ErrorIs(t, ch.Push(Event{}), ErrClosed)
}

func TestEventChannelTryPop(t *testing.T) {
	var ch = NewEventChannel()
	var _, ok = ch.TryPop()
	require.False(t, ok)

	require.NoError(t, ch.Push(Event{Kind: EventProviding, StepID: 3}))
	var ev, ok2 = ch.TryPop()
	require.True(t, ok2)
	require.Equal(t, dag.StepID(3), ev.StepID)
}
