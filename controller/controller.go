package controller

import (
	"context"
	"sync/atomic"

	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/scheduler"
)

// FlowFactory builds the runtime Flow for one step. Supplied by the
// (out-of-scope) compiled-plan layer that knows each step's operator
// kind and configuration.
type FlowFactory func(*dag.Step) dag.Flow

// Controller drives one graph instance through its lifecycle: activation,
// the prepare/consume/deactivate internal events, and release of the
// owning job's completion latch once every step has completed (spec
// §4.3).
type Controller struct {
	graph    *dag.Graph
	repo     *dag.FlowRepository
	sched    scheduler.Scheduler
	job      *scheduler.JobContext
	request  scheduler.RequestHandle
	makeFlow FlowFactory
	events   *EventChannel

	nextTaskID atomic.Int64
}

// New builds a controller over graph, using makeFlow to construct each
// step's flow at activation. The controller does not start running
// until Activate and Run are called.
func New(graph *dag.Graph, sched scheduler.Scheduler, job *scheduler.JobContext, request scheduler.RequestHandle, makeFlow FlowFactory) *Controller {
	return &Controller{
		graph:    graph,
		repo:     dag.NewFlowRepository(graph),
		sched:    sched,
		job:      job,
		request:  request,
		makeFlow: makeFlow,
		events:   NewEventChannel(),
	}
}

// Events returns the controller's event channel, so external producers
// (a process step's writer, the hosting request layer) can push
// `providing` and `completion_instructed` events into it.
func (c *Controller) Events() *EventChannel { return c.events }

// Activate runs the `activate` internal event over every step in
// topological order, then immediately runs `prepare` for steps with
// subinputs, or `consume` for steps with no inputs and none needed (spec
// §4.2 "Activation").
func (c *Controller) Activate() {
	for _, step := range c.graph.Steps() {
		c.repo.Activate(step, c.makeFlow)
		if step.NeedsPretasks() {
			c.prepare(step)
		} else if step.NotifyNoInputs() {
			c.consume(step)
		}
	}
}

// Run drains the event channel, dispatching each event and synchronously
// executing whatever internal events the resulting transitions trigger,
// until the channel closes or every step has completed — at which point
// the job's teardown is scheduled and Run returns (spec §4.3 "Dispatch
// loop").
func (c *Controller) Run(ctx context.Context) error {
	for {
		var ev, ok = c.events.Pop()
		if !ok {
			return nil
		}
		for _, id := range c.dispatch(ev) {
			c.runInternalEvents(id)
		}
		if c.allStepsDone() {
			c.events.Close()
			return scheduler.ScheduleTeardown(c.sched, c.job, c.request)
		}
	}
}

// dispatch applies one external event's effect and returns the ids of
// steps that transitioned as a result.
func (c *Controller) dispatch(ev Event) []dag.StepID {
	switch ev.Kind {
	case EventProviding:
		var step = c.graph.Lookup(ev.StepID)
		if step != nil && step.NotifyProviding() {
			return []dag.StepID{ev.StepID}
		}
	case EventTaskCompleted:
		var step = c.graph.Lookup(ev.StepID)
		var result = ev.Result
		if result == dag.TaskSlotInit {
			result = dag.TaskSlotCompleted
		}
		if step != nil && step.NotifyTaskCompleted(ev.TaskKind, ev.TaskID, result) {
			return []dag.StepID{ev.StepID}
		}
	case EventCompletionInstructed:
		var ids []dag.StepID
		for _, step := range c.graph.Steps() {
			step.NotifyCompletionInstructed()
			ids = append(ids, step.ID())
		}
		return ids
	}
	return nil
}

// runInternalEvents executes whatever internal events follow from id's
// current primary state, chaining synchronously through completing ->
// completed -> deactivated, and stopping to wait on further external
// events wherever the next transition depends on one (spec §4.3
// "Internal events").
func (c *Controller) runInternalEvents(id dag.StepID) {
	var step = c.graph.Lookup(id)
	if step == nil {
		return
	}
	for {
		switch step.State().Primary() {
		case dag.StatePrimaryPrepared:
			if step.NotifyNoInputs() {
				continue
			}
			return
		case dag.StatePrimaryRunning:
			c.consume(step)
			return
		case dag.StatePrimaryCompleting:
			c.propagateDownstreamCompleting(step)
			step.MarkCompleted()
			continue
		case dag.StatePrimaryCompleted:
			_ = step.Deactivate()
			return
		default:
			return
		}
	}
}

// prepare runs the `prepare` internal event: create_pretask for each
// subinput, scheduling each as a pre-kind task.
func (c *Controller) prepare(step *dag.Step) {
	for i := range step.SubinputPorts() {
		var taskID = c.nextTaskID.Add(1)
		var t = step.Flow().CreatePretask(i, c.request)
		step.RegisterTask(dag.TaskKindPre, i, taskID)
		_ = c.sched.ScheduleTask(c.wrap(step.ID(), dag.TaskKindPre, taskID, t))
	}
}

// consume runs the `consume` internal event: create_tasks, scheduling
// each as a main-kind task.
func (c *Controller) consume(step *dag.Step) {
	for i, t := range step.Flow().CreateTasks(c.request) {
		var taskID = c.nextTaskID.Add(1)
		step.RegisterTask(dag.TaskKindMain, i, taskID)
		_ = c.sched.ScheduleTask(c.wrap(step.ID(), dag.TaskKindMain, taskID, t))
	}
}

// propagateDownstreamCompleting emits a providing notice to every step
// directly downstream of stepID's output ports, so exchanges waiting to
// close their sinks (or processes waiting on their first input) observe
// the upstream step's completion.
func (c *Controller) propagateDownstreamCompleting(step *dag.Step) {
	for _, port := range step.OutputPorts() {
		for _, opp := range port.Opposites {
			_ = c.events.Push(Event{Kind: EventProviding, StepID: opp.StepID})
		}
	}
}

// allStepsDone reports whether every step in the graph has reached
// completed or deactivated — the condition that releases the job latch.
func (c *Controller) allStepsDone() bool {
	for _, step := range c.graph.Steps() {
		var p = step.State().Primary()
		if p != dag.StatePrimaryCompleted && p != dag.StatePrimaryDeactivated {
			return false
		}
	}
	return true
}

// wrap adorns a flow-supplied task with bookkeeping: the scheduler-level
// task id and owning job, and a post-run hook that posts
// EventTaskCompleted back into the controller's own event channel once
// the task reaches a terminal (non-yielded) result.
func (c *Controller) wrap(stepID dag.StepID, kind dag.TaskKind, taskID int64, t scheduler.Task) scheduler.Task {
	var inner = t.Run
	t.ID = taskID
	t.Job = c.job
	if t.Request == nil {
		t.Request = c.request
	}
	t.Run = func(ctx context.Context, worker int) scheduler.Result {
		var result = inner(ctx, worker)
		switch result {
		case scheduler.ResultComplete, scheduler.ResultCompleteAndTeardown:
			_ = c.events.Push(Event{Kind: EventTaskCompleted, StepID: stepID, TaskKind: kind, TaskID: taskID, Result: dag.TaskSlotCompleted})
		}
		return result
	}
	return t
}
