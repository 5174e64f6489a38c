// Package controller implements the DAG controller of spec §4.3: an
// event channel, a dispatch loop translating external events into step
// state transitions, and the internal events (activate, prepare,
// consume, deactivate, propagate_downstream_completing) those
// transitions trigger.
package controller

import "github.com/estuary/sqlflow/dag"

// Kind distinguishes an event's payload shape.
type Kind int

const (
	// EventProviding signals that a step's input port has data ready,
	// or (for the step with no inputs) that it may begin running.
	EventProviding Kind = iota
	// EventTaskCompleted reports that one of a step's scheduled tasks
	// reached a terminal state.
	EventTaskCompleted
	// EventCompletionInstructed force-completes every step of the
	// graph, after which the steps are deactivated and teardown is
	// scheduled. Tasks that are already running are not interrupted.
	EventCompletionInstructed
)

// Event is a tagged value carrying a target step id and, depending on
// Kind, a task id/kind/result.
type Event struct {
	Kind     Kind
	StepID   dag.StepID
	TaskKind dag.TaskKind
	TaskID   int64
	Result   dag.TaskSlotState
}
