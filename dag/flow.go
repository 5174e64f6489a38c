package dag

import "github.com/estuary/sqlflow/scheduler"

// Flow is the per-step runtime object created at activation (spec §4.2).
// Process flows create no tasks until `consume`; exchange flows
// preallocate per-partition sinks and sources at construction and then
// behave the same way as process flows for task creation.
type Flow interface {
	// CreateTasks builds this step's main-kind tasks (the `consume`
	// internal event). Called once the step transitions to `running`.
	CreateTasks(request scheduler.RequestHandle) []scheduler.Task

	// CreatePretask builds the pre-task for one subinput (the `prepare`
	// internal event), called once per subinput index while the step is
	// `preparing`. Flows with no subinputs are never asked for one.
	CreatePretask(subinputIndex int, request scheduler.RequestHandle) scheduler.Task

	// NumMainTasks reports how many main-kind slots this flow's step
	// needs, sized at activation before any task is created.
	NumMainTasks() int

	// NumPretasks reports how many pre-kind slots this flow's step
	// needs; equal to the number of subinputs needing one, typically
	// len(step.SubinputPorts()).
	NumPretasks() int

	// Close tears the flow down (the `deactivate` internal event),
	// releasing any reader references it still holds.
	Close() error
}
