package dag

// PrimaryState is a step's position in its lifecycle (spec §3 "Step state
// machine").
type PrimaryState int

const (
	StatePrimaryCreated PrimaryState = iota
	StatePrimaryActivated
	StatePrimaryPreparing
	StatePrimaryPrepared
	StatePrimaryRunning
	StatePrimaryCompleting
	StatePrimaryCompleted
	StatePrimaryDeactivated
)

func (s PrimaryState) String() string {
	switch s {
	case StatePrimaryCreated:
		return "created"
	case StatePrimaryActivated:
		return "activated"
	case StatePrimaryPreparing:
		return "preparing"
	case StatePrimaryPrepared:
		return "prepared"
	case StatePrimaryRunning:
		return "running"
	case StatePrimaryCompleting:
		return "completing"
	case StatePrimaryCompleted:
		return "completed"
	case StatePrimaryDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// TaskKind distinguishes a step's pre-tasks (run during `preparing`, one
// per subinput) from its main tasks (run during `running`).
type TaskKind int

const (
	TaskKindMain TaskKind = iota
	TaskKindPre
)

// UninitializedTaskIdentity marks an empty slot: no task has been
// scheduled into it yet.
const UninitializedTaskIdentity int64 = -1

// TaskSlotState is the lifecycle of one scheduled task as tracked by its
// owning step (spec §3 "Task state").
type TaskSlotState int

const (
	TaskSlotInit TaskSlotState = iota
	TaskSlotRunning
	TaskSlotCompleted
	TaskSlotYielded
	TaskSlotCanceled
)

// slot is one entry in a step's per-task-kind slot table.
type slot struct {
	taskID int64
	state  TaskSlotState
}

func emptySlot() slot { return slot{taskID: UninitializedTaskIdentity, state: TaskSlotInit} }

// StepState is a step's primary state plus its main- and pre-task slot
// tables. Slot counts are fixed at activation from the step's flow task
// count and never resized afterward.
type StepState struct {
	primary   PrimaryState
	mainSlots []slot
	preSlots  []slot
}

func newStepState() StepState {
	return StepState{primary: StatePrimaryCreated}
}

// Primary reports the step's current primary state.
func (s *StepState) Primary() PrimaryState { return s.primary }

// transitionActivate moves created -> activated, then immediately to
// preparing (if the step has subinputs needing pre-tasks) or straight to
// prepared otherwise (spec §3 transition table).
func (s *StepState) transitionActivate(needsPrepare bool) {
	s.primary = StatePrimaryActivated
	if needsPrepare {
		s.primary = StatePrimaryPreparing
	} else {
		s.primary = StatePrimaryPrepared
	}
}

// registerSlots sizes the main- and pre-task slot tables. Called once,
// during `activate`, from the task counts the step's flow reports.
func (s *StepState) registerSlots(numMain, numPre int) {
	s.mainSlots = make([]slot, numMain)
	for i := range s.mainSlots {
		s.mainSlots[i] = emptySlot()
	}
	s.preSlots = make([]slot, numPre)
	for i := range s.preSlots {
		s.preSlots[i] = emptySlot()
	}
}

// fillSlot records that taskID has been scheduled into slot index of the
// given kind, in TaskSlotRunning state.
func (s *StepState) fillSlot(kind TaskKind, index int, taskID int64) {
	var table = s.table(kind)
	table[index] = slot{taskID: taskID, state: TaskSlotRunning}
}

// completeTask marks the slot holding taskID as completed (or yielded /
// canceled, per result) and reports whether every slot of kind is now
// completed — the condition that fires the step's next transition.
func (s *StepState) completeTask(kind TaskKind, taskID int64, result TaskSlotState) (allComplete bool) {
	var table = s.table(kind)
	for i := range table {
		if table[i].taskID == taskID {
			table[i].state = result
			break
		}
	}
	for i := range table {
		if table[i].state != TaskSlotCompleted {
			return false
		}
	}
	return len(table) > 0
}

func (s *StepState) table(kind TaskKind) []slot {
	if kind == TaskKindPre {
		return s.preSlots
	}
	return s.mainSlots
}

// transitionPrepared moves preparing -> prepared once every pre-task slot
// has completed.
func (s *StepState) transitionPrepared() {
	if s.primary == StatePrimaryPreparing {
		s.primary = StatePrimaryPrepared
	}
}

// transitionRunning moves prepared -> running on a `providing` event (or
// immediately, for a step with no inputs).
func (s *StepState) transitionRunning() {
	if s.primary == StatePrimaryPrepared {
		s.primary = StatePrimaryRunning
	}
}

// transitionCompleting moves running -> completing once every main-task
// slot has completed.
func (s *StepState) transitionCompleting() {
	if s.primary == StatePrimaryRunning {
		s.primary = StatePrimaryCompleting
	}
}

// transitionCompleted moves completing -> completed, after
// propagate_downstream_completing has run.
func (s *StepState) transitionCompleted() {
	if s.primary == StatePrimaryCompleting {
		s.primary = StatePrimaryCompleted
	}
}

// forceComplete implements the "any state + completion_instructed ->
// force-complete path" transition: cancellation overrides whatever
// state the step was in.
func (s *StepState) forceComplete() {
	s.primary = StatePrimaryCompleted
}
