package dag

// StepID is a step's identity: its position in the owning graph, assigned
// 0..N-1 on insertion (spec §3).
type StepID int

// Undefined is the process-wide null step id, used where no step applies.
const Undefined StepID = -1

// StepKind distinguishes a process step (runs compiled-plan operator
// logic) from an exchange step (redistributes records between process
// steps).
type StepKind int

const (
	KindProcess StepKind = iota
	KindExchangeForward
	KindExchangeGroup
	KindExchangeAggregate
	KindExchangeBroadcast
)

func (k StepKind) IsExchange() bool { return k != KindProcess }

// Step is a node in the dataflow graph. Identity is unique within its
// owning graph; every port's Owner equals the step's id; exchange steps
// never have subinputs; a process step has at least one output or
// produces side effects (spec §3 invariants — the last is a contract on
// the compiled plan, not mechanically enforced here).
type Step struct {
	id      StepID
	kind    StepKind
	owner   *Graph
	inputs  []*Port
	subs    []*Port
	outputs []*Port
	flow    Flow // nil until activation

	state StepState
}

// newStep constructs a step with the given port counts, not yet attached
// to a graph.
func newStep(kind StepKind, numInputs, numOutputs, numSubs int) *Step {
	var s = &Step{kind: kind, id: Undefined}
	if kind.IsExchange() && numSubs != 0 {
		panic("exchange steps never have subinputs")
	}
	for i := 0; i < numInputs; i++ {
		s.inputs = append(s.inputs, newPort(DirectionInput, PortMain, Undefined, i))
	}
	for i := 0; i < numOutputs; i++ {
		s.outputs = append(s.outputs, newPort(DirectionOutput, PortMain, Undefined, i))
	}
	for i := 0; i < numSubs; i++ {
		s.subs = append(s.subs, newPort(DirectionInput, PortSub, Undefined, i))
	}
	s.state = newStepState()
	return s
}

func (s *Step) ID() StepID        { return s.id }
func (s *Step) Kind() StepKind    { return s.kind }
func (s *Step) Owner() *Graph     { return s.owner }
func (s *Step) InputPorts() []*Port  { return s.inputs }
func (s *Step) SubinputPorts() []*Port { return s.subs }
func (s *Step) OutputPorts() []*Port { return s.outputs }
func (s *Step) Flow() Flow        { return s.flow }
func (s *Step) State() *StepState { return &s.state }

// ConnectTo wires this step's output port src to downstream's input port
// target, updating both sides' opposite lists (spec §4.2).
func (s *Step) ConnectTo(downstream *Step, src, target int) {
	s.outputs[src].addOpposite(downstream.id, target)
	downstream.inputs[target].addOpposite(s.id, src)
}

// ConnectToSub wires this step's output port src to downstream's subinput
// port target.
func (s *Step) ConnectToSub(downstream *Step, src, target int) {
	s.outputs[src].addOpposite(downstream.id, target)
	downstream.subs[target].addOpposite(s.id, src)
}

// activate creates the step's flow via the supplied factory, sizes its
// slot tables from the flow's task counts, and records the transition
// created -> activated -> prepared|preparing.
func (s *Step) activate(makeFlow func(*Step) Flow) {
	s.flow = makeFlow(s)
	s.state.registerSlots(s.flow.NumMainTasks(), s.flow.NumPretasks())
	s.state.transitionActivate(len(s.subs) > 0)
}

func (s *Step) deactivate() error {
	var err error
	if s.flow != nil {
		err = s.flow.Close()
	}
	s.flow = nil
	s.state.primary = StatePrimaryDeactivated
	return err
}

// NotifyProviding implements the `providing` external event (spec
// §4.3): a prepared step transitions to running. Group-exchange
// downstreams ignore it, since their inputs are fully blocking and they
// instead run once `prepare`/`consume` schedules their merge task.
// Reports whether the step transitioned.
func (s *Step) NotifyProviding() bool {
	if s.kind == KindExchangeGroup || s.kind == KindExchangeAggregate {
		return false
	}
	if s.state.primary != StatePrimaryPrepared {
		return false
	}
	s.state.transitionRunning()
	return true
}

// NotifyNoInputs transitions a prepared step with no input ports
// straight to running, without waiting for a `providing` event.
func (s *Step) NotifyNoInputs() bool {
	if len(s.inputs) != 0 || s.state.primary != StatePrimaryPrepared {
		return false
	}
	s.state.transitionRunning()
	return true
}

// NotifyTaskCompleted implements the `task_completed` external event:
// it marks taskID's slot with result, and if that was the last
// outstanding slot of kind, fires the corresponding transition
// (preparing -> prepared for pre-tasks, running -> completing for main
// tasks). Reports whether the step transitioned.
func (s *Step) NotifyTaskCompleted(kind TaskKind, taskID int64, result TaskSlotState) bool {
	if !s.state.completeTask(kind, taskID, result) {
		return false
	}
	switch kind {
	case TaskKindPre:
		s.state.transitionPrepared()
	case TaskKindMain:
		s.state.transitionCompleting()
	}
	return true
}

// NotifyCompletionInstructed implements the `completion_instructed`
// external event's per-step effect: force-complete regardless of
// current state.
func (s *Step) NotifyCompletionInstructed() {
	s.state.forceComplete()
}

// MarkCompleted implements the tail of `propagate_downstream_completing`:
// once a step's downstream completing notice has been emitted, the step
// itself moves from completing to completed.
func (s *Step) MarkCompleted() {
	s.state.transitionCompleted()
}

// RegisterTask records that taskID now occupies slot index of the given
// kind, in the running state. Called when a `prepare`/`consume` internal
// event schedules a task, before it is handed to the scheduler.
func (s *Step) RegisterTask(kind TaskKind, index int, taskID int64) {
	s.state.fillSlot(kind, index, taskID)
}

// NeedsPretasks reports whether this step has subinputs requiring a
// `prepare` pass before it can run.
func (s *Step) NeedsPretasks() bool { return len(s.subs) > 0 }

// Deactivate tears down the step's flow (the `deactivate` internal
// event), exported for callers outside this package (e.g. the
// controller) driving a single step's teardown.
func (s *Step) Deactivate() error { return s.deactivate() }
