package dag

// FlowRepository is a per-graph array of flows indexed by step identity.
// It is writable only during activation and read-only thereafter (spec
// §3 "Flow repository"); Step already caches its own flow pointer, so
// FlowRepository exists to let the controller iterate every live flow in
// a graph without walking steps, e.g. to run `deactivate` over all of
// them at job teardown.
type FlowRepository struct {
	graph *Graph
	flows []Flow
}

// NewFlowRepository builds a repository sized to g's current step count.
// Growing g afterward invalidates the repository; callers build the
// graph fully before constructing one.
func NewFlowRepository(g *Graph) *FlowRepository {
	return &FlowRepository{graph: g, flows: make([]Flow, g.Len())}
}

// Set records step's flow. Valid only while the step is being activated.
func (r *FlowRepository) Set(id StepID, f Flow) {
	r.flows[id] = f
}

// Activate runs the step's `activate` internal event, then records the
// resulting flow in the repository under the step's id.
func (r *FlowRepository) Activate(step *Step, makeFlow func(*Step) Flow) {
	step.activate(makeFlow)
	r.Set(step.id, step.flow)
}

// Get returns the flow recorded for id, or nil if the step has not been
// activated (or has since been deactivated).
func (r *FlowRepository) Get(id StepID) Flow {
	if int(id) < 0 || int(id) >= len(r.flows) {
		return nil
	}
	return r.flows[id]
}

// Clear deactivates every step in the owning graph with a live flow,
// closing each flow and clearing its repository slot.
func (r *FlowRepository) Clear() error {
	for i, f := range r.flows {
		if f == nil {
			continue
		}
		if err := r.graph.Lookup(StepID(i)).deactivate(); err != nil {
			return err
		}
		r.flows[i] = nil
	}
	return nil
}
