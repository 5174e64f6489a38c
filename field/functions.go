package field

import "fmt"

// ScalarFunc evaluates a scalar function over already-resolved arguments.
type ScalarFunc func(args []Value) (Value, error)

// AggregateFunc is an incremental aggregate: pre initializes accumulator
// state from the first contributing value, mid folds a further value into
// existing state, and post converts final state into the aggregate's
// result. This three-phase shape lets the aggregate exchange (spec §4.2)
// apply the function incrementally as records are inserted into a
// partition, rather than buffering the whole group.
type AggregateFunc struct {
	Pre  func(first Value) (state Value, err error)
	Mid  func(state, next Value) (Value, error)
	Post func(state Value) (Value, error)
}

// TableFunc expands a single invocation into zero or more output records,
// e.g. a table-valued unnest/generate_series style function.
type TableFunc func(args []Value) ([]Record, error)

// ScalarFunctionRegistry is a repository of builtin scalar functions,
// mirroring original_source's
// executor/function/scalar_function_repository. Each
// NewScalarFunctionRegistry call builds an independent, empty registry;
// the package keeps no process-wide instance and registers nothing at
// start-up.
type ScalarFunctionRegistry struct {
	funcs map[string]ScalarFunc
}

func NewScalarFunctionRegistry() *ScalarFunctionRegistry {
	return &ScalarFunctionRegistry{funcs: make(map[string]ScalarFunc)}
}

func (r *ScalarFunctionRegistry) Register(name string, fn ScalarFunc) {
	r.funcs[name] = fn
}

func (r *ScalarFunctionRegistry) Lookup(name string) (ScalarFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// AggregateFunctionRegistry is a repository of incremental aggregate
// functions, mirroring
// executor/function/incremental/aggregate_function_repository. Each
// constructor call builds an independent registry (empty, or pre-filled
// by DefaultAggregateFunctions); there is no process-wide instance.
type AggregateFunctionRegistry struct {
	funcs map[string]AggregateFunc
}

func NewAggregateFunctionRegistry() *AggregateFunctionRegistry {
	return &AggregateFunctionRegistry{funcs: make(map[string]AggregateFunc)}
}

func (r *AggregateFunctionRegistry) Register(name string, fn AggregateFunc) {
	r.funcs[name] = fn
}

func (r *AggregateFunctionRegistry) Lookup(name string) (AggregateFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// TableFunctionRegistry is a repository of table-valued functions,
// mirroring executor/function/table_valued_function_repository. Each
// NewTableFunctionRegistry call builds an independent, empty registry;
// there is no process-wide instance.
type TableFunctionRegistry struct {
	funcs map[string]TableFunc
}

func NewTableFunctionRegistry() *TableFunctionRegistry {
	return &TableFunctionRegistry{funcs: make(map[string]TableFunc)}
}

func (r *TableFunctionRegistry) Register(name string, fn TableFunc) {
	r.funcs[name] = fn
}

func (r *TableFunctionRegistry) Lookup(name string) (TableFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// DefaultAggregateFunctions returns the built-in sum/count/min/max
// aggregate functions: count yields an int64, sum folds int64 values only
// (any other kind is an error), and min/max keep whichever value Less
// orders first/last. This is the set the aggregate exchange needs to exercise §4.2's incremental-apply path
// without requiring the (out-of-scope) SQL compiler to supply one.
func DefaultAggregateFunctions() *AggregateFunctionRegistry {
	var r = NewAggregateFunctionRegistry()
	r.Register("count", AggregateFunc{
		Pre:  func(Value) (Value, error) { return Int64(1), nil },
		Mid:  func(state, _ Value) (Value, error) { return Int64(state.Int() + 1), nil },
		Post: func(state Value) (Value, error) { return state, nil },
	})
	r.Register("sum", AggregateFunc{
		Pre: func(first Value) (Value, error) { return first, nil },
		Mid: func(state, next Value) (Value, error) {
			if state.Kind != KindInt64 || next.Kind != KindInt64 {
				return Value{}, fmt.Errorf("sum: unsupported kinds %s/%s", state.Kind, next.Kind)
			}
			return Int64(state.Int() + next.Int()), nil
		},
		Post: func(state Value) (Value, error) { return state, nil },
	})
	r.Register("min", AggregateFunc{
		Pre: func(first Value) (Value, error) { return first, nil },
		Mid: func(state, next Value) (Value, error) {
			if next.Less(state) {
				return next, nil
			}
			return state, nil
		},
		Post: func(state Value) (Value, error) { return state, nil },
	})
	r.Register("max", AggregateFunc{
		Pre: func(first Value) (Value, error) { return first, nil },
		Mid: func(state, next Value) (Value, error) {
			if state.Less(next) {
				return next, nil
			}
			return state, nil
		},
		Post: func(state Value) (Value, error) { return state, nil },
	})
	return r
}
