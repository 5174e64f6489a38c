package service

import (
	"github.com/estuary/sqlflow/controller"
	"github.com/estuary/sqlflow/dag"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/storage"
)

// Plan is the compiled form a prepared statement carries in its opaque
// session.PreparedStatement.Plan slot. Compiling SQL into a Plan is the
// (out-of-scope) job of the SQL parser/optimizer (spec §1); the bridge
// only ever consumes one that has already been built, by instantiating
// its Graph and driving it with the controller.
type Plan struct {
	Graph *dag.Graph

	// BindFlows closes over a bound parameter set and the execution's
	// result channel, returning the FlowFactory the controller should
	// use for one execution of Graph. Separated from Graph (which is
	// reusable across executions) since each execution needs its own
	// per-step flow state and output destination.
	BindFlows func(params map[string]field.Value, results chan<- field.Record) controller.FlowFactory

	// ResultKinds describes the schema of records the execution writes
	// to its result channel, for callers that need to decode them.
	ResultKinds []field.Kind

	// DDLTable is non-empty when this statement creates, alters, or
	// drops a table's definition, naming the table so ResolveAndExecute
	// can apply the DDL gating rules of spec §4.8 (txn.Context.CheckDDL)
	// before the graph runs at all. Empty for a DML/query statement.
	DDLTable string
	// DDLDatabase and DDLSchema qualify DDLTable for the catalog mirror.
	DDLDatabase string
	DDLSchema   string
	// DDLDescriptor is the table's new descriptor for a create/alter
	// statement, written to the catalog mirror once the graph completes
	// without error. Nil for a drop, which instead removes DDLTable from
	// the mirror.
	DDLDescriptor *storage.TableDescriptor
}
