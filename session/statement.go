package session

import (
	"sync/atomic"

	"github.com/estuary/sqlflow/field"
)

// StatementHandle identifies one prepared statement within a session.
type StatementHandle int64

// PreparedStatement is a reference-counted compiled statement, shared
// across every in-flight request using it (spec §4.5, §5 "Prepared
// statements are shared by the session's statement store and any
// in-flight request using them").
type PreparedStatement struct {
	SQL  string
	Plan any // the opaque compiled-plan IR; out of this core's scope

	// Placeholders records the expected kind of each named parameter, so
	// a later resolve-and-execute can validate a parameter set before
	// binding it into the plan (spec §6 "parameter set").
	Placeholders map[string]field.Kind

	refs atomic.Int64
}

// NewPreparedStatement builds a statement with one implicit reference
// held by the statement store itself.
func NewPreparedStatement(sql string, plan any) *PreparedStatement {
	var p = &PreparedStatement{SQL: sql, Plan: plan}
	p.refs.Store(1)
	return p
}

// WithPlaceholders attaches the expected parameter kinds to p and
// returns p, for chaining onto NewPreparedStatement.
func (p *PreparedStatement) WithPlaceholders(placeholders map[string]field.Kind) *PreparedStatement {
	p.Placeholders = placeholders
	return p
}

// Acquire takes a shared reference, used by an in-flight request so a
// concurrent Close of the statement doesn't invalidate it mid-query.
func (p *PreparedStatement) Acquire() { p.refs.Add(1) }

// Release drops a shared reference, reporting whether it was the last
// one (the caller is then responsible for any final teardown).
func (p *PreparedStatement) Release() bool {
	return p.refs.Add(-1) == 0
}

// StatementStore is a session's keyed store of prepared statements
// (spec §4.5). It is safe for concurrent lookup/put/remove, but dispose
// must not race with those.
type StatementStore struct {
	sessionID int64
	registry  *Registry
	m         *shardedMap[StatementHandle, *PreparedStatement]
}

func newStatementStore(sessionID int64, registry *Registry) *StatementStore {
	return &StatementStore{sessionID: sessionID, registry: registry, m: newShardedMap[StatementHandle, *PreparedStatement]()}
}

// Lookup returns the statement registered under handle, if any.
func (s *StatementStore) Lookup(handle StatementHandle) (*PreparedStatement, bool) {
	return s.m.lookup(handle)
}

// Put registers a newly prepared statement, failing if handle is
// already in use.
func (s *StatementStore) Put(handle StatementHandle, stmt *PreparedStatement) bool {
	return s.m.put(handle, stmt)
}

// Remove releases the store's reference to handle. The statement
// object itself survives until every in-flight Acquire is Released.
func (s *StatementStore) Remove(handle StatementHandle) bool {
	var stmt, ok = s.m.lookup(handle)
	if !ok {
		return false
	}
	s.m.remove(handle)
	stmt.Release()
	return true
}

// Size reports the number of statements currently registered.
func (s *StatementStore) Size() int { return s.m.size() }

// Dispose clears the store and deregisters the owning session from the
// global directory in one logical step (spec §4.5). Called exactly
// once, never concurrently with Lookup/Put/Remove.
func (s *StatementStore) Dispose() {
	s.m.each(func(_ StatementHandle, stmt *PreparedStatement) { stmt.Release() })
	s.m.clear()
	if s.registry != nil {
		s.registry.removeStatementStore(s.sessionID)
	}
}
