package service

import (
	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/session"
)

// Prepare registers a compiled plan under sessionID, returning a handle
// the host uses for resolve_and_execute. Compiling sql into plan is the
// (out-of-scope) SQL parser/optimizer's job (spec §1); Prepare only ever
// stores the result.
func (b *Bridge) Prepare(sessionID session.SessionID, sql string, placeholders map[string]field.Kind, plan *Plan) (session.StatementHandle, errs.ErrorInfo) {
	var sess, sessErr = b.session(sessionID)
	if !sessErr.IsZero() {
		return 0, sessErr
	}

	var stmt = session.NewPreparedStatement(sql, plan).WithPlaceholders(placeholders)
	var handle = session.StatementHandle(b.nextStmt.Add(1))
	if !sess.Statements.Put(handle, stmt) {
		return 0, errs.New(errs.CodeTargetAlreadyExists, "statement handle %d already in use", handle)
	}
	return handle, errs.ErrorInfo{}
}

// bindParameters validates params against stmt's expected placeholder
// kinds (spec §6 "Parameter set. Named placeholders assigned one typed
// value each ... Null assignment is a first-class operation").
func bindParameters(stmt *session.PreparedStatement, params map[string]field.Value) errs.ErrorInfo {
	for name, wantKind := range stmt.Placeholders {
		var v, ok = params[name]
		if !ok {
			return errs.New(errs.CodeConstraintViolation, "missing parameter %q", name)
		}
		if v.Kind != wantKind {
			return errs.New(errs.CodeConstraintViolation, "parameter %q: expected kind %s, got %s", name, wantKind, v.Kind)
		}
	}
	return errs.ErrorInfo{}
}
