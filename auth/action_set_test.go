package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/errs"
)

func TestControlImpliesEveryAction(t *testing.T) {
	var s auth.Set
	s.Add(auth.ActionControl)
	require.True(t, s.Allowed(auth.ActionSelect))
	require.True(t, s.Allowed(auth.ActionInsert))
	require.True(t, s.Allowed(auth.ActionDelete))

	s.Remove(auth.ActionSelect)
	require.True(t, s.Allowed(auth.ActionSelect), "removing an individual action is a no-op while control is held")
}

func TestAddActionsUnionEquivalence(t *testing.T) {
	var u1 = auth.NewAuthorizedUsers()
	u1.AddUserActions("alice", auth.NewSet(auth.ActionSelect))
	u1.AddUserActions("alice", auth.NewSet(auth.ActionInsert))

	var u2 = auth.NewAuthorizedUsers()
	u2.AddUserActions("alice", auth.NewSet(auth.ActionSelect, auth.ActionInsert))

	require.Equal(t, u1.FindUserActions("alice"), u2.FindUserActions("alice"))
}

func TestRemoveLastActionRemovesUser(t *testing.T) {
	var u = auth.NewAuthorizedUsers()
	u.AddUserActions("bob", auth.NewSet(auth.ActionSelect))
	require.Equal(t, 1, u.UserCount())

	u.RemoveUserAction("bob", auth.ActionSelect)
	require.Equal(t, 0, u.UserCount())
	require.True(t, u.FindUserActions("bob").Empty())
}

func TestAddEmptyActionsIsNoOp(t *testing.T) {
	var u = auth.NewAuthorizedUsers()
	u.AddUserActions("carol", auth.Set(0))
	require.Equal(t, 0, u.UserCount())
}

func TestCheckDDLRejectsRTX(t *testing.T) {
	var e = auth.CheckDDL(auth.ModeRTX, false, false)
	require.Equal(t, errs.CodeWriteByRTX, e.Code)
}

func TestCheckDDLRejectsLTXWithoutWritePreserve(t *testing.T) {
	var e = auth.CheckDDL(auth.ModeLTX, false, false)
	require.Equal(t, errs.CodeLTXWriteWithoutWritePreserve, e.Code)
}

func TestCheckDDLRejectsNonEmptyTable(t *testing.T) {
	var e = auth.CheckDDL(auth.ModeLTX, true, true)
	require.Equal(t, errs.CodeUnsupportedRuntimeFeature, e.Code)
}

func TestCheckDDLAllowsCleanLTX(t *testing.T) {
	var e = auth.CheckDDL(auth.ModeLTX, true, false)
	require.True(t, e.IsZero())
}
