package errs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/sqlflow/errs"
)

func TestFirstErrorWins(t *testing.T) {
	var first = errs.New(errs.CodeUniqueConstraintViolation, "duplicate key %d", 1)
	var second = errs.New(errs.CodeIOError, "disk full")

	require.Equal(t, first, errs.First(first, second))
	require.Equal(t, second, errs.First(errs.ErrorInfo{}, second))
}

func TestCodeRecoverable(t *testing.T) {
	require.True(t, errs.CodeUniqueConstraintViolation.Recoverable())
	require.False(t, errs.CodeSerializationFailure.Recoverable())
	require.False(t, errs.CodeInactiveTransaction.Recoverable())
}

func TestLogicFailPanics(t *testing.T) {
	require.Panics(t, func() { errs.Fail("impossible branch: %d", 7) })
}
