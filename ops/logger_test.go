package ops_test

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/estuary/sqlflow/ops"
	"github.com/estuary/sqlflow/ops/opstest"
)

func TestWithFieldsMergesAndPreservesBase(t *testing.T) {
	var base = opstest.New(log.DebugLevel)
	var logger = ops.WithFields(base, log.Fields{"requestID": "r-1"})

	require.NoError(t, logger.Log(log.InfoLevel, log.Fields{"rows": 3}, "inserted rows"))
	require.NoError(t, logger.Log(log.InfoLevel, nil, "no extra fields"))

	var events = base.Events()
	require.Len(t, events, 2)
	require.Equal(t, "r-1", events[0].Fields["requestID"])
	require.EqualValues(t, 3, events[0].Fields["rows"])
	require.Equal(t, "r-1", events[1].Fields["requestID"])
}

func TestWithFieldsSkipsCopyBelowLevel(t *testing.T) {
	var base = opstest.New(log.WarnLevel)
	var logger = ops.WithFields(base, log.Fields{"requestID": "r-1"})

	require.NoError(t, logger.Log(log.DebugLevel, log.Fields{"rows": 3}, "filtered out"))
	require.Empty(t, base.Events())
}
