package exchange

import (
	"context"
	"testing"

	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/scheduler"
	"github.com/stretchr/testify/require"
)

func rec(key int64, value int64) field.Record {
	return field.Record{field.Int64(key), field.Int64(value)}
}

func TestPartitionerIsStableForEqualKeys(t *testing.T) {
	var p = NewPartitioner([]int{0}, 4)
	var a = p.Partition(rec(7, 1))
	var b = p.Partition(rec(7, 2))
	require.Equal(t, a, b)
	require.GreaterOrEqual(t, a, 0)
	require.Less(t, a, 4)
}

func TestSinkSourceTransfer(t *testing.T) {
	var sink = NewSink(2)
	sink.Write(0, rec(1, 10))
	sink.Write(1, rec(2, 20))

	var source = NewSource(2)
	Transfer(sink, source)

	require.Equal(t, []field.Record{rec(1, 10)}, source.Read(0))
	require.Equal(t, []field.Record{rec(2, 20)}, source.Read(1))
	// A second read drains nothing further.
	require.Nil(t, source.Read(0))
}

func TestForwardFlowRoundTrips(t *testing.T) {
	var flow = NewForwardFlow(1)
	flow.Sink.Write(0, rec(1, 10))
	flow.Sink.Write(0, rec(2, 20))

	var tasks = flow.CreateTasks(nil)
	require.Len(t, tasks, 1)
	require.Equal(t, scheduler.ResultComplete, runTask(t, tasks[0]))

	require.ElementsMatch(t, []field.Record{rec(1, 10), rec(2, 20)}, flow.Source.Read(0))
}

func TestBroadcastFlowCopiesToEveryDownstreamPartition(t *testing.T) {
	var flow = NewBroadcastFlow(1, 3)
	flow.Sink.Write(0, rec(1, 10))

	runTask(t, flow.CreateTasks(nil)[0])

	for p := 0; p < 3; p++ {
		require.Equal(t, []field.Record{rec(1, 10)}, flow.Source.Read(p))
	}
}

func TestGroupFlowMergesSortedByKey(t *testing.T) {
	var flow = NewGroupFlow([]int{0}, 2)
	flow.Sink.Write(0, rec(3, 1))
	flow.Sink.Write(0, rec(1, 2))
	flow.Sink.Write(1, rec(2, 3))
	flow.Sink.Write(1, rec(1, 4))

	runTask(t, flow.CreateTasks(nil)[0])

	var out = flow.Source.Read(0)
	require.Len(t, out, 4)
	for i := 1; i < len(out); i++ {
		require.LessOrEqual(t, out[i-1][0].Int(), out[i][0].Int())
	}
}

func TestAggregateFlowSumsByKey(t *testing.T) {
	var registry = field.DefaultAggregateFunctions()
	var sum, ok = registry.Lookup("sum")
	require.True(t, ok)

	var flow = NewAggregateFlow([]int{0}, 1, sum, 2)
	flow.Sink.Write(0, rec(1, 10))
	flow.Sink.Write(0, rec(2, 100))
	flow.Sink.Write(1, rec(1, 5))

	runTask(t, flow.CreateTasks(nil)[0])

	var out = flow.Source.Read(0)
	require.Len(t, out, 2)
	var byKey = map[int64]int64{}
	for _, r := range out {
		byKey[r[0].Int()] = r[1].Int()
	}
	require.Equal(t, int64(15), byKey[1])
	require.Equal(t, int64(100), byKey[2])
}

func TestReaderStateMachine(t *testing.T) {
	var cmp = field.NewKeyComparator([]int{0})
	var reader = NewReader(cmp, [][]field.Record{
		{rec(1, 10), rec(1, 11)},
		{rec(2, 20)},
	})

	require.Equal(t, StateReaderInit, reader.State())
	require.True(t, reader.NextGroup())
	require.Equal(t, StateBeforeMember, reader.State())

	var count int
	for {
		var _, ok = reader.NextMember()
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 2, count)
	require.Equal(t, StateAfterGroup, reader.State())

	require.True(t, reader.NextGroup())
	_, ok := reader.NextMember()
	require.True(t, ok)
	_, ok = reader.NextMember()
	require.False(t, ok)

	require.False(t, reader.NextGroup())
	require.Equal(t, StateEOF, reader.State())
}

func runTask(t *testing.T, task scheduler.Task) scheduler.Result {
	t.Helper()
	return task.Run(context.Background(), 0)
}
