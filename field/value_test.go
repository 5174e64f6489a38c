package field_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/apd"
	"github.com/stretchr/testify/require"

	"github.com/estuary/sqlflow/field"
)

func TestFloatNaNAndZeroSemantics(t *testing.T) {
	var nan1 = field.Float64(math.NaN())
	var nan2 = field.Float64(math.NaN())
	var posZero = field.Float64(0.0)
	var negZero = field.Float64(math.Copysign(0, -1))
	var one = field.Float64(1.0)

	require.True(t, nan1.Equal(nan2), "NaN should equal NaN")
	require.True(t, posZero.Equal(negZero), "+0.0 should equal -0.0")

	require.True(t, one.Less(nan1), "finite value is less than NaN")
	require.False(t, nan1.Less(one), "NaN is not less than a finite value")
	require.False(t, nan1.Less(nan2), "NaN is not less than NaN")
}

func TestDecimalComparisonIsScaleAware(t *testing.T) {
	var a = apd.New(100, -2) // 1.00
	var b = apd.New(1, 0)    // 1
	require.True(t, field.Decimal(a).Equal(field.Decimal(b)))
}

func TestTimePointOrdersSecondsThenNanos(t *testing.T) {
	var early = field.TimePointValue(field.TimePoint{Seconds: 10, Nanos: 999})
	var late = field.TimePointValue(field.TimePoint{Seconds: 11, Nanos: 0})
	require.True(t, early.Less(late))
}

func TestLobRefNeverValueEqual(t *testing.T) {
	var ref = field.LobRef{ProviderID: 1, ObjectID: 2}
	require.False(t, field.BlobRef(ref).Equal(field.BlobRef(ref)))
}

func TestKeyComparatorFieldOrder(t *testing.T) {
	var cmp = field.NewKeyComparator([]int{0, 1})
	var a = field.Record{field.Int64(1), field.Int64(2)}
	var b = field.Record{field.Int64(1), field.Int64(3)}
	require.Equal(t, -1, cmp.Compare(a, b))
	require.Equal(t, 1, cmp.Compare(b, a))
	require.Equal(t, 0, cmp.Compare(a, a))
}

func TestHashRecordStableForEqualKeys(t *testing.T) {
	var a = field.Record{field.Int64(1), field.Character("x")}
	var b = field.Record{field.Int64(1), field.Character("x")}
	require.Equal(t, field.HashRecord(a, []int{0, 1}), field.HashRecord(b, []int{0, 1}))
}
