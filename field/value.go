package field

import (
	"math"

	"github.com/cockroachdb/apd"
)

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int32
	Month uint8
	Day   uint8
}

// TimeOfDay is a time since midnight, optionally carrying a UTC offset.
type TimeOfDay struct {
	Nanos         int64 // nanoseconds since midnight
	OffsetMinutes int32 // valid only if HasOffset
	HasOffset     bool
}

// TimePoint is seconds (and subsecond nanos) since the Unix epoch,
// optionally carrying a UTC offset. Comparison is seconds-first,
// subseconds-second, per spec §4.7.
type TimePoint struct {
	Seconds       int64
	Nanos         int32
	OffsetMinutes int32
	HasOffset     bool
}

// LobRef identifies an out-of-line BLOB/CLOB by (provider, object) id pair.
// LobRefs are not value-comparable; Less only exists to support
// test-reproducible sort order, per spec §4.7.
type LobRef struct {
	ProviderID int64
	ObjectID   int64
}

// Value is a single typed field. A Value with Null set to true carries no
// payload regardless of Kind, matching "null assignment is a first-class
// operation" (spec §6).
type Value struct {
	Kind   Kind
	Option Option
	Null   bool

	i   int64
	f32 float32
	f64 float64
	dec *apd.Decimal
	str string
	oct []byte
	dt  Date
	tod TimeOfDay
	tp  TimePoint
	lob LobRef
}

func NullValue(kind Kind, opt Option) Value { return Value{Kind: kind, Option: opt, Null: true} }

func Int64(v int64) Value       { return Value{Kind: KindInt64, i: v} }
func Int32(v int32) Value       { return Value{Kind: KindInt32, i: int64(v)} }
func Int16(v int16) Value       { return Value{Kind: KindInt16, i: int64(v)} }
func Int8(v int8) Value         { return Value{Kind: KindInt8, i: int64(v)} }
func Float32(v float32) Value   { return Value{Kind: KindFloat32, f32: v} }
func Float64(v float64) Value   { return Value{Kind: KindFloat64, f64: v} }
func Decimal(v *apd.Decimal) Value {
	return Value{Kind: KindDecimal, dec: v}
}
func Character(v string) Value      { return Value{Kind: KindCharacter, str: v} }
func Octet(v []byte) Value          { return Value{Kind: KindOctet, oct: v} }
func DateValue(v Date) Value        { return Value{Kind: KindDate, dt: v} }
func TimeOfDayValue(v TimeOfDay) Value { return Value{Kind: KindTimeOfDay, tod: v} }
func TimePointValue(v TimePoint) Value { return Value{Kind: KindTimePoint, tp: v} }
func BlobRef(v LobRef) Value        { return Value{Kind: KindBlobRef, lob: v} }
func ClobRef(v LobRef) Value        { return Value{Kind: KindClobRef, lob: v} }

func (v Value) Int() int64           { return v.i }
func (v Value) Float32() float32     { return v.f32 }
func (v Value) Float64() float64     { return v.f64 }
func (v Value) DecimalValue() *apd.Decimal { return v.dec }
func (v Value) String() string       { return v.str }
func (v Value) Bytes() []byte        { return v.oct }
func (v Value) Date() Date           { return v.dt }
func (v Value) TimeOfDay() TimeOfDay { return v.tod }
func (v Value) TimePoint() TimePoint { return v.tp }
func (v Value) LobRef() LobRef       { return v.lob }

// Equal implements field equality per spec §4.7: NaN-NaN and +0.0/-0.0 are
// equal for floats; all other kinds use natural value equality. Nulls are
// equal to each other and to nothing else. LobRefs are never
// value-comparable and are always unequal, even to themselves, per spec
// ("BLOB/CLOB references are not value-comparable").
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Null || o.Null {
		return v.Null && o.Null
	}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i == o.i
	case KindFloat32:
		return equalFloat64(float64(v.f32), float64(o.f32))
	case KindFloat64:
		return equalFloat64(v.f64, o.f64)
	case KindDecimal:
		cmp, err := apd.BaseContext.Cmp(new(apd.Decimal), v.dec, o.dec)
		return err == nil && cmp == 0
	case KindCharacter:
		return v.str == o.str
	case KindOctet:
		return string(v.oct) == string(o.oct)
	case KindDate:
		return v.dt == o.dt
	case KindTimeOfDay:
		return v.tod.Nanos == o.tod.Nanos
	case KindTimePoint:
		return v.tp.Seconds == o.tp.Seconds && v.tp.Nanos == o.tp.Nanos
	case KindBlobRef, KindClobRef:
		return false
	default:
		return true
	}
}

// Less implements the total order used by the key comparator (spec §4.7).
// NaN sorts above every other float value, including itself: Less(x, NaN)
// is true for any non-NaN x, and Less(NaN, NaN) is false.
func (v Value) Less(o Value) bool {
	if v.Null != o.Null {
		return v.Null // nulls sort first
	}
	if v.Null {
		return false
	}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return v.i < o.i
	case KindFloat32:
		return lessFloat64(float64(v.f32), float64(o.f32))
	case KindFloat64:
		return lessFloat64(v.f64, o.f64)
	case KindDecimal:
		cmp, err := apd.BaseContext.Cmp(new(apd.Decimal), v.dec, o.dec)
		return err == nil && cmp < 0
	case KindCharacter:
		return v.str < o.str
	case KindOctet:
		return string(v.oct) < string(o.oct)
	case KindDate:
		if v.dt.Year != o.dt.Year {
			return v.dt.Year < o.dt.Year
		}
		if v.dt.Month != o.dt.Month {
			return v.dt.Month < o.dt.Month
		}
		return v.dt.Day < o.dt.Day
	case KindTimeOfDay:
		return v.tod.Nanos < o.tod.Nanos
	case KindTimePoint:
		if v.tp.Seconds != o.tp.Seconds {
			return v.tp.Seconds < o.tp.Seconds
		}
		return v.tp.Nanos < o.tp.Nanos
	case KindBlobRef, KindClobRef:
		if v.lob.ProviderID != o.lob.ProviderID {
			return v.lob.ProviderID < o.lob.ProviderID
		}
		return v.lob.ObjectID < o.lob.ObjectID
	default:
		return false
	}
}

func equalFloat64(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	if a == 0 && b == 0 {
		return true // +0.0 == -0.0
	}
	return a == b
}

func lessFloat64(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return false
	case aNaN:
		return false // NaN sorts above everything, including non-NaN b
	case bNaN:
		return true // any non-NaN a is less than NaN
	default:
		return a < b
	}
}
