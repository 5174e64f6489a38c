// Package field implements the typed value system the dataflow core
// compares, hashes, and orders records by: integer widths, binary floats,
// scale-aware decimal, character/octet (fixed or variable length), date,
// time-of-day, time-point, BLOB/CLOB references, and an untyped/unknown
// variant. See spec §4.7.
package field

// Kind identifies the runtime representation of a Value. It is a closed
// set mirrored from the compiled plan's field-type descriptors.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindCharacter
	KindOctet
	KindDate
	KindTimeOfDay
	KindTimePoint
	KindBlobRef
	KindClobRef
)

func (k Kind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindDecimal:
		return "decimal"
	case KindCharacter:
		return "character"
	case KindOctet:
		return "octet"
	case KindDate:
		return "date"
	case KindTimeOfDay:
		return "time_of_day"
	case KindTimePoint:
		return "time_point"
	case KindBlobRef:
		return "blob_reference"
	case KindClobRef:
		return "clob_reference"
	default:
		return "unknown"
	}
}

// Option carries the precision/scale or length that goes with a Kind,
// matching the decimal(precision, scale) and char(n)/varchar(n) variants
// named in spec §4.7. A zero Option means "no option carried" (e.g. for
// kinds where it doesn't apply).
type Option struct {
	Precision int32 // decimal
	Scale     int32 // decimal
	Length    int32 // character / octet
	Variable  bool  // character / octet: variable- vs fixed-length
	HasOffset bool  // time_of_day / time_point: carries a UTC offset
}
