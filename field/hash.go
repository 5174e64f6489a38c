package field

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/apd"
	"github.com/minio/highwayhash"
)

// hashKey is the fixed 32-byte key highwayhash requires. It need not be
// secret: the hash is used for partitioning and grouping, never for
// authentication.
var hashKey = [32]byte{
	0x6a, 0x6f, 0x67, 0x6f, 0x2d, 0x66, 0x6c, 0x6f,
	0x77, 0x2d, 0x68, 0x61, 0x73, 0x68, 0x2d, 0x6b,
	0x65, 0x79, 0x2d, 0x76, 0x31, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// HashRecord computes the compound hash over the key fields of r named by
// keyIndexes, using the compound-hash-with-fixed-fold rule of spec §4.7:
// per-field hash traits composed via a single highwayhash accumulation so
// that HashRecord(a) == HashRecord(b) whenever a's key fields Equal b's.
func HashRecord(r Record, keyIndexes []int) uint64 {
	var h, err = highwayhash.New64(hashKey[:])
	if err != nil {
		// hashKey is a compile-time constant of the correct length;
		// this can only fail if that invariant is broken.
		panic(err)
	}
	var buf [8]byte
	for _, idx := range keyIndexes {
		writeValueHash(h, buf[:], r[idx])
	}
	return h.Sum64()
}

func writeValueHash(h hashWriter, buf []byte, v Value) {
	if v.Null {
		h.Write([]byte{0xff})
		return
	}
	switch v.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		binary.LittleEndian.PutUint64(buf, uint64(v.i))
		h.Write(buf)
	case KindFloat32:
		writeFloatHash(h, buf, float64(v.f32))
	case KindFloat64:
		writeFloatHash(h, buf, v.f64)
	case KindDecimal:
		// Hash the reduced form (trailing zeros stripped, any zero as
		// plain 0) so that differently-scaled representations of the same
		// decimal value collide, matching Equal's scale-aware comparison.
		var reduced apd.Decimal
		reduced.Reduce(v.dec)
		if reduced.Sign() == 0 {
			reduced.SetInt64(0)
		}
		h.Write([]byte(reduced.Text('G')))
	case KindCharacter:
		h.Write([]byte(v.str))
	case KindOctet:
		h.Write(v.oct)
	case KindDate:
		binary.LittleEndian.PutUint32(buf, uint32(v.dt.Year))
		h.Write(buf[:4])
		h.Write([]byte{v.dt.Month, v.dt.Day})
	case KindTimeOfDay:
		binary.LittleEndian.PutUint64(buf, uint64(v.tod.Nanos))
		h.Write(buf)
	case KindTimePoint:
		binary.LittleEndian.PutUint64(buf, uint64(v.tp.Seconds))
		h.Write(buf)
		binary.LittleEndian.PutUint32(buf, uint32(v.tp.Nanos))
		h.Write(buf[:4])
	case KindBlobRef, KindClobRef:
		binary.LittleEndian.PutUint64(buf, uint64(v.lob.ProviderID))
		h.Write(buf)
		binary.LittleEndian.PutUint64(buf, uint64(v.lob.ObjectID))
		h.Write(buf)
	default:
		h.Write([]byte{0x00})
	}
}

// writeFloatHash normalizes +0.0/-0.0 and all NaN bit patterns before
// hashing, so Equal floats always hash equal.
func writeFloatHash(h hashWriter, buf []byte, f float64) {
	if f == 0 {
		f = 0
	}
	if math.IsNaN(f) {
		f = math.NaN()
	}
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	h.Write(buf)
}

type hashWriter interface {
	Write(p []byte) (int, error)
}
