package field

// Record is an ordered tuple of typed fields, as produced by a dataflow
// step and carried between ports.
type Record []Value

// KeyComparator compares two records field-by-field over a fixed set of
// key-field indices, in declared order, returning on the first non-zero
// comparison — the comparator used by group/aggregate exchanges (spec
// §4.2) and by the priority-queue merge reader (spec §4.2).
type KeyComparator struct {
	KeyIndexes []int
}

// NewKeyComparator builds a comparator over the given key-index vector.
func NewKeyComparator(keyIndexes []int) KeyComparator {
	return KeyComparator{KeyIndexes: keyIndexes}
}

// Compare returns -1, 0, or 1 as a's key is less than, equal to, or
// greater than b's key.
func (c KeyComparator) Compare(a, b Record) int {
	for _, idx := range c.KeyIndexes {
		var av, bv = a[idx], b[idx]
		if av.Equal(bv) {
			continue
		}
		if av.Less(bv) {
			return -1
		}
		return 1
	}
	return 0
}

// Equal reports whether a and b carry identical key fields.
func (c KeyComparator) Equal(a, b Record) bool {
	return c.Compare(a, b) == 0
}
