// Package exchange implements the forward, group, aggregate, and
// broadcast exchange flows of spec §4.2: redistribution of records
// between process steps via per-partition sinks and sources, hash
// partitioning, and a priority-queue merge reader for sorted group reads.
package exchange

import "github.com/estuary/sqlflow/field"

// Partitioner computes the destination partition of a record from its key
// fields: hash(key_record) mod partitions, using the compound hash over
// key fields defined by the field-type hash traits (spec §4.2
// "Partitioning").
type Partitioner struct {
	KeyIndexes    []int
	NumPartitions int
}

// NewPartitioner builds a partitioner over the given key-index vector.
func NewPartitioner(keyIndexes []int, numPartitions int) Partitioner {
	return Partitioner{KeyIndexes: keyIndexes, NumPartitions: numPartitions}
}

// Partition returns the destination partition index for r.
func (p Partitioner) Partition(r field.Record) int {
	if p.NumPartitions <= 1 {
		return 0
	}
	return int(field.HashRecord(r, p.KeyIndexes) % uint64(p.NumPartitions))
}
