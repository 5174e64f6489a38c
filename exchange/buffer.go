package exchange

import (
	"sync"

	"github.com/estuary/sqlflow/field"
)

// Sink is the write-side half of an exchange: upstream processes' writers
// route records into per-downstream-partition buffers (spec §4.2
// "Exchange semantics"). Safe for concurrent Write calls from multiple
// upstream writer goroutines.
type Sink struct {
	mu      sync.Mutex
	buffers [][]field.Record
}

// NewSink allocates a sink with the given number of downstream partitions.
func NewSink(numPartitions int) *Sink {
	return &Sink{buffers: make([][]field.Record, numPartitions)}
}

// Write appends r to partition's buffer.
func (s *Sink) Write(partition int, r field.Record) {
	s.mu.Lock()
	s.buffers[partition] = append(s.buffers[partition], r)
	s.mu.Unlock()
}

// Drain takes ownership of every partition buffer, resetting the sink to
// empty, and returns what it held. Called by Transfer at the sink/source
// handoff boundary.
func (s *Sink) Drain() [][]field.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out = s.buffers
	s.buffers = make([][]field.Record, len(s.buffers))
	return out
}

// Source is the read-side half of an exchange: downstream processes pull
// records from per-partition receive queues.
type Source struct {
	mu         sync.Mutex
	partitions [][]field.Record
}

// NewSource allocates a source with the given number of partitions.
func NewSource(numPartitions int) *Source {
	return &Source{partitions: make([][]field.Record, numPartitions)}
}

// Receive appends records onto partition's receive queue. Called by
// Transfer; a source may receive records from multiple transfers across
// its lifetime (one per upstream sink flush).
func (s *Source) Receive(partition int, records []field.Record) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	s.partitions[partition] = append(s.partitions[partition], records...)
	s.mu.Unlock()
}

// Read drains and returns all currently-queued records for partition.
func (s *Source) Read(partition int) []field.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out = s.partitions[partition]
	s.partitions[partition] = nil
	return out
}

// NumPartitions reports the source's partition count.
func (s *Source) NumPartitions() int { return len(s.partitions) }

// Transfer pushes each of sink's per-partition buffers into the
// correspondingly-indexed partition of source, per spec §4.2's
// sink-to-source handoff. sink and source must share the same partition
// count.
func Transfer(sink *Sink, source *Source) {
	for partition, records := range sink.Drain() {
		source.Receive(partition, records)
	}
}
