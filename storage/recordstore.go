package storage

import (
	"fmt"

	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
)

// defaultPageRecords bounds how many records one page of a RecordStore
// holds before a fresh page is appended; this stands in for the
// original's paged_memory_resource allocation unit (grounded on
// `src/data/record_store.h`).
const defaultPageRecords = 256

// maxStoreRecords is the varlen-exhaustion ceiling this rewrite enforces
// in place of the original's arena-exhaustion abort: past this many
// records, Append fails with a recoverable CodeIOError rather than
// growing without bound (see DESIGN.md Open Question decision on
// record_store varlen exhaustion).
const maxStoreRecords = 1 << 20

// RecordStore is an auto-expanding, append-only FIFO container of
// records. It has no iterator of its own; the caller keeps whatever
// index it needs to later address a stored record (grounded on
// `src/data/record_store.h`'s "No iterator is provided" contract). Each
// page is a plain Go slice rather than a paged arena allocator, since
// Go's GC already owns the lifetime of each field.Value and the
// original's paging existed only to batch C++ allocations.
type RecordStore struct {
	pages [][]field.Record
	count int
}

// NewRecordStore builds an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append copies r into the store and returns the (page, offset)
// reference needed to retrieve it later. It fails with a recoverable
// CodeIOError once the store has reached its record ceiling, standing
// in for the original's varlen-buffer exhaustion.
func (s *RecordStore) Append(r field.Record) (page int, offset int, err errs.ErrorInfo) {
	if s.count >= maxStoreRecords {
		return 0, 0, errs.New(errs.CodeIOError, "record store exhausted at %d records", maxStoreRecords)
	}
	if len(s.pages) == 0 || len(s.pages[len(s.pages)-1]) >= defaultPageRecords {
		s.pages = append(s.pages, make([]field.Record, 0, defaultPageRecords))
	}
	var copied = make(field.Record, len(r))
	copy(copied, r)

	var p = len(s.pages) - 1
	s.pages[p] = append(s.pages[p], copied)
	s.count++
	return p, len(s.pages[p]) - 1, errs.ErrorInfo{}
}

// At retrieves the record stored at (page, offset), as returned by a
// prior Append.
func (s *RecordStore) At(page, offset int) (field.Record, error) {
	if page < 0 || page >= len(s.pages) || offset < 0 || offset >= len(s.pages[page]) {
		return nil, fmt.Errorf("record store: reference (%d, %d) out of range", page, offset)
	}
	return s.pages[page][offset], nil
}

// Count returns the number of records added to this store.
func (s *RecordStore) Count() int { return s.count }

// Empty reports whether the store holds no records.
func (s *RecordStore) Empty() bool { return s.count == 0 }
