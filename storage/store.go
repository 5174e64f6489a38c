package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/estuary/sqlflow/errs"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/txn"
)

// Store is the opaque key-value engine façade the core transacts
// against (spec §1 treats the KV engine itself as out of scope; this is
// only the surface the core drives it through): point read, scan,
// write, commit, and abort, all scoped to one storage id and one
// transaction.
type Store interface {
	Get(ctx context.Context, storageID int64, key field.Record) (field.Record, error)
	Put(ctx context.Context, storageID int64, key, value field.Record) error
	Scan(ctx context.Context, storageID int64, lo, hi field.Record) (Cursor, error)

	// Committer implements RequestCommit/RequestAbort's storage half
	// (spec §4.6); Commit returns the committed LSN.
	Commit(ctx context.Context) (lsn uint64, err error)
	Abort(ctx context.Context) error
}

// PutInTransaction writes key/value to storageID through s and, on
// success, marks table as written against tx — the DDL "no backfill"
// gate of spec §4.8 reads this to reject a later DDL statement against
// a table this transaction already wrote a row to.
func PutInTransaction(ctx context.Context, s Store, tx *txn.Context, storageID int64, table string, key, value field.Record) error {
	if err := s.Put(ctx, storageID, key, value); err != nil {
		return err
	}
	tx.MarkTableWritten(table)
	return nil
}

// Cursor iterates the records a Scan selected, in key order.
type Cursor interface {
	Next() bool
	Record() field.Record
	Close() error
}

// ErrConcurrentOperation signals an OCC write-write conflict observed
// mid-point-read or mid-scan; the caller remaps it per config (spec §9,
// §7 "concurrent_operation may be remapped").
var ErrConcurrentOperation = errs.New(errs.CodeConcurrentOperation, "observed a concurrent write to the same key range")

// RemapPolicy chooses how a concurrent_operation observation surfaces to
// the client, per the config knobs of spec §9.
type RemapPolicy struct {
	PointReadAsNotFound bool
	ScanAsNotFound      bool
}

// Remap turns a concurrent_operation ErrorInfo into the code the
// request should actually observe, given policy and whether the
// operation that hit it was a point read or a scan.
func Remap(policy RemapPolicy, isScan bool, info errs.ErrorInfo) errs.ErrorInfo {
	if info.Code != errs.CodeConcurrentOperation {
		return info
	}
	var asNotFound = policy.PointReadAsNotFound
	if isScan {
		asNotFound = policy.ScanAsNotFound
	}
	if asNotFound {
		return errs.New(errs.CodeNotFound, "%s", info.Message)
	}
	return errs.New(errs.CodeSerializationFailure, "%s", info.Message)
}

// memStore is an in-memory Store used by tests and by hosts that have no
// external KV engine wired in yet. It keeps one unordered map per storage
// id, keyed by an encoding of the record key; Scan sorts the rows it
// selects with the key comparator. Commit/Abort are no-ops since every Put already lands directly
// (there is no separate write-set staging area to reconcile).
type memStore struct {
	mu      sync.Mutex
	tables  map[int64]map[string]field.Record
	keyOrd  field.KeyComparator
}

// NewMemStore builds an in-memory Store, comparing keys with cmp.
func NewMemStore(cmp field.KeyComparator) Store {
	return &memStore{tables: make(map[int64]map[string]field.Record), keyOrd: cmp}
}

func (s *memStore) table(storageID int64) map[string]field.Record {
	var t, ok = s.tables[storageID]
	if !ok {
		t = make(map[string]field.Record)
		s.tables[storageID] = t
	}
	return t
}

func (s *memStore) Get(ctx context.Context, storageID int64, key field.Record) (field.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v, ok = s.table(storageID)[keyString(key)]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "key not found")
	}
	return v, nil
}

func (s *memStore) Put(ctx context.Context, storageID int64, key, value field.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(storageID)[keyString(key)] = value
	return nil
}

func (s *memStore) Scan(ctx context.Context, storageID int64, lo, hi field.Record) (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []field.Record
	for _, v := range s.table(storageID) {
		if lo != nil && s.keyOrd.Compare(v, lo) < 0 {
			continue
		}
		if hi != nil && s.keyOrd.Compare(v, hi) > 0 {
			continue
		}
		rows = append(rows, v)
	}
	sort.Slice(rows, func(i, j int) bool { return s.keyOrd.Compare(rows[i], rows[j]) < 0 })
	return &sliceCursor{rows: rows, idx: -1}, nil
}

func (s *memStore) Commit(ctx context.Context) (uint64, error) { return 1, nil }
func (s *memStore) Abort(ctx context.Context) error            { return nil }

type sliceCursor struct {
	rows []field.Record
	idx  int
}

func (c *sliceCursor) Next() bool {
	c.idx++
	return c.idx < len(c.rows)
}

func (c *sliceCursor) Record() field.Record { return c.rows[c.idx] }
func (c *sliceCursor) Close() error         { return nil }

// keyString renders a record as a stable map key, for the in-memory test
// double only — a real KV engine encodes keys per its own on-disk
// format, not this scheme.
func keyString(r field.Record) string {
	var buf []byte
	for _, v := range r {
		buf = append(buf, byte(v.Kind))
		if v.Null {
			buf = append(buf, 'N')
			continue
		}
		switch v.Kind {
		case field.KindInt8, field.KindInt16, field.KindInt32, field.KindInt64:
			buf = appendInt64(buf, v.Int())
		case field.KindFloat32:
			buf = appendInt64(buf, int64(math.Float32bits(v.Float32())))
		case field.KindFloat64:
			buf = appendInt64(buf, int64(math.Float64bits(v.Float64())))
		case field.KindCharacter:
			buf = append(buf, []byte(v.String())...)
		case field.KindOctet:
			buf = append(buf, v.Bytes()...)
		case field.KindDecimal:
			if d := v.DecimalValue(); d != nil {
				buf = append(buf, []byte(d.String())...)
			}
		default:
			buf = appendInt64(buf, v.Int())
		}
		buf = append(buf, 0)
	}
	return string(buf)
}

func appendInt64(buf []byte, n int64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(n>>(8*i)))
	}
	return buf
}
