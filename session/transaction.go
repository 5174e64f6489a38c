package session

import "github.com/estuary/sqlflow/txn"

// TransactionHandle identifies one open transaction within a session.
type TransactionHandle int64

// TransactionStore is a session's keyed store of open transaction
// contexts (spec §4.5). The store is the canonical registry for a
// transaction context; a request context holds only a shared reference
// for the duration of its work (spec §5).
type TransactionStore struct {
	sessionID int64
	registry  *Registry
	m         *shardedMap[TransactionHandle, *txn.Context]
}

func newTransactionStore(sessionID int64, registry *Registry) *TransactionStore {
	return &TransactionStore{sessionID: sessionID, registry: registry, m: newShardedMap[TransactionHandle, *txn.Context]()}
}

// Lookup returns the transaction context registered under handle, if any.
func (s *TransactionStore) Lookup(handle TransactionHandle) (*txn.Context, bool) {
	return s.m.lookup(handle)
}

// Put registers a newly begun transaction, failing if handle is already
// in use.
func (s *TransactionStore) Put(handle TransactionHandle, ctx *txn.Context) bool {
	return s.m.put(handle, ctx)
}

// Remove deregisters a transaction, e.g. once it has committed or
// aborted.
func (s *TransactionStore) Remove(handle TransactionHandle) bool {
	return s.m.remove(handle)
}

// Size reports the number of transactions currently registered.
func (s *TransactionStore) Size() int { return s.m.size() }

// Dispose clears the store and deregisters the owning session from the
// global directory in one logical step (spec §4.5).
func (s *TransactionStore) Dispose() {
	s.m.clear()
	if s.registry != nil {
		s.registry.removeTransactionStore(s.sessionID)
	}
}
