package session

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionID identifies one client session.
type SessionID int64

// Session bundles the two per-session stores of spec §4.5 plus the
// metadata needed to dispose them together.
type Session struct {
	ID         SessionID
	Statements *StatementStore
	Txns       *TransactionStore
}

// Metadata is the small, bounded amount of per-session bookkeeping the
// registry caches for fast lookup even after a session's stores have
// grown large: user name and last-seen statement text, used for audit
// logging.
type Metadata struct {
	User          string
	LastStatement string
}

// Registry is the process-wide directory of live sessions (spec §4.5's
// "global directory" a dispose() call deregisters from). It also keeps
// a bounded LRU of session Metadata for diagnostics, since the exact-
// match session map itself is unbounded and metadata is only ever
// needed for the most recently active sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[SessionID]*Session

	metaCache *lru.Cache[SessionID, Metadata]
}

// NewRegistry builds an empty registry whose metadata cache holds at
// most metadataCacheSize entries.
func NewRegistry(metadataCacheSize int) *Registry {
	var cache, _ = lru.New[SessionID, Metadata](metadataCacheSize)
	return &Registry{sessions: make(map[SessionID]*Session), metaCache: cache}
}

// Open creates a new session and its two stores, registering it in the
// directory.
func (r *Registry) Open(id SessionID) *Session {
	var s = &Session{ID: id}
	s.Statements = newStatementStore(int64(id), r)
	s.Txns = newTransactionStore(int64(id), r)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Lookup returns the session registered under id, if any.
func (r *Registry) Lookup(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s, ok = r.sessions[id]
	return s, ok
}

// PutMetadata caches diagnostic metadata for id, evicting the least
// recently used entry once the cache is full.
func (r *Registry) PutMetadata(id SessionID, m Metadata) {
	r.metaCache.Add(id, m)
}

// Metadata returns the cached diagnostic metadata for id, if still
// resident in the LRU.
func (r *Registry) Metadata(id SessionID) (Metadata, bool) {
	return r.metaCache.Get(id)
}

// Close disposes both of a session's stores and removes it from the
// directory and metadata cache. Must be called exactly once per
// session, never concurrently with operations on its stores.
func (r *Registry) Close(id SessionID) {
	r.mu.Lock()
	var s, ok = r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Statements.Dispose()
	s.Txns.Dispose()
	r.metaCache.Remove(id)
}

// removeStatementStore and removeTransactionStore implement the second
// half of dispose(): deregistering the session from the global
// directory. Both stores' Dispose calls this; the first call deletes the
// directory entry and the second is a no-op, so the outcome does not
// depend on which store is disposed first.
func (r *Registry) removeStatementStore(sessionID int64) { r.removeSession(SessionID(sessionID)) }
func (r *Registry) removeTransactionStore(sessionID int64) { r.removeSession(SessionID(sessionID)) }

func (r *Registry) removeSession(id SessionID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
