// Package session implements the per-session statement and transaction
// stores of spec §4.5: keyed concurrent hash maps with fine-grained
// per-bucket locking, plus a session registry disposing both stores
// together when a session ends.
package session

import (
	"hash/maphash"
	"reflect"
	"sync"
)

const shardCount = 16

// shardedMap is a fixed-shard concurrent map with one mutex per shard,
// grounded on spec §4.5's "keyed concurrent hash maps with fine-grained
// per-bucket locks" — no third-party generic concurrent map in the
// example pack offers this exact per-bucket-lock shape (the pack's own
// `lru.Cache` is single-locked and bounded, unrelated to this unbounded
// exact-match store), so this is a small hand-rolled sharded map over
// plain stdlib `sync.Mutex` + `map`.
type shardedMap[K comparable, V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

func newShardedMap[K comparable, V any]() *shardedMap[K, V] {
	var sm = &shardedMap[K, V]{seed: maphash.MakeSeed()}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

func (sm *shardedMap[K, V]) shardFor(key K) *shard[K, V] {
	var h maphash.Hash
	h.SetSeed(sm.seed)
	writeHashInput(&h, key)
	return &sm.shards[h.Sum64()%shardCount]
}

// lookup returns the value stored for key, if any.
func (sm *shardedMap[K, V]) lookup(key K) (V, bool) {
	var s = sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	var v, ok = s.m[key]
	return v, ok
}

// put inserts key->value, failing (idempotent-style) if key is already
// present.
func (sm *shardedMap[K, V]) put(key K, value V) bool {
	var s = sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[key]; exists {
		return false
	}
	s.m[key] = value
	return true
}

// remove deletes key, reporting whether it was present.
func (sm *shardedMap[K, V]) remove(key K) bool {
	var s = sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[key]; !exists {
		return false
	}
	delete(s.m, key)
	return true
}

// size reports the total entry count across all shards.
func (sm *shardedMap[K, V]) size() int {
	var n int
	for i := range sm.shards {
		sm.shards[i].mu.Lock()
		n += len(sm.shards[i].m)
		sm.shards[i].mu.Unlock()
	}
	return n
}

// clear empties every shard, used by dispose.
func (sm *shardedMap[K, V]) clear() {
	for i := range sm.shards {
		sm.shards[i].mu.Lock()
		sm.shards[i].m = make(map[K]V)
		sm.shards[i].mu.Unlock()
	}
}

// each visits every entry; used by dispose for debug logging of
// contents before they're discarded.
func (sm *shardedMap[K, V]) each(fn func(K, V)) {
	for i := range sm.shards {
		sm.shards[i].mu.Lock()
		for k, v := range sm.shards[i].m {
			fn(k, v)
		}
		sm.shards[i].mu.Unlock()
	}
}

// writeHashInput feeds key's bytes into h. Keys are handle types defined
// as `type X int64` or plain strings; reflect.Kind sees through the
// named-type wrapper where a type switch on the concrete type would not.
func writeHashInput(h *maphash.Hash, key any) {
	var v = reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.Int64, reflect.Int, reflect.Int32:
		var n = v.Int()
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(n >> (8 * i))
		}
		h.Write(buf[:])
	case reflect.String:
		h.WriteString(v.String())
	default:
		panic("session: unsupported shardedMap key type")
	}
}
