package session

import (
	"sync"
	"testing"

	"github.com/estuary/sqlflow/auth"
	"github.com/estuary/sqlflow/txn"
	"github.com/stretchr/testify/require"
)

func TestStatementStorePutLookupRemove(t *testing.T) {
	var reg = NewRegistry(8)
	var sess = reg.Open(1)

	var stmt = NewPreparedStatement("select 1", nil)
	require.True(t, sess.Statements.Put(10, stmt))
	require.False(t, sess.Statements.Put(10, stmt), "put on an existing handle must fail")

	var got, ok = sess.Statements.Lookup(10)
	require.True(t, ok)
	require.Same(t, stmt, got)

	require.Equal(t, 1, sess.Statements.Size())
	require.True(t, sess.Statements.Remove(10))
	require.False(t, sess.Statements.Remove(10), "remove is not idempotent a second time")
	require.Equal(t, 0, sess.Statements.Size())
}

func TestPreparedStatementRefCounting(t *testing.T) {
	var stmt = NewPreparedStatement("select 1", nil)
	stmt.Acquire()
	require.False(t, stmt.Release(), "one in-flight acquire remains")
	require.True(t, stmt.Release(), "store's implicit reference is the last one")
}

func TestTransactionStorePutLookupRemove(t *testing.T) {
	var reg = NewRegistry(8)
	var sess = reg.Open(1)

	var tx = txn.New(100, auth.ModeOCC, false)
	require.True(t, sess.Txns.Put(5, tx))
	require.False(t, sess.Txns.Put(5, tx))

	var got, ok = sess.Txns.Lookup(5)
	require.True(t, ok)
	require.Same(t, tx, got)

	require.True(t, sess.Txns.Remove(5))
	require.Equal(t, 0, sess.Txns.Size())
}

func TestRegistryCloseDisposesBothStoresAndDeregisters(t *testing.T) {
	var reg = NewRegistry(8)
	var sess = reg.Open(1)

	var stmt = NewPreparedStatement("select 1", nil)
	sess.Statements.Put(10, stmt)
	sess.Txns.Put(5, txn.New(100, auth.ModeOCC, false))
	reg.PutMetadata(1, Metadata{User: "alice"})

	reg.Close(1)

	var _, ok = reg.Lookup(1)
	require.False(t, ok, "closed session must be removed from the directory")
	require.Equal(t, 0, sess.Statements.Size())
	require.Equal(t, 0, sess.Txns.Size())

	var _, mok = reg.Metadata(1)
	require.False(t, mok, "metadata cache entry must be evicted on close")
}

func TestRegistryMetadataLRUEviction(t *testing.T) {
	var reg = NewRegistry(2)
	reg.PutMetadata(1, Metadata{User: "a"})
	reg.PutMetadata(2, Metadata{User: "b"})
	reg.PutMetadata(3, Metadata{User: "c"})

	var _, ok1 = reg.Metadata(1)
	require.False(t, ok1, "least recently used entry should have been evicted")

	var m3, ok3 = reg.Metadata(3)
	require.True(t, ok3)
	require.Equal(t, "c", m3.User)
}

func TestShardedMapConcurrentPutLookup(t *testing.T) {
	var sm = newShardedMap[int64, int]()
	var wg sync.WaitGroup
	for i := int64(0); i < 200; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			sm.put(i, int(i))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 200, sm.size())
	for i := int64(0); i < 200; i++ {
		var v, ok = sm.lookup(i)
		require.True(t, ok)
		require.Equal(t, int(i), v)
	}
}

func TestShardedMapStringKeys(t *testing.T) {
	var sm = newShardedMap[string, int]()
	require.True(t, sm.put("a", 1))
	require.False(t, sm.put("a", 2))
	var v, ok = sm.lookup("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}
