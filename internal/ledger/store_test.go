package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxOverlay(t *testing.T) {
	store := NewStore()
	store.Set("a", []byte("1"))

	tx := store.Begin()
	tx.Set("b", []byte("2"))
	tx.Delete("a")

	// staged writes visible inside the tx only
	_, ok := tx.Get("a")
	assert.False(t, ok)
	v, ok := tx.Get("b")
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	_, ok = store.Get("b")
	assert.False(t, ok, "store must not see uncommitted writes")
	_, ok = store.Get("a")
	assert.True(t, ok, "store must not see uncommitted deletes")

	tx.Commit()

	_, ok = store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("b")
	assert.True(t, ok)
}

func TestTxDiscard(t *testing.T) {
	store := NewStore()
	store.Set("a", []byte("1"))

	tx := store.Begin()
	tx.Set("a", []byte("changed"))
	tx.Set("b", []byte("2"))
	tx.Discard()

	v, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	_, ok = store.Get("b")
	assert.False(t, ok)
}

func TestTxKeysMergesBaseAndWrites(t *testing.T) {
	store := NewStore()
	store.Set("k/a", nil)
	store.Set("k/c", nil)
	store.Set("other", nil)

	tx := store.Begin()
	tx.Set("k/b", nil)
	tx.Delete("k/c")

	assert.Equal(t, []string{"k/a", "k/b"}, tx.Keys("k/"))
}

func TestPrefixedView(t *testing.T) {
	store := NewStore()
	kv := Prefixed(store, "contract/x/")
	kv.Set("key", []byte("v"))

	_, ok := store.Get("key")
	assert.False(t, ok)
	v, ok := store.Get("contract/x/key")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	other := Prefixed(store, "contract/y/")
	_, ok = other.Get("key")
	assert.False(t, ok, "views of different instances must not overlap")

	assert.Equal(t, []string{"key"}, kv.Keys(""))
}

func TestItemLoadSave(t *testing.T) {
	store := NewStore()
	item := NewItem[uint64]("counter")

	_, err := item.Load(store)
	require.True(t, IsNotFoundError(err))

	require.NoError(t, item.Save(store, 42))
	v, err := item.Load(store)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	item.Remove(store)
	assert.False(t, item.Has(store))
}

func TestMapKeyOrder(t *testing.T) {
	store := NewStore()
	m := NewMap[uint64, string]("seq", U64Key)

	for _, k := range []uint64{3, 11, 2, 100} {
		require.NoError(t, m.Save(store, k, "v"))
	}

	keys := m.Keys(store)
	assert.Equal(t, []string{U64Key(2), U64Key(3), U64Key(11), U64Key(100)}, keys,
		"fixed-width encoding keeps numeric order")
}

func TestMapMayLoad(t *testing.T) {
	store := NewStore()
	m := NewMap[string, []string]("idx", StringKey)

	v, err := m.MayLoad(store, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = m.Load(store, "missing")
	require.True(t, IsNotFoundError(err))
}
