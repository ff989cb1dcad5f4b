package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/internal/value"
)

// P4: set/get/has/delete round-trip, with tombstone recycling on reinsert.
func TestMap_SetGetHasDelete(t *testing.T) {
	m := value.NewMap()

	ok := m.Set(value.Number(1), value.Number(100))
	require.True(t, ok)
	v, ok := m.Get(value.Number(1))
	require.True(t, ok)
	require.Equal(t, 100.0, v.AsNumber())
	require.True(t, m.Has(value.Number(1)))

	require.True(t, m.Delete(value.Number(1)))
	require.False(t, m.Has(value.Number(1)))
	_, ok = m.Get(value.Number(1))
	require.False(t, ok)
}

// Deleting and reinserting should not grow count of live entries beyond
// what is actually live, and the slot should be reusable (tombstone
// recycling), i.e. repeated delete/insert cycles don't leak capacity
// unboundedly (count stays stable).
func TestMap_TombstoneRecycling(t *testing.T) {
	m := value.NewMap()
	for i := 0; i < 50; i++ {
		m.Set(value.Number(float64(i)), value.True)
		m.Delete(value.Number(float64(i)))
	}
	require.Equal(t, 0, m.Len())

	m.Set(value.Number(0), value.Number(42))
	require.Equal(t, 1, m.Len())
	v, ok := m.Get(value.Number(0))
	require.True(t, ok)
	require.Equal(t, 42.0, v.AsNumber())
}

func TestMap_GrowsAndSurvivesRehash(t *testing.T) {
	m := value.NewMap()
	const n = 200
	for i := 0; i < n; i++ {
		m.Set(value.Number(float64(i)), value.Number(float64(i*2)))
	}
	require.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Get(value.Number(float64(i)))
		require.True(t, ok)
		require.Equal(t, float64(i*2), v.AsNumber())
	}
}

func TestMap_StringKeysAreInternedPointerEqual(t *testing.T) {
	h := value.NewHeap()
	m := value.NewMap()
	a := h.InternString("hello")
	b := h.InternString("hello") // same content, same pointer per (I1)
	require.Same(t, a, b)

	m.Set(value.Obj(a), value.Number(1))
	v, ok := m.Get(value.Obj(b))
	require.True(t, ok)
	require.Equal(t, 1.0, v.AsNumber())
}

func TestMap_UnhashableValueRejected(t *testing.T) {
	m := value.NewMap()
	unhashable := value.Obj(value.NewSequence(nil)) // fresh object, Header.Hash == 0
	ok := m.Set(unhashable, value.True)
	require.False(t, ok)
	require.False(t, m.Has(unhashable))
}

func TestMap_DeleteUnknownKeyIsNoop(t *testing.T) {
	m := value.NewMap()
	require.False(t, m.Delete(value.Number(1)))
	m.Set(value.Number(1), value.True)
	require.False(t, m.Delete(value.Number(2)))
	require.True(t, m.Has(value.Number(1)))
}

func TestMap_IterateReturnsOnlyLiveEntries(t *testing.T) {
	m := value.NewMap()
	m.Set(value.Number(1), value.Number(10))
	m.Set(value.Number(2), value.Number(20))
	m.Delete(value.Number(1))

	entries := m.Iterate()
	require.Len(t, entries, 1)
	require.Equal(t, 2.0, entries[0].Key.AsNumber())
	require.Equal(t, 20.0, entries[0].Value.AsNumber())
}

func TestHashValue_BoolNilUnitUndefinedAreFixedSmallInts(t *testing.T) {
	ht, ok := value.HashValue(value.True)
	require.True(t, ok)
	hf, ok := value.HashValue(value.False)
	require.True(t, ok)
	require.NotEqual(t, ht, hf)

	hn, ok := value.HashValue(value.Nil)
	require.True(t, ok)
	hu, ok := value.HashValue(value.Unit)
	require.True(t, ok)
	hd, ok := value.HashValue(value.Undefined)
	require.True(t, ok)

	// all distinct fixed small integers
	seen := map[uint32]bool{ht: true}
	for _, h := range []uint32{hf, hn, hu, hd} {
		require.False(t, seen[h], "hash collision among fixed sentinels")
		seen[h] = true
	}
}

func TestHashValue_NumberIsDeterministic(t *testing.T) {
	h1, ok := value.HashValue(value.Number(3.14))
	require.True(t, ok)
	h2, ok := value.HashValue(value.Number(3.14))
	require.True(t, ok)
	require.Equal(t, h1, h2)
}
