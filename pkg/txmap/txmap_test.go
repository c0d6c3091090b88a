package txmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/value"
)

func newPrimary(t *testing.T, seed map[string]string) *kvstore.MemMap {
	t.Helper()
	m := kvstore.NewMemMap("primary")
	for k, v := range seed {
		m.Put(value.String(k), value.String(v))
	}
	return m
}

func TestTransactionalMap_GetFallsThroughToPrimary(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1"})
	tm := New("widgets", primary)

	v, ok := tm.Get(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, "1", v.String())
}

func TestTransactionalMap_PutShadowsPrimaryWithoutMutatingIt(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1"})
	tm := New("widgets", primary)

	tm.Put(value.String("a"), value.String("2"))

	v, ok := tm.Get(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, "2", v.String())

	pv, _ := primary.Get(value.String("a"))
	assert.Equal(t, "1", pv.String())
}

func TestTransactionalMap_RemoveTombstonesPrimaryKey(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1"})
	tm := New("widgets", primary)

	_, ok := tm.Remove(value.String("a"))
	assert.True(t, ok)

	_, ok = tm.Get(value.String("a"))
	assert.False(t, ok)

	pv, ok := primary.Get(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, "1", pv.String())
}

func TestTransactionalMap_PutAfterRemoveUndoesTombstone(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1"})
	tm := New("widgets", primary)

	tm.Remove(value.String("a"))
	tm.Put(value.String("a"), value.String("3"))

	v, ok := tm.Get(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, "3", v.String())
}

func TestTransactionalMap_PutIfAbsent(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1"})
	tm := New("widgets", primary)

	_, inserted := tm.PutIfAbsent(value.String("a"), value.String("2"))
	assert.False(t, inserted)

	_, inserted = tm.PutIfAbsent(value.String("b"), value.String("2"))
	assert.True(t, inserted)

	v, ok := tm.Get(value.String("b"))
	require.True(t, ok)
	assert.Equal(t, "2", v.String())
}

func TestTransactionalMap_ClearHidesEverythingFromPrimary(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1", "b": "2"})
	tm := New("widgets", primary)

	tm.Clear()

	_, ok := tm.Get(value.String("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, tm.Size())

	assert.Equal(t, 2, primary.Size())
}

func TestTransactionalMap_SizeCombinesBackingAndPrimaryMinusTombstones(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1", "b": "2"})
	tm := New("widgets", primary)

	tm.Put(value.String("c"), value.String("3"))
	tm.Remove(value.String("a"))

	assert.Equal(t, 2, tm.Size())
}

func TestTransactionalMap_AscendMergesBackingAndPrimaryInOrder(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1", "c": "3"})
	tm := New("widgets", primary)
	tm.Put(value.String("b"), value.String("2"))

	var keys []string
	tm.Ascend(func(k, v value.Value) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestTransactionalMap_AscendSkipsTombstonedPrimaryKeys(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	tm := New("widgets", primary)
	tm.Remove(value.String("b"))

	var keys []string
	tm.Ascend(func(k, v value.Value) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"a", "c"}, keys)
}

func TestTransactionalMap_DescendMergesBackingAndPrimaryInReverseOrder(t *testing.T) {
	primary := newPrimary(t, map[string]string{"a": "1", "c": "3"})
	tm := New("widgets", primary)
	tm.Put(value.String("b"), value.String("2"))

	var keys []string
	tm.Descend(func(k, v value.Value) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestTransactionalMap_FirstAndLastKey(t *testing.T) {
	primary := newPrimary(t, map[string]string{"b": "2", "d": "4"})
	tm := New("widgets", primary)
	tm.Put(value.String("a"), value.String("1"))
	tm.Put(value.String("c"), value.String("3"))

	first, ok := tm.FirstKey()
	require.True(t, ok)
	assert.Equal(t, "a", first.String())

	last, ok := tm.LastKey()
	require.True(t, ok)
	assert.Equal(t, "d", last.String())
}

func TestTransactionalMap_AttributesFallBackToPrimaryUntilSetLocally(t *testing.T) {
	primary := newPrimary(t, nil)
	primaryAttrs, _ := primary.Attributes()
	assert.Nil(t, primaryAttrs)

	tm := New("widgets", primary)
	_, ok := tm.Attributes()
	assert.False(t, ok)
}

func TestTransactionalMap_CloseMarksClosed(t *testing.T) {
	primary := newPrimary(t, nil)
	tm := New("widgets", primary)

	assert.False(t, tm.IsClosed())
	require.NoError(t, tm.Close())
	assert.True(t, tm.IsClosed())
}
