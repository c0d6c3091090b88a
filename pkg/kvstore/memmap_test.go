package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/value"
)

func TestMemMap_PutAndGet(t *testing.T) {
	m := NewMemMap("widgets")
	m.Put(value.String("a"), value.Int64(1))

	v, ok := m.Get(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int())

	_, ok = m.Get(value.String("missing"))
	assert.False(t, ok)
}

func TestMemMap_PutIfAbsent(t *testing.T) {
	m := NewMemMap("widgets")

	_, inserted := m.PutIfAbsent(value.String("a"), value.Int64(1))
	assert.True(t, inserted)

	existing, inserted := m.PutIfAbsent(value.String("a"), value.Int64(2))
	assert.False(t, inserted)
	assert.Equal(t, int64(1), existing.Int())
}

func TestMemMap_Remove(t *testing.T) {
	m := NewMemMap("widgets")
	m.Put(value.String("a"), value.Int64(1))

	v, ok := m.Remove(value.String("a"))
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int())

	_, ok = m.Remove(value.String("a"))
	assert.False(t, ok)
}

func TestMemMap_Clear(t *testing.T) {
	m := NewMemMap("widgets")
	m.Put(value.String("a"), value.Int64(1))
	m.Clear()

	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, m.Size())
}

func TestMemMap_Navigation(t *testing.T) {
	m := NewMemMap("widgets")
	for _, k := range []int64{10, 20, 30, 40} {
		m.Put(value.Int64(k), value.String("v"))
	}

	first, ok := m.FirstKey()
	require.True(t, ok)
	assert.Equal(t, int64(10), first.Int())

	last, ok := m.LastKey()
	require.True(t, ok)
	assert.Equal(t, int64(40), last.Int())

	higher, ok := m.HigherKey(value.Int64(20))
	require.True(t, ok)
	assert.Equal(t, int64(30), higher.Int())

	ceil, ok := m.CeilingKey(value.Int64(25))
	require.True(t, ok)
	assert.Equal(t, int64(30), ceil.Int())

	ceilExact, ok := m.CeilingKey(value.Int64(20))
	require.True(t, ok)
	assert.Equal(t, int64(20), ceilExact.Int())

	lower, ok := m.LowerKey(value.Int64(30))
	require.True(t, ok)
	assert.Equal(t, int64(20), lower.Int())

	floor, ok := m.FloorKey(value.Int64(25))
	require.True(t, ok)
	assert.Equal(t, int64(20), floor.Int())

	_, ok = m.HigherKey(value.Int64(40))
	assert.False(t, ok)
}

func TestMemMap_AscendAndDescend(t *testing.T) {
	m := NewMemMap("widgets")
	for _, k := range []int64{3, 1, 2} {
		m.Put(value.Int64(k), value.String("v"))
	}

	var asc []int64
	m.Ascend(func(k, v value.Value) bool {
		asc = append(asc, k.Int())
		return true
	})
	assert.Equal(t, []int64{1, 2, 3}, asc)

	var desc []int64
	m.Descend(func(k, v value.Value) bool {
		desc = append(desc, k.Int())
		return true
	})
	assert.Equal(t, []int64{3, 2, 1}, desc)
}

func TestMemMap_AscendStopsWhenFnReturnsFalse(t *testing.T) {
	m := NewMemMap("widgets")
	for _, k := range []int64{1, 2, 3} {
		m.Put(value.Int64(k), value.String("v"))
	}

	var visited []int64
	m.Ascend(func(k, v value.Value) bool {
		visited = append(visited, k.Int())
		return k.Int() < 2
	})
	assert.Equal(t, []int64{1, 2}, visited)
}

func TestMemMap_Attributes(t *testing.T) {
	m := NewMemMap("widgets")
	_, ok := m.Attributes()
	assert.False(t, ok)
}

func TestMemMap_DisposeMarksClosedAndDropped(t *testing.T) {
	m := NewMemMap("widgets")
	m.Put(value.String("a"), value.Int64(1))

	require.NoError(t, m.Dispose())
	assert.True(t, m.IsClosed())
	assert.True(t, m.IsDropped())
	assert.Equal(t, 0, m.Size())
}
