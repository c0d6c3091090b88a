package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/value"
)

func TestID_StringAndParseIDRoundTrip(t *testing.T) {
	id := ID(123456)
	s := id.String()

	parsed, err := ParseID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestID_ValueCarriesKindID(t *testing.T) {
	v := ID(42).Value()
	assert.Equal(t, value.KindID, v.Kind())
	assert.Equal(t, uint64(42), v.IDValue())
}

func TestParseID_InvalidStringErrors(t *testing.T) {
	_, err := ParseID("not-base-36-!!")
	assert.Error(t, err)
}

func TestAllocator_NextIsMonotoneStartingAt1(t *testing.T) {
	a := NewAllocator()
	assert.Equal(t, ID(1), a.Next())
	assert.Equal(t, ID(2), a.Next())
	assert.Equal(t, ID(3), a.Next())
}

func TestAllocator_RestoreAdvancesAboveObserved(t *testing.T) {
	a := NewAllocator()
	a.Restore(ID(100))
	assert.Equal(t, ID(101), a.Next())
}

func TestAllocator_RestoreIsANoOpWhenObservedIsBelowCurrent(t *testing.T) {
	a := NewAllocator()
	a.Next()
	a.Next()
	a.Restore(ID(1))
	assert.Equal(t, ID(3), a.Next())
}

func TestDocument_SetAndGet(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	v, ok := d.Get("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v.String())

	_, ok = d.Get("missing")
	assert.False(t, ok)
}

func TestDocument_FieldsPreservesInsertionOrder(t *testing.T) {
	d := New()
	d.Set("c", value.Int64(3))
	d.Set("a", value.Int64(1))
	d.Set("b", value.Int64(2))

	assert.Equal(t, []string{"c", "a", "b"}, d.Fields())
	assert.Equal(t, 3, d.Len())
}

func TestDocument_Remove(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	assert.True(t, d.Remove("name"))
	assert.False(t, d.Remove("name"))
	_, ok := d.Get("name")
	assert.False(t, ok)
}

func TestDocument_FromMapPreservesGivenOrder(t *testing.T) {
	d := FromMap([]string{"b", "a"}, map[string]value.Value{
		"a": value.Int64(1),
		"b": value.Int64(2),
	})
	assert.Equal(t, []string{"b", "a"}, d.Fields())
}

func TestDocument_IDAndSetID(t *testing.T) {
	d := New()
	_, ok := d.ID()
	assert.False(t, ok)

	d.SetID(ID(9))
	id, ok := d.ID()
	require.True(t, ok)
	assert.Equal(t, ID(9), id)
}

func TestDocument_IDRequiresKindIDValue(t *testing.T) {
	d := New()
	d.Set(IDField, value.Float64(9))

	_, ok := d.ID()
	assert.False(t, ok)
}

func TestDocument_RevisionAndSetRevision(t *testing.T) {
	d := New()
	_, ok := d.Revision()
	assert.False(t, ok)

	d.SetRevision(3)
	rev, ok := d.Revision()
	require.True(t, ok)
	assert.Equal(t, int64(3), rev)
}

func TestDocument_CloneIsIndependentOfOriginal(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	clone := d.Clone()
	clone.Set("name", value.String("grace"))

	v, _ := d.Get("name")
	assert.Equal(t, "ada", v.String())
	cv, _ := clone.Get("name")
	assert.Equal(t, "grace", cv.String())
}

func TestDocument_AsValueAndFromValueRoundTrip(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	v := d.AsValue()
	assert.Equal(t, value.KindDocument, v.Kind())

	back, ok := FromValue(v)
	require.True(t, ok)
	bv, _ := back.Get("name")
	assert.Equal(t, "ada", bv.String())
}

func TestFromValue_RejectsNonDocumentValue(t *testing.T) {
	_, ok := FromValue(value.Int64(5))
	assert.False(t, ok)
}

func TestDocument_GetPath_NestedDocument(t *testing.T) {
	inner := New()
	inner.Set("city", value.String("boston"))

	d := New()
	d.Set("address", inner.AsValue())

	v, ok := d.GetPath("address.city")
	require.True(t, ok)
	assert.Equal(t, "boston", v.String())
}

func TestDocument_GetPath_ArrayIndex(t *testing.T) {
	d := New()
	d.Set("tags", value.Array([]value.Value{value.String("a"), value.String("b")}))

	v, ok := d.GetPath("tags.1")
	require.True(t, ok)
	assert.Equal(t, "b", v.String())

	_, ok = d.GetPath("tags.5")
	assert.False(t, ok)

	_, ok = d.GetPath("tags.notanumber")
	assert.False(t, ok)
}

func TestDocument_GetPath_MissingSegmentFails(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	_, ok := d.GetPath("name.first")
	assert.False(t, ok)

	_, ok = d.GetPath("missing.field")
	assert.False(t, ok)
}

func TestDocument_GetPath_TopLevelField(t *testing.T) {
	d := New()
	d.Set("name", value.String("ada"))

	v, ok := d.GetPath("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v.String())
}
