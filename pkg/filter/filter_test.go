package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/value"
)

func docWith(fields map[string]value.Value) *document.Document {
	d := document.New()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func TestAll_MatchesEveryDocument(t *testing.T) {
	ok, err := filter.All().ApplyOnDocument(document.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, filter.All().Fields())
}

func TestEq_MatchesExactValueOnly(t *testing.T) {
	f := filter.Eq("name", value.String("ada"))

	ok, err := f.ApplyOnDocument(docWith(map[string]value.Value{"name": value.String("ada")}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ApplyOnDocument(docWith(map[string]value.Value{"name": value.String("grace")}))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.ApplyOnDocument(document.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparison_Operators(t *testing.T) {
	doc := docWith(map[string]value.Value{"age": value.Int64(30)})

	cases := []struct {
		name string
		f    filter.Filter
		want bool
	}{
		{"gt-true", filter.Gt("age", value.Int64(20)), true},
		{"gt-false", filter.Gt("age", value.Int64(30)), false},
		{"gte-true", filter.Gte("age", value.Int64(30)), true},
		{"lt-true", filter.Lt("age", value.Int64(40)), true},
		{"lt-false", filter.Lt("age", value.Int64(30)), false},
		{"lte-true", filter.Lte("age", value.Int64(30)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := tc.f.ApplyOnDocument(doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestBetween_InclusiveAndExclusiveBounds(t *testing.T) {
	doc := docWith(map[string]value.Value{"age": value.Int64(30)})

	inclusive := filter.Between("age", filter.Bound{Value: value.Int64(30), Inclusive: true}, filter.Bound{Value: value.Int64(40), Inclusive: true})
	ok, err := inclusive.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)

	exclusive := filter.Between("age", filter.Bound{Value: value.Int64(30), Inclusive: false}, filter.Bound{Value: value.Int64(40), Inclusive: true})
	ok, err = exclusive.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIn_AndNotIn(t *testing.T) {
	doc := docWith(map[string]value.Value{"category": value.String("hardware")})

	in := filter.In("category", []value.Value{value.String("hardware"), value.String("software")})
	ok, err := in.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)

	notIn := filter.NotIn("category", []value.Value{value.String("hardware")})
	ok, err = notIn.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegex_MatchesStringField(t *testing.T) {
	f, err := filter.Regex("name", "^a.*")
	require.NoError(t, err)

	ok, err := f.ApplyOnDocument(docWith(map[string]value.Value{"name": value.String("ada")}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ApplyOnDocument(docWith(map[string]value.Value{"name": value.String("grace")}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegex_InvalidPatternErrors(t *testing.T) {
	_, err := filter.Regex("name", "(")
	assert.Error(t, err)
}

func TestText_ExactPrefixSuffixContains(t *testing.T) {
	doc := docWith(map[string]value.Value{"name": value.String("sprocket")})

	exact, err := filter.Text("name", "sprocket")
	require.NoError(t, err)
	ok, _ := exact.ApplyOnDocument(doc)
	assert.True(t, ok)

	prefix, err := filter.Text("name", "sprock*")
	require.NoError(t, err)
	ok, _ = prefix.ApplyOnDocument(doc)
	assert.True(t, ok)

	suffix, err := filter.Text("name", "*ocket")
	require.NoError(t, err)
	ok, _ = suffix.ApplyOnDocument(doc)
	assert.True(t, ok)

	contains, err := filter.Text("name", "*ock*")
	require.NoError(t, err)
	ok, _ = contains.ApplyOnDocument(doc)
	assert.True(t, ok)
}

func TestText_BareWildcardIsFilterError(t *testing.T) {
	_, err := filter.Text("name", "*")
	assert.Error(t, err)
}

func TestAnd_RequiresEveryChild(t *testing.T) {
	doc := docWith(map[string]value.Value{"name": value.String("ada"), "age": value.Int64(30)})

	f := filter.And(filter.Eq("name", value.String("ada")), filter.Gt("age", value.Int64(20)))
	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)

	f2 := filter.And(filter.Eq("name", value.String("ada")), filter.Gt("age", value.Int64(40)))
	ok, err = f2.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOr_MatchesAnyChild(t *testing.T) {
	doc := docWith(map[string]value.Value{"name": value.String("ada")})

	f := filter.Or(filter.Eq("name", value.String("grace")), filter.Eq("name", value.String("ada")))
	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNot_InvertsChild(t *testing.T) {
	doc := docWith(map[string]value.Value{"name": value.String("ada")})

	f := filter.Not(filter.Eq("name", value.String("ada")))
	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIDEq_MatchesDocumentID(t *testing.T) {
	doc := document.New()
	doc.SetID(document.ID(7))

	f := filter.IDEq(document.ID(7))
	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)

	f2 := filter.IDEq(document.ID(8))
	ok, err = f2.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestElemMatch_ScalarArrayElement(t *testing.T) {
	arr := value.Array([]value.Value{value.Int64(1), value.Int64(5), value.Int64(9)})
	doc := docWith(map[string]value.Value{"scores": arr})

	inner := filter.Gt("$", value.Int64(8))
	f, err := filter.ElemMatch("scores", inner)
	require.NoError(t, err)

	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestElemMatch_DocumentArrayElement(t *testing.T) {
	elem1 := document.New()
	elem1.Set("city", value.String("boston"))
	elem2 := document.New()
	elem2.Set("city", value.String("nyc"))
	arr := value.Array([]value.Value{elem1.AsValue(), elem2.AsValue()})
	doc := docWith(map[string]value.Value{"addresses": arr})

	inner := filter.Eq("city", value.String("nyc"))
	f, err := filter.ElemMatch("addresses", inner)
	require.NoError(t, err)

	ok, err := f.ApplyOnDocument(doc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestElemMatch_RejectsNestedElemMatch(t *testing.T) {
	inner, err := filter.ElemMatch("x", filter.All())
	require.NoError(t, err)

	_, err = filter.ElemMatch("outer", inner)
	assert.Error(t, err)
}

func TestElemMatch_RejectsWrappingTextFilter(t *testing.T) {
	text, err := filter.Text("name", "a*")
	require.NoError(t, err)

	_, err = filter.ElemMatch("outer", text)
	assert.Error(t, err)
}

func TestElemMatch_NonArrayFieldErrors(t *testing.T) {
	doc := docWith(map[string]value.Value{"scores": value.Int64(5)})
	f, err := filter.ElemMatch("scores", filter.Gt("$", value.Int64(1)))
	require.NoError(t, err)

	_, err = f.ApplyOnDocument(doc)
	assert.Error(t, err)
}

func TestIDSet_IntersectAndUnion(t *testing.T) {
	a := filter.NewIDSet(document.ID(1), document.ID(2))
	b := filter.NewIDSet(document.ID(2), document.ID(3))

	inter := filter.Intersect(a, b)
	assert.Equal(t, []document.ID{2}, inter.Slice())

	union := filter.Union(a, b)
	assert.Len(t, union.Slice(), 3)
}

func newTestManager(t *testing.T) *index.Manager {
	t.Helper()
	return index.NewManager("widgets", kvstore.NewMemStore(), t.TempDir())
}

func iterOver(docs map[document.ID]*document.Document) index.DocIterator {
	return func(yield func(document.ID, *document.Document) bool) {
		for id, doc := range docs {
			if !yield(id, doc) {
				return
			}
		}
	}
}

func TestEq_ApplyOnIndexUsesReaderEquals(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"category": value.String("hardware")}),
		2: docWith(map[string]value.Value{"category": value.String("software")}),
	}
	require.NoError(t, m.Create([]string{"category"}, index.KindNonUnique, iterOver(docs)))

	ids, ok, err := filter.Eq("category", value.String("hardware")).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ids.Has(document.ID(1)))
	assert.False(t, ids.Has(document.ID(2)))
}

func TestEq_ApplyOnIndexFallsBackWithoutIndex(t *testing.T) {
	m := newTestManager(t)
	_, ok, err := filter.Eq("category", value.String("hardware")).ApplyOnIndex(m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComparison_ApplyOnIndexScansOrderedRange(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"age": value.Int64(20)}),
		2: docWith(map[string]value.Value{"age": value.Int64(30)}),
		3: docWith(map[string]value.Value{"age": value.Int64(40)}),
	}
	require.NoError(t, m.Create([]string{"age"}, index.KindNonUnique, iterOver(docs)))

	ids, ok, err := filter.Gt("age", value.Int64(20)).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, ids.Has(document.ID(1)))
	assert.True(t, ids.Has(document.ID(2)))
	assert.True(t, ids.Has(document.ID(3)))

	ids, ok, err = filter.Lte("age", value.Int64(30)).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ids.Has(document.ID(1)))
	assert.True(t, ids.Has(document.ID(2)))
	assert.False(t, ids.Has(document.ID(3)))
}

func TestBetween_ApplyOnIndex(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"age": value.Int64(20)}),
		2: docWith(map[string]value.Value{"age": value.Int64(30)}),
		3: docWith(map[string]value.Value{"age": value.Int64(40)}),
	}
	require.NoError(t, m.Create([]string{"age"}, index.KindNonUnique, iterOver(docs)))

	ids, ok, err := filter.Between("age",
		filter.Bound{Value: value.Int64(25), Inclusive: true},
		filter.Bound{Value: value.Int64(40), Inclusive: false},
	).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, ids.Has(document.ID(1)))
	assert.True(t, ids.Has(document.ID(2)))
	assert.False(t, ids.Has(document.ID(3)))
}

func TestIn_ApplyOnIndexUnionsMatchingKeys(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"category": value.String("hardware")}),
		2: docWith(map[string]value.Value{"category": value.String("software")}),
		3: docWith(map[string]value.Value{"category": value.String("services")}),
	}
	require.NoError(t, m.Create([]string{"category"}, index.KindNonUnique, iterOver(docs)))

	ids, ok, err := filter.In("category", []value.Value{value.String("hardware"), value.String("software")}).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ids.Has(document.ID(1)))
	assert.True(t, ids.Has(document.ID(2)))
	assert.False(t, ids.Has(document.ID(3)))
}

func TestNotIn_NeverResolvesToIndexPlan(t *testing.T) {
	m := newTestManager(t)
	_, ok, err := filter.NotIn("category", []value.Value{value.String("hardware")}).ApplyOnIndex(m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnd_ApplyOnIndexIntersectsResolvableChildren(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"category": value.String("hardware"), "age": value.Int64(20)}),
		2: docWith(map[string]value.Value{"category": value.String("hardware"), "age": value.Int64(40)}),
	}
	require.NoError(t, m.Create([]string{"category"}, index.KindNonUnique, iterOver(docs)))
	require.NoError(t, m.Create([]string{"age"}, index.KindNonUnique, iterOver(docs)))

	f := filter.And(filter.Eq("category", value.String("hardware")), filter.Gt("age", value.Int64(30)))
	ids, ok, err := f.ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, ids.Has(document.ID(1)))
	assert.True(t, ids.Has(document.ID(2)))
}

func TestOr_ApplyOnIndexFallsBackIfAnyChildUnresolvable(t *testing.T) {
	m := newTestManager(t)
	docs := map[document.ID]*document.Document{
		1: docWith(map[string]value.Value{"category": value.String("hardware")}),
	}
	require.NoError(t, m.Create([]string{"category"}, index.KindNonUnique, iterOver(docs)))

	text, err := filter.Text("category", "*ard*")
	require.NoError(t, err)
	f := filter.Or(filter.Eq("category", value.String("hardware")), text)
	_, ok, err := f.ApplyOnIndex(m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNot_NeverResolvesToIndexPlan(t *testing.T) {
	m := newTestManager(t)
	_, ok, err := filter.Not(filter.Eq("category", value.String("hardware"))).ApplyOnIndex(m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIDEq_ApplyOnIndexResolvesWithoutAnyIndex(t *testing.T) {
	m := newTestManager(t)
	ids, ok, err := filter.IDEq(document.ID(5)).ApplyOnIndex(m)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ids.Has(document.ID(5)))
}
