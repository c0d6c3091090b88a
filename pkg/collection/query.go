package collection

import (
	"sort"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/value"
)

// SortOrder is the direction a FindOptions.Sort walks its field.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// SortSpec names the single field find() orders its results by.
// Compound sort keys are out of scope (spec.md's Non-goals).
type SortSpec struct {
	Field string
	Order SortOrder
}

// FindOptions controls find()'s sort, pagination and projection, spec.md
// §4.4.
type FindOptions struct {
	Sort       *SortSpec
	Skip       int
	Limit      int
	Projection []string
}

// Cursor is a forward-only iterator over a find() result, materialized
// up front: the filter is always fully resolved (via an index plan or a
// collection scan) before Find returns.
type Cursor struct {
	docs []*document.Document
	pos  int
}

func newCursor(docs []*document.Document) *Cursor { return &Cursor{docs: docs, pos: -1} }

// Next advances the cursor and reports whether a document is available.
func (cu *Cursor) Next() bool {
	cu.pos++
	return cu.pos < len(cu.docs)
}

// Document returns the document at the cursor's current position. Calling
// it before Next or after Next returns false panics like a misused
// database/sql rows iterator.
func (cu *Cursor) Document() *document.Document { return cu.docs[cu.pos] }

// Len reports the total number of documents in this cursor.
func (cu *Cursor) Len() int { return len(cu.docs) }

// All drains the cursor into a slice, for callers that don't need the
// incremental iteration form.
func (cu *Cursor) All() []*document.Document { return cu.docs }

// Find resolves f against this collection's view (index plan first, a
// collection scan otherwise), applies sort/skip/limit, and projects the
// result if requested.
func (c *Collection) Find(f filter.Filter, opts FindOptions) (*Cursor, error) {
	if f == nil {
		f = filter.All()
	}
	view, err := c.readView()
	if err != nil {
		return nil, err
	}
	idx := c.ctx.Indexes(c.name)

	unlock := c.ctx.Locks().RLock(c.name)
	defer unlock()

	matched, matchedOk, err := c.resolveFilter(idx, f)
	if err != nil {
		return nil, err
	}

	var docs []*document.Document
	if opts.Sort != nil {
		docs, err = c.sortedScan(view, idx, f, matched, matchedOk, *opts.Sort)
	} else {
		docs, err = c.naturalScan(view, f, matched, matchedOk)
	}
	if err != nil {
		return nil, err
	}

	docs = applySkipLimit(docs, opts.Skip, opts.Limit)
	if len(opts.Projection) > 0 {
		docs = projectAll(docs, opts.Projection)
	}
	return newCursor(docs), nil
}

func (c *Collection) resolveFilter(idx *index.Manager, f filter.Filter) (filter.IDSet, bool, error) {
	if idx == nil {
		return nil, false, nil
	}
	return f.ApplyOnIndex(idx)
}

// matchingIDs resolves f to the set of matching document ids without
// materializing documents (used by RemoveByFilter/UpdateByFilter, which
// only need the id list to stage their own writes).
func (c *Collection) matchingIDs(view kvstore.Map, idx *index.Manager, f filter.Filter) ([]document.ID, error) {
	matched, ok, err := c.resolveFilter(idx, f)
	if err != nil {
		return nil, err
	}
	if ok {
		var ids []document.ID
		for _, id := range matched.Slice() {
			doc, found := getDoc(view, id)
			if !found {
				continue
			}
			ok2, err := f.ApplyOnDocument(doc)
			if err != nil {
				return nil, err
			}
			if ok2 {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	var ids []document.ID
	var scanErr error
	view.Ascend(func(key, val value.Value) bool {
		if key.Kind() != value.KindID {
			return true
		}
		doc, ok := document.FromValue(val)
		if !ok {
			return true
		}
		ok2, err := f.ApplyOnDocument(doc)
		if err != nil {
			scanErr = err
			return false
		}
		if ok2 {
			ids = append(ids, document.ID(key.IDValue()))
		}
		return true
	})
	return ids, scanErr
}

// naturalScan returns matches in ascending _id order: id-set order when an
// index plan resolved the filter, or discovery order during a raw scan
// (the primary map is itself _id-ordered).
func (c *Collection) naturalScan(view kvstore.Map, f filter.Filter, matched filter.IDSet, matchedOk bool) ([]*document.Document, error) {
	if matchedOk {
		ids := matched.Slice()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		docs := make([]*document.Document, 0, len(ids))
		for _, id := range ids {
			doc, ok := getDoc(view, id)
			if !ok {
				continue
			}
			ok2, err := f.ApplyOnDocument(doc)
			if err != nil {
				return nil, err
			}
			if ok2 {
				docs = append(docs, doc)
			}
		}
		return docs, nil
	}
	var docs []*document.Document
	var scanErr error
	view.Ascend(func(_, val value.Value) bool {
		doc, ok := document.FromValue(val)
		if !ok {
			return true
		}
		ok2, err := f.ApplyOnDocument(doc)
		if err != nil {
			scanErr = err
			return false
		}
		if ok2 {
			docs = append(docs, doc)
		}
		return true
	})
	return docs, scanErr
}

// sortedScan reads documents in the sort field's index order when the
// filter is the unrestricted All() filter, that field carries a ready
// index, and the index reaches as many documents as the view holds
// entries — the one case spec.md §4.4 singles out as avoiding a buffered
// sort. Every other combination, including documents that lack the sort
// field (the index does not store them), buffers the matched documents
// and sorts them in memory.
func (c *Collection) sortedScan(view kvstore.Map, idx *index.Manager, f filter.Filter, matched filter.IDSet, matchedOk bool, spec SortSpec) ([]*document.Document, error) {
	if idx != nil && f == filter.All() {
		if reader, ok := idx.Reader(spec.Field); ok {
			if docs := indexOrderedScan(view, reader, spec.Order); len(docs) == view.Size() {
				return docs, nil
			}
		}
	}
	docs, err := c.naturalScan(view, f, matched, matchedOk)
	if err != nil {
		return nil, err
	}
	sortDocs(docs, spec)
	return docs, nil
}

func indexOrderedScan(view kvstore.Map, reader filter.IndexReader, order SortOrder) []*document.Document {
	var docs []*document.Document
	visit := func(_ value.Value, ids filter.IDSet) bool {
		list := ids.Slice()
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		for _, id := range list {
			if doc, ok := getDoc(view, id); ok {
				docs = append(docs, doc)
			}
		}
		return true
	}
	if order == Descending {
		reader.Descend(value.Null(), false, visit)
	} else {
		reader.Ascend(value.Null(), false, visit)
	}
	return docs
}

// sortDocs orders docs by spec.Field. value.Compare is nulls-first, which
// is exactly the ascending default; reversing the comparands for a
// descending sort places nulls last instead of merely reversing positions.
func sortDocs(docs []*document.Document, spec SortSpec) {
	sort.SliceStable(docs, func(i, j int) bool {
		vi, _ := docs[i].GetPath(spec.Field)
		vj, _ := docs[j].GetPath(spec.Field)
		if spec.Order == Descending {
			return value.Compare(vj, vi) < 0
		}
		return value.Compare(vi, vj) < 0
	})
}

func applySkipLimit(docs []*document.Document, skip, limit int) []*document.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

// projectAll rewrites each document down to the requested dotted paths,
// assigning null for any path a document doesn't have (spec.md §4.4).
func projectAll(docs []*document.Document, paths []string) []*document.Document {
	out := make([]*document.Document, len(docs))
	for i, d := range docs {
		out[i] = project(d, paths)
	}
	return out
}

func project(d *document.Document, paths []string) *document.Document {
	proj := document.New()
	if id, ok := d.ID(); ok {
		proj.SetID(id)
	}
	for _, p := range paths {
		v, ok := d.GetPath(p)
		if !ok {
			v = value.Null()
		}
		proj.Set(p, v)
	}
	return proj
}

func getDoc(view kvstore.Map, id document.ID) (*document.Document, bool) {
	v, ok := view.Get(id.Value())
	if !ok {
		return nil, false
	}
	return document.FromValue(v)
}
