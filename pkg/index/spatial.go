package index

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/rtree"
	"github.com/nitrited/nitrite/pkg/value"
)

// SpatialIndex is a spec.md §3 "spatial" index descriptor backed by a
// disk-resident rtree.RTree rather than an ordered kvstore.Map — bbox
// queries (intersects/contains/nearest) have no meaningful total order to
// navigate, so this does not implement filter.IndexReader.
type SpatialIndex struct {
	desc Descriptor
	tree *rtree.RTree
}

func newSpatialIndex(desc Descriptor, path string, opts rtree.Options) (*SpatialIndex, error) {
	tree, err := rtree.OpenOrCreate(path, opts)
	if err != nil {
		return nil, err
	}
	return &SpatialIndex{desc: desc, tree: tree}, nil
}

func (si *SpatialIndex) Descriptor() Descriptor { return si.desc }

// bboxFor reads the index's single field as a 4-element [minX, minY, maxX,
// maxY] array, the convention a host application stores spatial values
// under.
func (si *SpatialIndex) bboxFor(doc *document.Document) (rtree.Bbox, bool) {
	if len(si.desc.Fields) == 0 {
		return rtree.Bbox{}, false
	}
	v, ok := doc.GetPath(si.desc.Fields[0])
	if !ok || v.Kind() != value.KindArray || len(v.Array()) != 4 {
		return rtree.Bbox{}, false
	}
	arr := v.Array()
	coords := make([]float64, 4)
	for i, c := range arr {
		switch c.Kind() {
		case value.KindFloat64, value.KindFloat32:
			coords[i] = c.Float()
		case value.KindInt32, value.KindInt64:
			coords[i] = float64(c.Int())
		default:
			return rtree.Bbox{}, false
		}
	}
	return rtree.Bbox{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}, true
}

func (si *SpatialIndex) Insert(id document.ID, doc *document.Document) error {
	bbox, ok := si.bboxFor(doc)
	if !ok {
		return nil
	}
	return si.tree.Insert(bbox, uint64(id))
}

func (si *SpatialIndex) Remove(id document.ID, doc *document.Document) error {
	bbox, ok := si.bboxFor(doc)
	if !ok {
		return nil
	}
	_, err := si.tree.Remove(bbox, uint64(id))
	return err
}

// Intersects returns every document id whose bbox intersects query.
func (si *SpatialIndex) Intersects(query rtree.Bbox) ([]document.ID, error) {
	ids, err := si.tree.Search(query)
	if err != nil {
		return nil, err
	}
	return toDocIDs(ids), nil
}

// Within returns every document id whose bbox lies entirely within query.
func (si *SpatialIndex) Within(query rtree.Bbox) ([]document.ID, error) {
	ids, err := si.tree.SearchContained(query)
	if err != nil {
		return nil, err
	}
	return toDocIDs(ids), nil
}

// Nearest returns up to k document ids nearest to (x, y), in ascending
// distance order.
func (si *SpatialIndex) Nearest(x, y float64, k int) ([]document.ID, error) {
	results, err := si.tree.KNN(x, y, k, 0)
	if err != nil {
		return nil, err
	}
	out := make([]document.ID, len(results))
	for i, r := range results {
		out[i] = document.ID(r.ID)
	}
	return out, nil
}

func (si *SpatialIndex) Rebuild() (rtree.BulkLoadResult, error) {
	return si.tree.Rebuild()
}

func (si *SpatialIndex) Stats() rtree.Stats {
	return si.tree.Stats()
}

func (si *SpatialIndex) Close() error {
	if si.tree == nil {
		return nil
	}
	return si.tree.Close()
}

func toDocIDs(ids []uint64) []document.ID {
	out := make([]document.ID, len(ids))
	for i, id := range ids {
		out[i] = document.ID(id)
	}
	return out
}
