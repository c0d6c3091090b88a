package rtree

import (
	"math"
	"sort"
)

// Search returns every id whose stored bbox intersects query (spec.md
// §4.7 "Search"), descending only into subtrees whose bbox intersects.
func (t *RTree) Search(query Bbox) ([]uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	root := t.rootPage()
	if root == NonePage {
		return nil, nil
	}
	var out []uint64
	if err := t.searchNode(root, query, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchContained returns every id whose stored bbox lies entirely
// within query (spec.md §4.7 "SearchContained").
func (t *RTree) SearchContained(query Bbox) ([]uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	root := t.rootPage()
	if root == NonePage {
		return nil, nil
	}
	var out []uint64
	if err := t.searchNode(root, query, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *RTree) searchNode(pageID uint64, query Bbox, containedOnly bool, out *[]uint64) error {
	node, err := t.readNode(pageID)
	if err != nil {
		return err
	}
	if node.IsLeaf() {
		for _, e := range node.Leaves {
			if containedOnly {
				if query.Contains(e.Bbox) {
					*out = append(*out, e.ID)
				}
			} else if query.Intersects(e.Bbox) {
				*out = append(*out, e.ID)
			}
		}
		return nil
	}
	for _, c := range node.Children {
		if !query.Intersects(c.Bbox) {
			continue
		}
		if err := t.searchNode(c.Child, query, containedOnly, out); err != nil {
			return err
		}
	}
	return nil
}

// KNNResult is one nearest-neighbor hit, in increasing distance order.
type KNNResult struct {
	ID       uint64
	Distance float64
}

// KNN returns up to k ids with bboxes nearest to (px, py), never farther
// than maxDistance (pass +Inf or 0 for unbounded), per spec.md §4.7's
// "KNN" algorithm: a running pruning bound tightened as the result set
// fills past k, sorted-by-mindist child visitation order at each internal
// node, and a final sort-and-truncate.
func (t *RTree) KNN(px, py float64, k int, maxDistance float64) ([]KNNResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	root := t.rootPage()
	if root == NonePage {
		return nil, nil
	}

	bound := maxDistance
	if bound <= 0 {
		bound = math.Inf(1)
	}

	s := &knnSearch{tree: t, px: px, py: py, k: k, maxDist: bound}
	if err := s.recurse(root); err != nil {
		return nil, err
	}

	sort.Slice(s.results, func(i, j int) bool { return s.results[i].Distance < s.results[j].Distance })
	if len(s.results) > k {
		s.results = s.results[:k]
	}
	return s.results, nil
}

type knnSearch struct {
	tree    *RTree
	px, py  float64
	k       int
	maxDist float64
	results []KNNResult
}

func (s *knnSearch) recurse(pageID uint64) error {
	node, err := s.tree.readNode(pageID)
	if err != nil {
		return err
	}

	if node.IsLeaf() {
		for _, e := range node.Leaves {
			d := e.Bbox.PointDistance(s.px, s.py)
			if d > s.maxDist {
				continue
			}
			s.results = append(s.results, KNNResult{ID: e.ID, Distance: d})
			if len(s.results) > s.k {
				sort.Slice(s.results, func(i, j int) bool { return s.results[i].Distance < s.results[j].Distance })
				s.results = s.results[:s.k]
				s.maxDist = s.results[s.k-1].Distance
			}
		}
		return nil
	}

	type scoredChild struct {
		child uint64
		dist  float64
	}
	scored := make([]scoredChild, len(node.Children))
	for i, c := range node.Children {
		scored[i] = scoredChild{child: c.Child, dist: c.Bbox.PointDistance(s.px, s.py)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].dist < scored[j].dist })

	for _, c := range scored {
		if c.dist > s.maxDist {
			continue
		}
		if err := s.recurse(c.child); err != nil {
			return err
		}
	}
	return nil
}
