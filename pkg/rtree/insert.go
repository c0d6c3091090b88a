package rtree

import "sort"

// pathStep records one descent step: the page id visited and the index
// of the child chosen, so propagateSplit can walk back up without
// re-descending (spec.md §4.7 "choose_leaf ... pushing each
// (parent-id, child-index) onto a path").
type pathStep struct {
	pageID    uint64
	childIdx  int
}

// Insert adds (bbox, id) to the tree, splitting and propagating as needed
// (spec.md §4.7 Insert). An empty tree allocates its first leaf page and
// becomes height 1.
func (t *RTree) Insert(bbox Bbox, id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.insertUnlocked(bbox, id)
}

// chooseLeaf descends from pageID to the leaf that should receive bbox,
// at each internal node picking the child requiring minimum enlargement,
// tie-broken by the child's current (smaller) area (spec.md §4.7).
func (t *RTree) chooseLeaf(pageID uint64, bbox Bbox, path *[]pathStep) (uint64, error) {
	node, err := t.readNode(pageID)
	if err != nil {
		return 0, err
	}
	if node.IsLeaf() {
		return pageID, nil
	}

	bestIdx := 0
	bestEnlargement := node.Children[0].Bbox.EnlargementArea(bbox)
	bestArea := node.Children[0].Bbox.Area()
	for i := 1; i < len(node.Children); i++ {
		c := node.Children[i]
		enlargement := c.Bbox.EnlargementArea(bbox)
		area := c.Bbox.Area()
		if enlargement < bestEnlargement || (enlargement == bestEnlargement && area < bestArea) {
			bestIdx, bestEnlargement, bestArea = i, enlargement, area
		}
	}
	*path = append(*path, pathStep{pageID: pageID, childIdx: bestIdx})
	return t.chooseLeaf(node.Children[bestIdx].Child, bbox, path)
}

type splitResult struct {
	pageID uint64
	bbox   Bbox
}

// insertIntoLeaf appends entry to the leaf at leafID, splitting it if it
// overflows MaxLeafEntries.
func (t *RTree) insertIntoLeaf(leafID uint64, entry LeafEntry) (*splitResult, error) {
	node, err := t.readNode(leafID)
	if err != nil {
		return nil, err
	}
	node.Leaves = append(node.Leaves, entry)

	if len(node.Leaves) <= MaxLeafEntries {
		t.writeNode(leafID, node)
		return nil, nil
	}

	remaining, overflow := splitLeafEntries(node.Leaves)
	node.Leaves = remaining
	t.writeNode(leafID, node)

	newPageID, err := t.allocatePage()
	if err != nil {
		return nil, err
	}
	newNode := newLeaf(overflow)
	t.writeNode(newPageID, newNode)
	return &splitResult{pageID: newPageID, bbox: newNode.ComputeBbox()}, nil
}

// splitLeafEntries sorts by x-midpoint and cuts at the middle
// (spec.md §4.7: "sorting entries on x-midpoint and cutting at the
// middle"; confirmed literal, not alternating x/y, by original_source).
func splitLeafEntries(entries []LeafEntry) (lo, hi []LeafEntry) {
	sorted := make([]LeafEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Bbox.CenterX() < sorted[j].Bbox.CenterX()
	})
	mid := len(sorted) / 2
	lo = append([]LeafEntry(nil), sorted[:mid]...)
	hi = append([]LeafEntry(nil), sorted[mid:]...)
	return
}

func splitChildEntries(children []ChildEntry) (lo, hi []ChildEntry) {
	sorted := make([]ChildEntry, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Bbox.CenterX() < sorted[j].Bbox.CenterX()
	})
	mid := len(sorted) / 2
	lo = append([]ChildEntry(nil), sorted[:mid]...)
	hi = append([]ChildEntry(nil), sorted[mid:]...)
	return
}

// updatePathBboxes refreshes each ancestor's child-bbox from its child's
// recomputed bbox, without any split to propagate.
func (t *RTree) updatePathBboxes(path []pathStep) error {
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		parent, err := t.readNode(step.pageID)
		if err != nil {
			return err
		}
		childNode, err := t.readNode(parent.Children[step.childIdx].Child)
		if err != nil {
			return err
		}
		parent.Children[step.childIdx].Bbox = childNode.ComputeBbox()
		t.writeNode(step.pageID, parent)
	}
	return nil
}

// propagateSplit walks path bottom-up, installing the new sibling at each
// parent and splitting further if that parent overflows
// MaxInternalChildren. If the walk exhausts path, a new root is allocated
// over the old root and the final new sibling, and the tree grows by one
// level (spec.md §4.7, step 5).
func (t *RTree) propagateSplit(path []pathStep, newPage uint64, newBbox Bbox) error {
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		parent, err := t.readNode(step.pageID)
		if err != nil {
			return err
		}

		childNode, err := t.readNode(parent.Children[step.childIdx].Child)
		if err != nil {
			return err
		}
		parent.Children[step.childIdx].Bbox = childNode.ComputeBbox()
		parent.Children = append(parent.Children, ChildEntry{Bbox: newBbox, Child: newPage})

		if len(parent.Children) <= MaxInternalChildren {
			t.writeNode(step.pageID, parent)
			return t.updatePathBboxes(path[:i])
		}

		remaining, overflow := splitChildEntries(parent.Children)
		parent.Children = remaining
		t.writeNode(step.pageID, parent)

		siblingID, err := t.allocatePage()
		if err != nil {
			return err
		}
		sibling := newInternal(parent.Level, overflow)
		t.writeNode(siblingID, sibling)

		newPage, newBbox = siblingID, sibling.ComputeBbox()
	}

	// Every ancestor absorbed or re-split; grow the root.
	oldRoot := t.rootPage()
	oldRootNode, err := t.readNode(oldRoot)
	if err != nil {
		return err
	}
	height := t.pager.snapshotHeader().Height

	newRootID, err := t.allocatePage()
	if err != nil {
		return err
	}
	newRoot := newInternal(height, []ChildEntry{
		{Bbox: oldRootNode.ComputeBbox(), Child: oldRoot},
		{Bbox: newBbox, Child: newPage},
	})
	t.writeNode(newRootID, newRoot)
	return t.pager.setRoot(newRootID, height+1)
}
