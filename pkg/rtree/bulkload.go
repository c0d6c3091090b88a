package rtree

import (
	"sort"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

var errNotEmpty = nitriteerr.InvalidOperation("BulkLoad requires an empty tree; use Rebuild to reload an existing one")

// BulkLoadEntry is one (bbox, id) pair fed to BulkLoad.
type BulkLoadEntry struct {
	Bbox Bbox
	ID   uint64
}

// BulkLoadResult summarizes a BulkLoad/Rebuild run (spec.md §4.7).
type BulkLoadResult struct {
	EntriesIndexed int
	PagesBefore    int
	PagesAfter     int
	HeightBefore   int
	HeightAfter    int
}

// BulkLoad replaces the tree's contents with entries, ordered along a
// Hilbert curve before sequential insertion so spatially close entries
// land in the same or sibling pages (spec.md §4.7 "BulkLoad"). The tree
// must be empty; use Rebuild to reload an existing tree's entries.
func (t *RTree) BulkLoad(entries []BulkLoadEntry) (BulkLoadResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return BulkLoadResult{}, err
	}
	if t.rootPage() != NonePage {
		return BulkLoadResult{}, errNotEmpty
	}
	return t.bulkLoadLocked(entries)
}

// bulkLoadLocked assumes mu is held and the tree is empty.
func (t *RTree) bulkLoadLocked(entries []BulkLoadEntry) (BulkLoadResult, error) {
	heightBefore := int(t.pager.snapshotHeader().Height)
	pagesBefore := t.cache.len()

	sorted := make([]BulkLoadEntry, len(entries))
	copy(sorted, entries)
	if len(sorted) > 0 {
		overall := boundingExtent(bboxesOf(sorted))
		sort.Slice(sorted, func(i, j int) bool {
			return hilbertIndex(sorted[i].Bbox, overall) < hilbertIndex(sorted[j].Bbox, overall)
		})
	}

	for _, e := range sorted {
		if err := t.insertUnlocked(e.Bbox, e.ID); err != nil {
			return BulkLoadResult{}, err
		}
	}

	return BulkLoadResult{
		EntriesIndexed: len(sorted),
		PagesBefore:    pagesBefore,
		PagesAfter:     t.cache.len(),
		HeightBefore:   heightBefore,
		HeightAfter:    int(t.pager.snapshotHeader().Height),
	}, nil
}

func bboxesOf(entries []BulkLoadEntry) []Bbox {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Bbox, len(entries))
	for i, e := range entries {
		out[i] = e.Bbox
	}
	return out
}

// Rebuild drains every entry currently in the tree, discards the existing
// page layout, and bulk-loads the entries back in Hilbert order
// (spec.md §4.7 "Rebuild" — used to defragment after many removals).
func (t *RTree) Rebuild() (BulkLoadResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return BulkLoadResult{}, err
	}

	var entries []BulkLoadEntry
	root := t.rootPage()
	if root != NonePage {
		if err := t.collectEntries(root, &entries); err != nil {
			return BulkLoadResult{}, err
		}
	}

	heightBefore := int(t.pager.snapshotHeader().Height)
	pagesBefore := t.cache.len()

	if err := t.resetLocked(); err != nil {
		return BulkLoadResult{}, err
	}

	result, err := t.bulkLoadLocked(entries)
	if err != nil {
		return BulkLoadResult{}, err
	}
	result.PagesBefore = pagesBefore
	result.HeightBefore = heightBefore
	return result, nil
}

func (t *RTree) collectEntries(pageID uint64, out *[]BulkLoadEntry) error {
	node, err := t.readNode(pageID)
	if err != nil {
		return err
	}
	if node.IsLeaf() {
		for _, e := range node.Leaves {
			*out = append(*out, BulkLoadEntry{Bbox: e.Bbox, ID: e.ID})
		}
		return nil
	}
	for _, c := range node.Children {
		if err := t.collectEntries(c.Child, out); err != nil {
			return err
		}
	}
	return nil
}

// resetLocked frees every currently allocated page, clears the root, and
// zeroes the entry count, leaving the file's free list and allocator ready
// for a fresh layout. The caller re-inserts the drained entries afterward,
// so EntryCount must start back at 0 or Rebuild would double-count them.
func (t *RTree) resetLocked() error {
	root := t.rootPage()
	if root != NonePage {
		if err := t.freeSubtree(root); err != nil {
			return err
		}
	}
	if err := t.pager.addEntryCount(-int64(t.pager.snapshotHeader().EntryCount)); err != nil {
		return err
	}
	return t.pager.setRoot(NonePage, 0)
}

func (t *RTree) freeSubtree(pageID uint64) error {
	node, err := t.readNode(pageID)
	if err != nil {
		return err
	}
	if !node.IsLeaf() {
		for _, c := range node.Children {
			if err := t.freeSubtree(c.Child); err != nil {
				return err
			}
		}
	}
	return t.freePage(pageID)
}

// insertUnlocked is Insert's body without the mutex/checkOpen wrapper, for
// reuse by bulkLoadLocked which already holds the lock.
func (t *RTree) insertUnlocked(bbox Bbox, id uint64) error {
	root := t.rootPage()
	if root == NonePage {
		leafID, err := t.allocatePage()
		if err != nil {
			return err
		}
		t.writeNode(leafID, newLeaf([]LeafEntry{{Bbox: bbox, ID: id}}))
		if err := t.pager.setRoot(leafID, 1); err != nil {
			return err
		}
		return t.pager.addEntryCount(1)
	}

	var path []pathStep
	leafID, err := t.chooseLeaf(root, bbox, &path)
	if err != nil {
		return err
	}
	split, err := t.insertIntoLeaf(leafID, LeafEntry{Bbox: bbox, ID: id})
	if err != nil {
		return err
	}
	if err := t.pager.addEntryCount(1); err != nil {
		return err
	}
	if split == nil {
		return t.updatePathBboxes(path)
	}
	return t.propagateSplit(path, split.pageID, split.bbox)
}
