package rtree

// Remove deletes the (bbox, id) entry from the tree. It returns
// (false, nil) if no matching entry is found, grounded on
// original_source/nitrite-spatial/src/disk_rtree/rtree_impl.rs's
// remove_recursive: descend into every child whose bbox intersects (not
// just contains) the target bbox, since floating-point bbox storage can
// make containment checks miss the exact entry; on the way back up,
// recompute each visited parent's child bbox and prune children left
// empty by the removal (spec.md §4.7 "Remove").
func (t *RTree) Remove(bbox Bbox, id uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	root := t.rootPage()
	if root == NonePage {
		return false, nil
	}

	removed, empty, err := t.removeRecursive(root, bbox, id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if err := t.pager.addEntryCount(-1); err != nil {
		return false, err
	}

	if empty {
		if err := t.freePage(root); err != nil {
			return false, err
		}
		if err := t.pager.setRoot(NonePage, 0); err != nil {
			return false, err
		}
		return true, nil
	}

	// If the root is internal with a single child, collapse a level
	// (mirrors rtree_impl.rs's root-shrink after a recursive remove).
	rootNode, err := t.readNode(root)
	if err != nil {
		return false, err
	}
	if !rootNode.IsLeaf() && len(rootNode.Children) == 1 {
		onlyChild := rootNode.Children[0].Child
		if err := t.freePage(root); err != nil {
			return false, err
		}
		height := t.pager.snapshotHeader().Height
		newHeight := uint32(0)
		if height > 0 {
			newHeight = height - 1
		}
		if err := t.pager.setRoot(onlyChild, newHeight); err != nil {
			return false, err
		}
	}
	return true, nil
}

// removeRecursive reports whether an entry was removed from the subtree
// rooted at pageID, and whether that subtree is now empty (so the caller
// should prune it).
func (t *RTree) removeRecursive(pageID uint64, bbox Bbox, id uint64) (removed, empty bool, err error) {
	node, err := t.readNode(pageID)
	if err != nil {
		return false, false, err
	}

	if node.IsLeaf() {
		idx := -1
		for i, e := range node.Leaves {
			if e.ID == id && e.Bbox.Equal(bbox) {
				idx = i
				break
			}
		}
		if idx == -1 {
			return false, false, nil
		}
		node.Leaves = append(node.Leaves[:idx], node.Leaves[idx+1:]...)
		if len(node.Leaves) == 0 {
			return true, true, nil
		}
		t.writeNode(pageID, node)
		return true, false, nil
	}

	for i, c := range node.Children {
		if !c.Bbox.Intersects(bbox) {
			continue
		}
		childRemoved, childEmpty, err := t.removeRecursive(c.Child, bbox, id)
		if err != nil {
			return false, false, err
		}
		if !childRemoved {
			continue
		}
		if childEmpty {
			if err := t.freePage(c.Child); err != nil {
				return false, false, err
			}
			node.Children = append(node.Children[:i], node.Children[i+1:]...)
		} else {
			childNode, err := t.readNode(c.Child)
			if err != nil {
				return false, false, err
			}
			node.Children[i].Bbox = childNode.ComputeBbox()
		}
		if len(node.Children) == 0 {
			return true, true, nil
		}
		t.writeNode(pageID, node)
		return true, false, nil
	}
	return false, false, nil
}
