package btree

import "minisql/disk"

// IndexIterator is a single-pass, forward-only cursor over a tree's leaves.
// It pins exactly the leaf it is currently positioned on, releasing it
// before advancing to the next. It is not safe to use after the
// underlying tree has been mutated.
type IndexIterator struct {
	tree *Tree
	leaf *leafNode
	idx  int
	done bool
}

// Begin returns an iterator positioned at the first entry in key order.
func (t *Tree) Begin() (*IndexIterator, error) {
	leaf, err := t.FindLeaf(nil, true)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return &IndexIterator{tree: t, done: true}, nil
	}
	it := &IndexIterator{tree: t, leaf: leaf, idx: 0}
	it.skipEmptyLeaves()
	return it, nil
}

// Seek returns an iterator positioned at the first entry whose key is >=
// key.
func (t *Tree) Seek(key []byte) (*IndexIterator, error) {
	leaf, err := t.FindLeaf(key, false)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return &IndexIterator{tree: t, done: true}, nil
	}
	idx, _ := leaf.findKey(t.keyManager, key)
	it := &IndexIterator{tree: t, leaf: leaf, idx: idx}
	it.skipEmptyLeaves()
	return it, nil
}

// skipEmptyLeaves advances across leaves with no remaining entries at idx,
// marking the iterator done once the forward chain is exhausted.
func (it *IndexIterator) skipEmptyLeaves() {
	for !it.done && it.idx >= it.leaf.size() {
		next := it.leaf.nextPageID()
		it.tree.unpin(it.leaf.pageID(), false)
		it.leaf = nil
		if next == disk.InvalidPageID {
			it.done = true
			return
		}
		page, err := it.tree.fetch(next)
		if err != nil {
			it.done = true
			return
		}
		it.leaf = asLeafNode(page)
		it.idx = 0
	}
}

// End reports whether the iterator has advanced past the last entry.
func (it *IndexIterator) End() bool {
	return it.done
}

// Key returns the key at the iterator's current position. Must not be
// called once End() is true.
func (it *IndexIterator) Key() []byte {
	return it.leaf.keyAt(it.idx)
}

// Value returns the RowId at the iterator's current position. Must not be
// called once End() is true.
func (it *IndexIterator) Value() RowId {
	return it.leaf.valueAt(it.idx)
}

// Next advances the iterator by one entry.
func (it *IndexIterator) Next() {
	if it.done {
		return
	}
	it.idx++
	it.skipEmptyLeaves()
}

// Close releases the iterator's pinned leaf, if any. Safe to call multiple
// times and after End() is true.
func (it *IndexIterator) Close() {
	if it.leaf != nil {
		it.tree.unpin(it.leaf.pageID(), false)
		it.leaf = nil
	}
	it.done = true
}
