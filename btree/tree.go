package btree

import (
	"fmt"

	"minisql/buffer"
	"minisql/disk"
	"minisql/disk/pages"
)

// Tree is an ordered map from a fixed-width binary key to a RowId, backed
// by leaf and internal pages fetched through a buffer pool. It owns no
// pages directly: every operation acquires pages through the pool and
// releases them before returning. The tree's root page id is persisted in
// a shared IndexRoots page, keyed by indexID.
type Tree struct {
	pool        *buffer.BufferPoolManager
	keyManager  KeyManager
	roots       *IndexRoots
	indexID     uint32
	maxLeaf     int
	maxInternal int
}

// NewTree opens a tree instance identified by indexID, sharing pool and
// roots with any other trees in the same database file.
func NewTree(pool *buffer.BufferPoolManager, keyManager KeyManager, roots *IndexRoots, indexID uint32) *Tree {
	keySize := keyManager.KeySize()
	return &Tree{
		pool:        pool,
		keyManager:  keyManager,
		roots:       roots,
		indexID:     indexID,
		maxLeaf:     maxLeafSize(keySize),
		maxInternal: maxInternalSize(keySize),
	}
}

func (t *Tree) rootPageID() (int, error) {
	return t.roots.GetRoot(t.indexID)
}

// IsEmpty reports whether the tree currently has no root, i.e. it holds no
// keys (never inserted, or every key since removed).
func (t *Tree) IsEmpty() (bool, error) {
	id, err := t.rootPageID()
	if err != nil {
		return false, err
	}
	return id == disk.InvalidPageID, nil
}

func (t *Tree) fetch(pageID int) (*pages.Page, error) {
	page, err := t.pool.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, ErrPoolExhausted
	}
	return page, nil
}

func (t *Tree) newPage() (*pages.Page, error) {
	page, err := t.pool.NewPage()
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, ErrPoolExhausted
	}
	return page, nil
}

func (t *Tree) unpin(pageID int, dirty bool) {
	t.pool.UnpinPage(pageID, dirty)
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// setChildParent rewrites a child page's parent_page_id field. The header
// offset is identical for leaf and internal pages, so this needs no type
// switch.
func (t *Tree) setChildParent(childID, parentID int) error {
	page, err := t.fetch(childID)
	if err != nil {
		return err
	}
	writeParentPageID(page.Data, parentID)
	t.unpin(childID, true)
	return nil
}

// FindLeaf descends from the root to the leaf that would contain key,
// unpinning every ancestor along the way. If leftmost is true, every
// internal node descends through slot 0 regardless of key. The returned
// leaf remains pinned; the caller must unpin it.
func (t *Tree) FindLeaf(key []byte, leftmost bool) (*leafNode, error) {
	rootID, err := t.rootPageID()
	if err != nil {
		return nil, err
	}
	if rootID == disk.InvalidPageID {
		return nil, nil
	}

	pageID := rootID
	for {
		page, err := t.fetch(pageID)
		if err != nil {
			return nil, err
		}
		if readPageType(page.Data) == leafPageType {
			return asLeafNode(page), nil
		}

		inode := asInternalNode(page)
		var childIdx int
		if leftmost {
			childIdx = 0
		} else {
			childIdx = inode.findChildIndex(t.keyManager, key)
		}
		childID := inode.childAt(childIdx)
		t.unpin(pageID, false)
		pageID = childID
	}
}

// GetValue looks up key, returning its RowId and true on a hit.
func (t *Tree) GetValue(key []byte) (RowId, bool, error) {
	leaf, err := t.FindLeaf(key, false)
	if err != nil {
		return RowId{}, false, err
	}
	if leaf == nil {
		return RowId{}, false, nil
	}
	defer t.unpin(leaf.pageID(), false)

	idx, found := leaf.findKey(t.keyManager, key)
	if !found {
		return RowId{}, false, nil
	}
	return leaf.valueAt(idx), true, nil
}

// Insert adds key/value if key is not already present, splitting nodes as
// needed to keep every non-root node within [min_size, max_size]. Returns
// false, making no change, if key already exists.
func (t *Tree) Insert(key []byte, value RowId) (bool, error) {
	if len(key) != t.keyManager.KeySize() {
		return false, fmt.Errorf("btree: key must be %d bytes, got %d", t.keyManager.KeySize(), len(key))
	}

	rootID, err := t.rootPageID()
	if err != nil {
		return false, err
	}
	if rootID == disk.InvalidPageID {
		return true, t.startNewTree(key, value)
	}

	leaf, err := t.FindLeaf(key, false)
	if err != nil {
		return false, err
	}

	idx, found := leaf.findKey(t.keyManager, key)
	if found {
		t.unpin(leaf.pageID(), false)
		return false, nil
	}

	leaf.insertAt(idx, key, value)
	if leaf.size() > leaf.maxSize() {
		return true, t.splitLeaf(leaf)
	}
	t.unpin(leaf.pageID(), true)
	return true, nil
}

// startNewTree bootstraps an empty tree: an internal root with a single
// empty leaf child, then inserts key/value into that leaf.
func (t *Tree) startNewTree(key []byte, value RowId) error {
	leafPage, err := t.newPage()
	if err != nil {
		return err
	}
	leaf := newLeafNode(leafPage, t.keyManager.KeySize(), t.maxLeaf)

	rootPage, err := t.newPage()
	if err != nil {
		t.unpin(leaf.pageID(), false)
		return err
	}
	root := newInternalNode(rootPage, t.keyManager.KeySize(), t.maxInternal)

	sentinel := make([]byte, t.keyManager.KeySize())
	root.setEntryAt(0, sentinel, leaf.pageID())
	writeSize(root.page.Data, 1)

	leaf.setParentPageID(root.pageID())
	leaf.insertAt(0, key, value)

	t.unpin(leaf.pageID(), true)
	t.unpin(root.pageID(), true)
	return t.roots.SetRoot(t.indexID, root.pageID())
}

// splitLeaf moves leaf's upper half to a new right sibling, links the
// leaves, and promotes the separator to the parent.
func (t *Tree) splitLeaf(leaf *leafNode) error {
	rightPage, err := t.newPage()
	if err != nil {
		t.unpin(leaf.pageID(), true)
		return err
	}
	right := newLeafNode(rightPage, t.keyManager.KeySize(), t.maxLeaf)

	leaf.moveHalfTo(right)
	right.setNextPageID(leaf.nextPageID())
	leaf.setNextPageID(right.pageID())

	sepKey := copyBytes(right.firstKey())
	parentID := leaf.parentPageID()
	right.setParentPageID(parentID)

	leafID, rightID := leaf.pageID(), right.pageID()
	t.unpin(leafID, true)
	t.unpin(rightID, true)

	return t.insertIntoParent(parentID, leafID, sepKey, rightID)
}

// splitInternal moves node's upper half to a new right sibling, re-parents
// the children that moved, and promotes the separator to the parent.
func (t *Tree) splitInternal(node *internalNode) error {
	rightPage, err := t.newPage()
	if err != nil {
		t.unpin(node.pageID(), true)
		return err
	}
	right := newInternalNode(rightPage, t.keyManager.KeySize(), t.maxInternal)

	node.moveHalfTo(right)

	for i := 0; i < right.size(); i++ {
		if err := t.setChildParent(right.childAt(i), right.pageID()); err != nil {
			return err
		}
	}

	sepKey := copyBytes(right.keyAt(0))
	parentID := node.parentPageID()
	right.setParentPageID(parentID)

	nodeID, rightID := node.pageID(), right.pageID()
	t.unpin(nodeID, true)
	t.unpin(rightID, true)

	return t.insertIntoParent(parentID, nodeID, sepKey, rightID)
}

// insertIntoParent installs (sepKey, rightID) into parentID immediately
// after the slot pointing to leftID, allocating a new root if leftID was
// the root, and recursing into a further split if the parent overflows.
func (t *Tree) insertIntoParent(parentID, leftID int, sepKey []byte, rightID int) error {
	if parentID == disk.InvalidPageID {
		rootPage, err := t.newPage()
		if err != nil {
			return err
		}
		root := newInternalNode(rootPage, t.keyManager.KeySize(), t.maxInternal)
		root.populateNewRoot(leftID, sepKey, rightID)
		rootID := root.pageID()
		t.unpin(rootID, true)

		if err := t.setChildParent(leftID, rootID); err != nil {
			return err
		}
		if err := t.setChildParent(rightID, rootID); err != nil {
			return err
		}
		return t.roots.SetRoot(t.indexID, rootID)
	}

	parentPage, err := t.fetch(parentID)
	if err != nil {
		return err
	}
	parent := asInternalNode(parentPage)

	leftIdx := parent.indexOfChild(leftID)
	parent.insertAt(leftIdx+1, sepKey, rightID)

	if parent.size() > parent.maxSize() {
		return t.splitInternal(parent)
	}
	t.unpin(parent.pageID(), true)
	return nil
}

// Remove deletes key if present, rebalancing via redistribution or
// coalescing to keep every non-root node within bounds, and collapsing the
// root when it underflows to a single child or an empty leaf. A no-op if
// key is absent.
func (t *Tree) Remove(key []byte) error {
	leaf, err := t.FindLeaf(key, false)
	if err != nil {
		return err
	}
	if leaf == nil {
		return nil
	}

	idx, found := leaf.findKey(t.keyManager, key)
	if !found {
		t.unpin(leaf.pageID(), false)
		return nil
	}
	leaf.removeAt(idx)
	return t.removeFromLeaf(leaf)
}

func (t *Tree) removeFromLeaf(leaf *leafNode) error {
	if leaf.parentPageID() == disk.InvalidPageID {
		empty := leaf.size() == 0
		t.unpin(leaf.pageID(), true)
		if empty {
			return t.roots.SetRoot(t.indexID, disk.InvalidPageID)
		}
		return nil
	}

	parentPage, err := t.fetch(leaf.parentPageID())
	if err != nil {
		return err
	}
	parent := asInternalNode(parentPage)
	soleChildOfRoot := parent.parentPageID() == disk.InvalidPageID && parent.size() == 1
	if soleChildOfRoot {
		// The bootstrap root is an internal node with a single leaf child;
		// that leaf has no sibling to redistribute with or coalesce into,
		// so it is exempt from the min-size bound, same as a bare leaf
		// root. Emptying it collapses the whole tree.
		empty := leaf.size() == 0
		leafID, parentID := leaf.pageID(), parent.pageID()
		t.unpin(leafID, true)
		if !empty {
			t.unpin(parentID, false)
			return nil
		}
		t.unpin(parentID, false)
		if _, err := t.pool.DeletePage(leafID); err != nil {
			return err
		}
		if _, err := t.pool.DeletePage(parentID); err != nil {
			return err
		}
		return t.roots.SetRoot(t.indexID, disk.InvalidPageID)
	}
	t.unpin(parent.pageID(), false)

	if leaf.size() >= minSize(leaf.maxSize()) {
		t.unpin(leaf.pageID(), true)
		return nil
	}
	return t.coalesceOrRedistributeLeaf(leaf)
}

func (t *Tree) coalesceOrRedistributeLeaf(leaf *leafNode) error {
	parentPage, err := t.fetch(leaf.parentPageID())
	if err != nil {
		return err
	}
	parent := asInternalNode(parentPage)

	i := parent.indexOfChild(leaf.pageID())
	siblingIdx, siblingIsLeft := pickSibling(i)
	siblingPage, err := t.fetch(parent.childAt(siblingIdx))
	if err != nil {
		return err
	}
	sibling := asLeafNode(siblingPage)

	if leaf.size()+sibling.size() >= sibling.maxSize() {
		t.redistributeLeaf(leaf, sibling, parent, i, siblingIdx, siblingIsLeft)
		t.unpin(leaf.pageID(), true)
		t.unpin(sibling.pageID(), true)
		t.unpin(parent.pageID(), true)
		return nil
	}

	var left, right *leafNode
	var removedSlot int
	if siblingIsLeft {
		left, right, removedSlot = sibling, leaf, i
	} else {
		left, right, removedSlot = leaf, sibling, siblingIdx
	}

	right.moveAllTo(left)
	left.setNextPageID(right.nextPageID())
	parent.removeAt(removedSlot)

	t.unpin(left.pageID(), true)
	rightID := right.pageID()
	t.unpin(rightID, false)
	if _, err := t.pool.DeletePage(rightID); err != nil {
		return err
	}

	return t.removeFromInternal(parent)
}

func (t *Tree) redistributeLeaf(leaf, sibling *leafNode, parent *internalNode, i, siblingIdx int, siblingIsLeft bool) {
	if siblingIsLeft {
		lastIdx := sibling.size() - 1
		k, v := copyBytes(sibling.keyAt(lastIdx)), sibling.valueAt(lastIdx)
		sibling.removeAt(lastIdx)
		leaf.insertAt(0, k, v)
		parent.setEntryAt(i, copyBytes(leaf.firstKey()), leaf.pageID())
		return
	}
	k, v := copyBytes(sibling.keyAt(0)), sibling.valueAt(0)
	sibling.removeAt(0)
	leaf.insertAt(leaf.size(), k, v)
	parent.setEntryAt(siblingIdx, copyBytes(sibling.firstKey()), sibling.pageID())
}

func (t *Tree) removeFromInternal(node *internalNode) error {
	if node.parentPageID() == disk.InvalidPageID {
		if node.size() == 1 {
			child := node.childAt(0)
			nodeID := node.pageID()
			t.unpin(nodeID, true)
			if err := t.setChildParent(child, disk.InvalidPageID); err != nil {
				return err
			}
			if err := t.roots.SetRoot(t.indexID, child); err != nil {
				return err
			}
			_, err := t.pool.DeletePage(nodeID)
			return err
		}
		t.unpin(node.pageID(), true)
		return nil
	}
	if node.size() >= minSize(node.maxSize()) {
		t.unpin(node.pageID(), true)
		return nil
	}
	return t.coalesceOrRedistributeInternal(node)
}

func (t *Tree) coalesceOrRedistributeInternal(node *internalNode) error {
	parentPage, err := t.fetch(node.parentPageID())
	if err != nil {
		return err
	}
	parent := asInternalNode(parentPage)

	i := parent.indexOfChild(node.pageID())
	siblingIdx, siblingIsLeft := pickSibling(i)
	siblingPage, err := t.fetch(parent.childAt(siblingIdx))
	if err != nil {
		return err
	}
	sibling := asInternalNode(siblingPage)

	if node.size()+sibling.size() >= sibling.maxSize() {
		if err := t.redistributeInternal(node, sibling, parent, i, siblingIdx, siblingIsLeft); err != nil {
			return err
		}
		t.unpin(node.pageID(), true)
		t.unpin(sibling.pageID(), true)
		t.unpin(parent.pageID(), true)
		return nil
	}

	var left, right *internalNode
	var removedSlot int
	var sepKey []byte
	if siblingIsLeft {
		left, right, removedSlot = sibling, node, i
		sepKey = copyBytes(parent.keyAt(i))
	} else {
		left, right, removedSlot = node, sibling, siblingIdx
		sepKey = copyBytes(parent.keyAt(siblingIdx))
	}

	movedChildren := make([]int, right.size())
	for k := range movedChildren {
		movedChildren[k] = right.childAt(k)
	}
	right.moveAllTo(left, sepKey)
	for _, cid := range movedChildren {
		if err := t.setChildParent(cid, left.pageID()); err != nil {
			return err
		}
	}
	parent.removeAt(removedSlot)

	t.unpin(left.pageID(), true)
	rightID := right.pageID()
	t.unpin(rightID, false)
	if _, err := t.pool.DeletePage(rightID); err != nil {
		return err
	}

	return t.removeFromInternal(parent)
}

func (t *Tree) redistributeInternal(node, sibling *internalNode, parent *internalNode, i, siblingIdx int, siblingIsLeft bool) error {
	keySize := t.keyManager.KeySize()
	if siblingIsLeft {
		lastIdx := sibling.size() - 1
		movedChild := sibling.childAt(lastIdx)
		oldSep := copyBytes(parent.keyAt(i))
		newSep := copyBytes(sibling.keyAt(lastIdx))
		sibling.removeAt(lastIdx)

		node.insertAt(0, make([]byte, keySize), movedChild)
		node.setEntryAt(1, oldSep, node.childAt(1))
		parent.setEntryAt(i, newSep, node.pageID())
		return t.setChildParent(movedChild, node.pageID())
	}

	movedChild := sibling.childAt(0)
	oldSep := copyBytes(parent.keyAt(siblingIdx))
	newSep := copyBytes(sibling.keyAt(1))
	node.insertAt(node.size(), oldSep, movedChild)
	sibling.removeAt(0)
	parent.setEntryAt(siblingIdx, newSep, sibling.pageID())
	return t.setChildParent(movedChild, node.pageID())
}

// pickSibling prefers the left neighbor (i-1) and falls back to the right (i+1).
func pickSibling(i int) (siblingIdx int, isLeft bool) {
	if i > 0 {
		return i - 1, true
	}
	return i + 1, false
}
