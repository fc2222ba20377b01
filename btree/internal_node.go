package btree

import (
	"encoding/binary"
	"sort"

	"minisql/disk"
	"minisql/disk/pages"
)

// internalNode is the tree's view of an internal page: header manipulation
// plus a packed array of (key, child_page_id) pairs. Slot 0's key is a
// sentinel and is never consulted during search or comparison.
type internalNode struct {
	page    *pages.Page
	keySize int
}

func newInternalNode(page *pages.Page, keySize, maxSize int) *internalNode {
	data := page.Data
	writePageType(data, internalPageType)
	writeSize(data, 0)
	writeMaxSize(data, maxSize)
	writePageID(data, page.GetPageID())
	writeParentPageID(data, disk.InvalidPageID)
	writeKeySize(data, keySize)
	return &internalNode{page: page, keySize: keySize}
}

func asInternalNode(page *pages.Page) *internalNode {
	return &internalNode{page: page, keySize: readKeySize(page.Data)}
}

func (n *internalNode) pageID() int       { return readPageID(n.page.Data) }
func (n *internalNode) size() int         { return readSize(n.page.Data) }
func (n *internalNode) maxSize() int      { return readMaxSize(n.page.Data) }
func (n *internalNode) parentPageID() int { return readParentPageID(n.page.Data) }
func (n *internalNode) setParentPageID(id int) {
	writeParentPageID(n.page.Data, id)
}

func (n *internalNode) entryOffset(i int) int {
	return commonHeaderSize + i*internalEntrySize(n.keySize)
}

func (n *internalNode) keyAt(i int) []byte {
	off := n.entryOffset(i)
	return n.page.Data[off : off+n.keySize]
}

func (n *internalNode) childAt(i int) int {
	off := n.entryOffset(i) + n.keySize
	return int(int32(binary.LittleEndian.Uint32(n.page.Data[off : off+4])))
}

func (n *internalNode) setEntryAt(i int, key []byte, child int) {
	off := n.entryOffset(i)
	copy(n.page.Data[off:off+n.keySize], key)
	binary.LittleEndian.PutUint32(n.page.Data[off+n.keySize:off+n.keySize+4], uint32(int32(child)))
}

// populateNewRoot sets up a freshly allocated internal page as a two-child
// root: (child0, sepKey, child1).
func (n *internalNode) populateNewRoot(child0 int, sepKey []byte, child1 int) {
	zero := make([]byte, n.keySize)
	n.setEntryAt(0, zero, child0)
	n.setEntryAt(1, sepKey, child1)
	writeSize(n.page.Data, 2)
}

// findChildIndex returns the greatest slot index i>=1 whose key <= key, or 0
// if no such slot exists, the rule used when descending during a lookup.
func (n *internalNode) findChildIndex(cmp KeyManager, key []byte) int {
	size := n.size()
	// binary search for the first slot (from 1) whose key > key
	i := sort.Search(size-1, func(i int) bool {
		return cmp.Compare(n.keyAt(i+1), key) > 0
	}) + 1
	return i - 1
}

// indexOfChild returns the slot index whose child pointer equals childID.
func (n *internalNode) indexOfChild(childID int) int {
	for i := 0; i < n.size(); i++ {
		if n.childAt(i) == childID {
			return i
		}
	}
	return -1
}

// insertAt shifts entries from i onward one slot right and writes (key,
// child) into the freed slot.
func (n *internalNode) insertAt(i int, key []byte, child int) {
	size := n.size()
	stride := internalEntrySize(n.keySize)
	src := n.page.Data[n.entryOffset(i):n.entryOffset(size)]
	dst := n.page.Data[n.entryOffset(i)+stride : n.entryOffset(size)+stride]
	copy(dst, src)
	n.setEntryAt(i, key, child)
	writeSize(n.page.Data, size+1)
}

// removeAt deletes the entry at i, shifting later entries left.
func (n *internalNode) removeAt(i int) {
	size := n.size()
	stride := internalEntrySize(n.keySize)
	dst := n.page.Data[n.entryOffset(i):n.entryOffset(size - 1)]
	src := n.page.Data[n.entryOffset(i)+stride : n.entryOffset(size)]
	copy(dst, src)
	writeSize(n.page.Data, size-1)
}

// moveHalfTo appends this node's upper half onto right, keeping the
// sentinel-at-slot-0 rule intact on both sides.
func (n *internalNode) moveHalfTo(right *internalNode) {
	size := n.size()
	keep := (size + 1) / 2
	for i := keep; i < size; i++ {
		right.insertAt(i-keep, n.keyAt(i), n.childAt(i))
	}
	writeSize(n.page.Data, keep)
}

// moveAllTo appends every entry of this node onto dest, used by Coalesce.
// dest's existing slot-0 sentinel is preserved; this node's slot 0 key is
// discarded (its child becomes a normal entry keyed by sepKey, the parent's
// separator for the slot that pointed at this node).
func (n *internalNode) moveAllTo(dest *internalNode, sepKey []byte) {
	size := n.size()
	dest.insertAt(dest.size(), sepKey, n.childAt(0))
	for i := 1; i < size; i++ {
		dest.insertAt(dest.size(), n.keyAt(i), n.childAt(i))
	}
	writeSize(n.page.Data, 0)
}
