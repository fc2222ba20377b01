package btree

import (
	"sort"

	"minisql/disk"
	"minisql/disk/pages"
)

// leafNode is the tree's view of a leaf page: header manipulation plus a
// packed array of (key, RowId) pairs kept in strictly increasing key order,
// linked forward to the next leaf via next_page_id.
type leafNode struct {
	page    *pages.Page
	keySize int
}

func newLeafNode(page *pages.Page, keySize, maxSize int) *leafNode {
	data := page.Data
	writePageType(data, leafPageType)
	writeSize(data, 0)
	writeMaxSize(data, maxSize)
	writePageID(data, page.GetPageID())
	writeParentPageID(data, disk.InvalidPageID)
	writeKeySize(data, keySize)
	writeNextPageID(data, disk.InvalidPageID)
	return &leafNode{page: page, keySize: keySize}
}

func asLeafNode(page *pages.Page) *leafNode {
	return &leafNode{page: page, keySize: readKeySize(page.Data)}
}

func (n *leafNode) pageID() int         { return readPageID(n.page.Data) }
func (n *leafNode) size() int           { return readSize(n.page.Data) }
func (n *leafNode) maxSize() int        { return readMaxSize(n.page.Data) }
func (n *leafNode) parentPageID() int   { return readParentPageID(n.page.Data) }
func (n *leafNode) setParentPageID(id int) {
	writeParentPageID(n.page.Data, id)
}
func (n *leafNode) nextPageID() int    { return readNextPageID(n.page.Data) }
func (n *leafNode) setNextPageID(id int) {
	writeNextPageID(n.page.Data, id)
}

func (n *leafNode) entryOffset(i int) int {
	return leafHeaderSize + i*leafEntrySize(n.keySize)
}

func (n *leafNode) keyAt(i int) []byte {
	off := n.entryOffset(i)
	return n.page.Data[off : off+n.keySize]
}

func (n *leafNode) valueAt(i int) RowId {
	off := n.entryOffset(i) + n.keySize
	return decodeRowID(n.page.Data[off : off+rowIDSize])
}

func (n *leafNode) setEntryAt(i int, key []byte, val RowId) {
	off := n.entryOffset(i)
	copy(n.page.Data[off:off+n.keySize], key)
	encodeRowID(n.page.Data[off+n.keySize:off+n.keySize+rowIDSize], val)
}

// findKey returns the index of key if present, and the index it would need
// to be inserted at to keep the entries sorted otherwise.
func (n *leafNode) findKey(cmp KeyManager, key []byte) (index int, found bool) {
	size := n.size()
	i := sort.Search(size, func(i int) bool {
		return cmp.Compare(n.keyAt(i), key) >= 0
	})
	if i < size && cmp.Compare(n.keyAt(i), key) == 0 {
		return i, true
	}
	return i, false
}

// insertAt shifts entries from i onward one slot to the right and writes
// (key, val) into the freed slot.
func (n *leafNode) insertAt(i int, key []byte, val RowId) {
	size := n.size()
	stride := leafEntrySize(n.keySize)
	src := n.page.Data[n.entryOffset(i) : n.entryOffset(size)]
	dst := n.page.Data[n.entryOffset(i)+stride : n.entryOffset(size)+stride]
	copy(dst, src)
	n.setEntryAt(i, key, val)
	writeSize(n.page.Data, size+1)
}

// removeAt deletes the entry at i, shifting later entries left.
func (n *leafNode) removeAt(i int) {
	size := n.size()
	stride := leafEntrySize(n.keySize)
	dst := n.page.Data[n.entryOffset(i):n.entryOffset(size - 1)]
	src := n.page.Data[n.entryOffset(i)+stride : n.entryOffset(size)]
	copy(dst, src)
	writeSize(n.page.Data, size-1)
}

// moveHalfTo appends this node's upper half onto right, using the same
// tie-break: the left keeps ceil(size/2), the right receives the rest.
func (n *leafNode) moveHalfTo(right *leafNode) {
	size := n.size()
	keep := (size + 1) / 2
	for i := keep; i < size; i++ {
		right.insertAt(i-keep, n.keyAt(i), n.valueAt(i))
	}
	writeSize(n.page.Data, keep)
}

// moveAllTo appends every entry of this node after dest's entries, used by
// Coalesce to merge two neighbors; dest must be the left one of the pair so
// that key order is preserved.
func (n *leafNode) moveAllTo(dest *leafNode) {
	size := n.size()
	for i := 0; i < size; i++ {
		dest.insertAt(dest.size(), n.keyAt(i), n.valueAt(i))
	}
	writeSize(n.page.Data, 0)
}

// firstKey returns the key stored at slot 0, used to derive the separator
// promoted to the parent after a split, or to update it after redistribute.
func (n *leafNode) firstKey() []byte {
	return n.keyAt(0)
}
