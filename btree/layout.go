package btree

import (
	"encoding/binary"

	"minisql/common"
	"minisql/disk"
)

// pageType discriminates the two node kinds sharing the common header.
type pageType uint32

const (
	leafPageType     pageType = 1
	internalPageType pageType = 2
)

// Common header: {page_type u32; size i32; max_size i32; page_id i32;
// parent_page_id i32; key_size u32}. Leaf pages carry one more field,
// next_page_id i32, immediately after.
const (
	offPageType       = 0
	offSize           = 4
	offMaxSize        = 8
	offPageID         = 12
	offParentPageID   = 16
	offKeySize        = 20
	commonHeaderSize  = 24
	offNextPageID     = commonHeaderSize
	leafHeaderSize    = commonHeaderSize + 4
	internalEntryTail = 4 // child page id width in an internal entry
)

func readPageType(data []byte) pageType {
	return pageType(binary.LittleEndian.Uint32(data[offPageType:]))
}

func writePageType(data []byte, t pageType) {
	binary.LittleEndian.PutUint32(data[offPageType:], uint32(t))
}

func readSize(data []byte) int {
	return int(int32(binary.LittleEndian.Uint32(data[offSize:])))
}

func writeSize(data []byte, size int) {
	binary.LittleEndian.PutUint32(data[offSize:], uint32(int32(size)))
}

func readMaxSize(data []byte) int {
	return int(int32(binary.LittleEndian.Uint32(data[offMaxSize:])))
}

func writeMaxSize(data []byte, maxSize int) {
	binary.LittleEndian.PutUint32(data[offMaxSize:], uint32(int32(maxSize)))
}

func readPageID(data []byte) int {
	return int(int32(binary.LittleEndian.Uint32(data[offPageID:])))
}

func writePageID(data []byte, id int) {
	binary.LittleEndian.PutUint32(data[offPageID:], uint32(int32(id)))
}

func readParentPageID(data []byte) int {
	return int(int32(binary.LittleEndian.Uint32(data[offParentPageID:])))
}

func writeParentPageID(data []byte, id int) {
	binary.LittleEndian.PutUint32(data[offParentPageID:], uint32(int32(id)))
}

func readKeySize(data []byte) int {
	return int(binary.LittleEndian.Uint32(data[offKeySize:]))
}

func writeKeySize(data []byte, size int) {
	binary.LittleEndian.PutUint32(data[offKeySize:], uint32(size))
}

func readNextPageID(data []byte) int {
	return int(int32(binary.LittleEndian.Uint32(data[offNextPageID:])))
}

func writeNextPageID(data []byte, id int) {
	binary.LittleEndian.PutUint32(data[offNextPageID:], uint32(int32(id)))
}

// leafEntrySize and internalEntrySize give the on-disk stride of one
// (key, value) pair for a tree with the given key width.
func leafEntrySize(keySize int) int     { return keySize + rowIDSize }
func internalEntrySize(keySize int) int { return keySize + internalEntryTail }

// maxLeafSize/maxInternalSize choose the node order one slot below the
// page's raw entry capacity: m = (PageSize - header_size)/entry_size - 1. Insert appends
// before checking size against maxSize, so a node temporarily holds
// maxSize+1 entries between the write and the split that drains it back
// down; the reserved slot is what keeps that entry inside the page.
func maxLeafSize(keySize int) int {
	return (disk.PageSize-leafHeaderSize)/leafEntrySize(keySize) - 1
}

func maxInternalSize(keySize int) int {
	return (disk.PageSize-commonHeaderSize)/internalEntrySize(keySize) - 1
}

// minSize is ceil(maxSize/2); the root is exempt from this bound.
func minSize(maxSize int) int {
	return common.CeilDiv(maxSize, 2)
}
