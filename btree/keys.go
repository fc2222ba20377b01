// Package btree implements an ordered index over fixed-width binary keys,
// mapping each key to a RowId. It is built of leaf and internal nodes, each
// stored in exactly one buffer-pool page, and persists its root through a
// shared Index Roots page.
package btree

import "encoding/binary"

// RowId addresses a heap tuple: the page holding it and its slot number
// within that page. It is the value type stored in leaves.
type RowId struct {
	PageID  int32
	SlotNum uint32
}

// InvalidRowID is the sentinel RowId written for slots that hold no tuple.
var InvalidRowID = RowId{PageID: -1, SlotNum: 0}

const rowIDSize = 8 // int32 page id + uint32 slot num

func encodeRowID(buf []byte, r RowId) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], r.SlotNum)
}

func decodeRowID(buf []byte) RowId {
	return RowId{
		PageID:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		SlotNum: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// KeyManager is a witness carrying a fixed key width and a total ordering
// for one tree instance. A tree holds exactly one key type; every key
// compared through it must be KeySize() bytes long.
type KeyManager interface {
	// KeySize returns the fixed width, in bytes, of every key in the tree.
	KeySize() int
	// Compare returns -1, 0 or 1 as a is less than, equal to, or greater
	// than b. Comparisons must be total, deterministic, and stable across
	// restarts.
	Compare(a, b []byte) int
}

// Int64KeyManager orders keys as big-endian encoded signed 64-bit integers,
// so lexicographic byte comparison matches numeric ordering.
type Int64KeyManager struct{}

func (Int64KeyManager) KeySize() int { return 8 }

func (Int64KeyManager) Compare(a, b []byte) int {
	// EncodeInt64Key already flipped the sign bit so that unsigned
	// ordering of the stored bytes matches signed ordering; compare them
	// as-is.
	ua := binary.BigEndian.Uint64(a)
	ub := binary.BigEndian.Uint64(b)
	switch {
	case ua < ub:
		return -1
	case ua > ub:
		return 1
	default:
		return 0
	}
}

// EncodeInt64Key encodes v as a fixed-width key usable with Int64KeyManager.
func EncodeInt64Key(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// DecodeInt64Key is the inverse of EncodeInt64Key.
func DecodeInt64Key(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf) ^ (1 << 63))
}
