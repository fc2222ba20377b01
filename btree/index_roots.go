package btree

import (
	"encoding/binary"
	"fmt"

	"minisql/buffer"
	"minisql/disk"
)

// indexRootsRecordSize is the width of one (index_id, root_page_id) record:
// a u32 index id and an i32 root page id.
const indexRootsRecordSize = 8

// maxIndexRootsEntries bounds how many trees a single Index Roots page can
// track: (PageSize - count header) / record size.
const maxIndexRootsEntries = (disk.PageSize - 4) / indexRootsRecordSize

// IndexRoots is the singleton page mapping index_id -> root_page_id for
// every B+ tree instance sharing a database file. A Tree reads this mapping
// at the start of each operation; every structural change that creates a new
// root writes it back through the same page.
type IndexRoots struct {
	pool   *buffer.BufferPoolManager
	pageID int
}

// OpenIndexRoots wraps the Index Roots page already allocated at pageID.
func OpenIndexRoots(pool *buffer.BufferPoolManager, pageID int) *IndexRoots {
	return &IndexRoots{pool: pool, pageID: pageID}
}

// InitIndexRoots allocates and zero-initializes a new Index Roots page,
// returning its page id for the caller to remember (e.g. as a database
// file's fixed bootstrap page).
func InitIndexRoots(pool *buffer.BufferPoolManager) (*IndexRoots, error) {
	page, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("btree: cannot allocate index roots page, pool exhausted")
	}
	binary.LittleEndian.PutUint32(page.Data[0:4], 0)
	pool.UnpinPage(page.GetPageID(), true)
	return &IndexRoots{pool: pool, pageID: page.GetPageID()}, nil
}

// PageID returns the fixed logical page id backing this Index Roots page.
func (r *IndexRoots) PageID() int { return r.pageID }

// GetRoot returns the root page id recorded for indexID, or InvalidPageID
// if indexID has no recorded root (a fresh or empty tree).
func (r *IndexRoots) GetRoot(indexID uint32) (int, error) {
	page, err := r.pool.FetchPage(r.pageID)
	if err != nil {
		return disk.InvalidPageID, err
	}
	defer r.pool.UnpinPage(r.pageID, false)

	count := binary.LittleEndian.Uint32(page.Data[0:4])
	for i := uint32(0); i < count; i++ {
		off := 4 + i*indexRootsRecordSize
		id := binary.LittleEndian.Uint32(page.Data[off : off+4])
		if id == indexID {
			return int(int32(binary.LittleEndian.Uint32(page.Data[off+4 : off+8]))), nil
		}
	}
	return disk.InvalidPageID, nil
}

// SetRoot records rootPageID for indexID, adding a new record if indexID
// has never been seen before.
func (r *IndexRoots) SetRoot(indexID uint32, rootPageID int) error {
	page, err := r.pool.FetchPage(r.pageID)
	if err != nil {
		return err
	}
	defer r.pool.UnpinPage(r.pageID, true)

	count := binary.LittleEndian.Uint32(page.Data[0:4])
	for i := uint32(0); i < count; i++ {
		off := 4 + i*indexRootsRecordSize
		id := binary.LittleEndian.Uint32(page.Data[off : off+4])
		if id == indexID {
			binary.LittleEndian.PutUint32(page.Data[off+4:off+8], uint32(int32(rootPageID)))
			return nil
		}
	}

	if count >= maxIndexRootsEntries {
		return fmt.Errorf("btree: index roots page is full (%d entries)", maxIndexRootsEntries)
	}

	off := 4 + count*indexRootsRecordSize
	binary.LittleEndian.PutUint32(page.Data[off:off+4], indexID)
	binary.LittleEndian.PutUint32(page.Data[off+4:off+8], uint32(int32(rootPageID)))
	binary.LittleEndian.PutUint32(page.Data[0:4], count+1)
	return nil
}
