// Package buffer implements the buffer pool manager: a fixed array of
// frames caching disk pages under a pin/unpin discipline with LRU
// replacement.
package buffer

import (
	"fmt"

	"minisql/common"
	"minisql/disk"
	"minisql/disk/pages"
)

// BufferPoolManager caches disk pages in a fixed pool of frames, tracking
// which logical page each frame holds via a page table, and choosing
// eviction victims among unpinned frames via an LRU Replacer. Single
// threaded: callers must not share a BufferPoolManager across goroutines.
type BufferPoolManager struct {
	disk      *disk.Manager
	frames    []*pages.Page
	pageTable map[int]int // logical page id -> frame index
	freeList  []int       // frame indexes holding no page
	replacer  Replacer
}

// New creates a pool of poolSize frames backed by dm.
func New(dm *disk.Manager, poolSize int) *BufferPoolManager {
	freeList := make([]int, poolSize)
	for i := range freeList {
		freeList[i] = i
	}
	return &BufferPoolManager{
		disk:      dm,
		frames:    make([]*pages.Page, poolSize),
		pageTable: make(map[int]int),
		freeList:  freeList,
		replacer:  NewLRUReplacer(poolSize),
	}
}

// FetchPage returns the pinned page for id, reading it from disk if it is
// not already cached. Returns nil if every frame is pinned.
func (b *BufferPoolManager) FetchPage(id int) (*pages.Page, error) {
	if frameID, ok := b.pageTable[id]; ok {
		page := b.frames[frameID]
		page.IncrPinCount()
		b.replacer.Pin(frameID)
		return page, nil
	}

	frameID, victimID, hadVictim, err := b.acquireFrame()
	if err != nil {
		return nil, nil
	}
	if hadVictim {
		if err := b.flushIfDirty(victimID); err != nil {
			return nil, err
		}
		delete(b.pageTable, victimID)
	}

	page := b.installFrame(frameID, id)
	if err := b.disk.ReadPage(id, page.Data); err != nil {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", id, err)
	}
	return page, nil
}

// NewPage allocates a fresh logical page on disk and returns it pinned and
// zeroed. Returns nil if every frame is pinned.
func (b *BufferPoolManager) NewPage() (*pages.Page, error) {
	if len(b.freeList) == 0 && b.replacer.Size() == 0 {
		return nil, nil
	}

	id, err := b.disk.AllocatePage()
	if err != nil {
		return nil, err
	}

	frameID, victimID, hadVictim, err := b.acquireFrame()
	if err != nil {
		// no frame actually available after all; give the page id back. A
		// failure here means the id we just allocated is unrecoverable.
		common.PanicIfErr(b.disk.DeAllocatePage(id))
		return nil, nil
	}
	if hadVictim {
		if err := b.flushIfDirty(victimID); err != nil {
			return nil, err
		}
		delete(b.pageTable, victimID)
	}

	return b.installFrame(frameID, id), nil
}

// UnpinPage decrements id's pin count, OR-ing isDirty into the page's dirty
// flag (which is never cleared here). Returns false if id is not resident
// or is already unpinned.
func (b *BufferPoolManager) UnpinPage(id int, isDirty bool) bool {
	frameID, ok := b.pageTable[id]
	if !ok {
		return false
	}

	page := b.frames[frameID]
	if isDirty {
		page.SetDirty()
	}
	if page.GetPinCount() == 0 {
		return false
	}

	page.DecrPinCount()
	if page.GetPinCount() == 0 {
		b.replacer.Unpin(frameID)
	}
	return true
}

// FlushPage writes id's frame to disk if dirty and clears the dirty flag.
// Idempotent; a no-op if id is not resident or is already clean.
func (b *BufferPoolManager) FlushPage(id int) error {
	if _, ok := b.pageTable[id]; !ok {
		return nil
	}
	return b.flushIfDirty(id)
}

// DeletePage removes id from the pool and frees its backing page on disk.
// Returns false, leaving state unchanged, if the page is pinned. Returns
// true without effect if the page is not resident.
func (b *BufferPoolManager) DeletePage(id int) (bool, error) {
	frameID, ok := b.pageTable[id]
	if !ok {
		return true, nil
	}

	page := b.frames[frameID]
	if page.GetPinCount() > 0 {
		return false, nil
	}

	if page.IsDirty() {
		if err := b.disk.WritePage(id, page.Data); err != nil {
			return false, err
		}
		page.SetClean()
	}

	if err := b.disk.DeAllocatePage(id); err != nil {
		return false, err
	}

	b.replacer.Pin(frameID) // drop it from the unpinned set before recycling
	delete(b.pageTable, id)
	page.Reset(disk.InvalidPageID)
	b.freeList = append(b.freeList, frameID)
	return true, nil
}

// CheckAllUnpinned reports whether every frame currently holding a page has
// a zero pin count. Used by tests to assert callers balanced every
// Fetch/New with an Unpin.
func (b *BufferPoolManager) CheckAllUnpinned() bool {
	for _, frameID := range b.pageTable {
		if b.frames[frameID].GetPinCount() != 0 {
			return false
		}
	}
	return true
}

// FlushAll flushes every resident dirty page to disk.
func (b *BufferPoolManager) FlushAll() error {
	for id := range b.pageTable {
		if err := b.flushIfDirty(id); err != nil {
			return err
		}
	}
	return nil
}

// acquireFrame reserves a frame for a new mapping: a free frame if one
// exists, otherwise an LRU victim. Reports the victim's previous logical
// page id so the caller can flush and unmap it.
func (b *BufferPoolManager) acquireFrame() (frameID int, victimID int, hadVictim bool, err error) {
	if n := len(b.freeList); n > 0 {
		frameID = b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		if b.frames[frameID] == nil {
			b.frames[frameID] = pages.New(disk.InvalidPageID)
		}
		return frameID, 0, false, nil
	}

	frameID, ok := b.replacer.Victim()
	if !ok {
		return 0, 0, false, fmt.Errorf("buffer: pool exhausted")
	}
	return frameID, b.frames[frameID].GetPageID(), true, nil
}

// installFrame retargets frameID at logical page id, resets its bookkeeping,
// pins it once, and records the new mapping.
func (b *BufferPoolManager) installFrame(frameID, id int) *pages.Page {
	page := b.frames[frameID]
	page.Reset(id)
	page.IncrPinCount()
	b.pageTable[id] = frameID
	b.replacer.Pin(frameID)
	return page
}

func (b *BufferPoolManager) flushIfDirty(id int) error {
	frameID := b.pageTable[id]
	page := b.frames[frameID]
	if !page.IsDirty() {
		return nil
	}
	if err := b.disk.WritePage(id, page.Data); err != nil {
		return err
	}
	page.SetClean()
	return nil
}
