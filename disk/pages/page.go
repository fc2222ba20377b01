// Package pages defines the in-memory representation of a page held by a
// buffer pool frame.
package pages

import "minisql/disk"

// Page is the buffer pool's in-memory view of one logical page: fixed-size
// content plus the pin/dirty bookkeeping the pool needs to decide eviction.
// There is no per-page latch; callers are assumed single-threaded.
type Page struct {
	pageID   int
	pinCount int
	dirty    bool
	Data     []byte
}

// New allocates a zeroed page frame buffer for pageID.
func New(pageID int) *Page {
	return &Page{
		pageID: pageID,
		Data:   make([]byte, disk.PageSize),
	}
}

func (p *Page) GetData() []byte    { return p.Data }
func (p *Page) GetPageID() int     { return p.pageID }
func (p *Page) GetPinCount() int   { return p.pinCount }
func (p *Page) IsDirty() bool      { return p.dirty }
func (p *Page) SetDirty()          { p.dirty = true }
func (p *Page) SetClean()          { p.dirty = false }
func (p *Page) IncrPinCount()      { p.pinCount++ }
func (p *Page) DecrPinCount()      { p.pinCount-- }

// Reset re-targets the frame at a different logical page, clearing its
// content and bookkeeping. Called by the buffer pool when a frame is
// repurposed for a fetched or newly allocated page.
func (p *Page) Reset(pageID int) {
	p.pageID = pageID
	p.pinCount = 0
	p.dirty = false
	for i := range p.Data {
		p.Data[i] = 0
	}
}
