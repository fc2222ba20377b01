package disk

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
)

// Manager owns one database file and exposes fixed-size logical pages
// numbered from 0 upward, translating logical ids to physical offsets
// through an extent/bitmap scheme cached in meta.
type Manager struct {
	file     *os.File
	filename string
	meta     *metaPage
	closed   bool
	logger   *log.Logger
}

// Open opens (creating if necessary) the database file at path and loads
// its meta page, logging whether a new file was created or an existing one opened.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	m := &Manager{
		file:     f,
		filename: path,
		logger:   log.New(os.Stderr, "disk: ", log.LstdFlags),
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if stat.Size() == 0 {
		m.meta = newMetaPage()
		if err := m.flushMeta(); err != nil {
			f.Close()
			return nil, err
		}
		m.logger.Printf("initialized new database file %s", path)
	} else {
		buf := make([]byte, PageSize)
		if err := m.readPhysical(0, buf); err != nil {
			f.Close()
			return nil, err
		}
		m.meta = decodeMetaPage(buf)
		m.logger.Printf("opened existing database file %s (%d pages allocated)", path, m.meta.numAllocatedPages)
	}

	return m, nil
}

// AllocatePage scans the meta page for the first extent with spare
// capacity, appending a new extent when none has room, and returns the
// newly allocated logical page id.
func (m *Manager) AllocatePage() (int, error) {
	if m.closed {
		return InvalidPageID, ErrClosed
	}
	if m.meta.numAllocatedPages == MaxValidPageID {
		return InvalidPageID, ErrOutOfSpace
	}

	extentIdx := -1
	for i, used := range m.meta.extentUsedPage {
		if used < BitmapSize {
			extentIdx = i
			break
		}
	}

	isNewExtent := extentIdx == -1
	if isNewExtent {
		extentIdx = int(m.meta.numExtents)
	}

	bm, err := m.readBitmap(extentIdx, isNewExtent)
	if err != nil {
		return InvalidPageID, err
	}

	bitOffset := bm.nextFreePage
	bm.setAllocated(bitOffset)

	if err := m.writeBitmap(extentIdx, bm); err != nil {
		return InvalidPageID, err
	}

	if isNewExtent {
		m.meta.numExtents++
		m.meta.extentUsedPage = append(m.meta.extentUsedPage, 0)
	}
	m.meta.extentUsedPage[extentIdx]++
	m.meta.numAllocatedPages++

	if err := m.flushMeta(); err != nil {
		return InvalidPageID, err
	}

	return extentIdx*BitmapSize + int(bitOffset), nil
}

// DeAllocatePage clears the bit tracking id in its bitmap page. It is a
// silent no-op if the page was already free.
func (m *Manager) DeAllocatePage(id int) error {
	if m.closed {
		return ErrClosed
	}
	extentIdx := id / BitmapSize
	bit := uint32(id % BitmapSize)

	bm, err := m.readBitmap(extentIdx, false)
	if err != nil {
		return err
	}

	if !bm.clear(bit) {
		return nil
	}

	if err := m.writeBitmap(extentIdx, bm); err != nil {
		return err
	}

	m.meta.numAllocatedPages--
	m.meta.extentUsedPage[extentIdx]--
	return m.flushMeta()
}

// IsPageFree reports whether id's bit is currently clear.
func (m *Manager) IsPageFree(id int) (bool, error) {
	if m.closed {
		return false, ErrClosed
	}
	extentIdx := id / BitmapSize
	bit := uint32(id % BitmapSize)

	bm, err := m.readBitmap(extentIdx, false)
	if err != nil {
		return false, err
	}
	return bm.isFree(bit), nil
}

// ReadPage reads exactly PageSize bytes for logical page id into buf. Reads
// past the end of the file (a page allocated but never written) yield a
// zero page rather than an error.
func (m *Manager) ReadPage(id int, buf []byte) error {
	if m.closed {
		return ErrClosed
	}
	if len(buf) != PageSize {
		return fmt.Errorf("disk: ReadPage buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	return m.readPhysical(mapPageID(id), buf)
}

// WritePage writes exactly PageSize bytes from buf to logical page id.
func (m *Manager) WritePage(id int, buf []byte) error {
	if m.closed {
		return ErrClosed
	}
	if len(buf) != PageSize {
		return fmt.Errorf("disk: WritePage buffer must be %d bytes, got %d", PageSize, len(buf))
	}
	return m.writePhysical(mapPageID(id), buf)
}

// Stats returns a snapshot of allocation counters and the current file size.
func (m *Manager) Stats() Stats {
	stat, _ := m.file.Stat()
	var size int64
	if stat != nil {
		size = stat.Size()
	}
	return Stats{
		NumAllocatedPages: m.meta.numAllocatedPages,
		NumExtents:        m.meta.numExtents,
		FileSizeBytes:     size,
	}
}

// Close flushes the meta page and closes the underlying file handle. It is
// safe to call once; subsequent operations return ErrClosed.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	if err := m.flushMeta(); err != nil {
		return err
	}
	m.closed = true
	return m.file.Close()
}

func (m *Manager) readBitmap(extentIdx int, allowMissing bool) (*bitmapPage, error) {
	buf := make([]byte, PageSize)
	if err := m.readPhysical(bitmapPhysicalPageID(extentIdx), buf); err != nil {
		return nil, err
	}
	if allowMissing {
		return newBitmapPage(), nil
	}
	return decodeBitmapPage(buf), nil
}

func (m *Manager) writeBitmap(extentIdx int, bm *bitmapPage) error {
	buf := make([]byte, PageSize)
	bm.encode(buf)
	return m.writePhysical(bitmapPhysicalPageID(extentIdx), buf)
}

func (m *Manager) flushMeta() error {
	buf := make([]byte, PageSize)
	m.meta.encode(buf)
	return m.writePhysical(0, buf)
}

// readPhysical reads a physical page, zero-filling any portion past EOF.
func (m *Manager) readPhysical(physical int64, buf []byte) error {
	n, err := m.file.ReadAt(buf, physical*PageSize)
	if n < len(buf) {
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("disk: read physical page %d: %w", physical, err)
	}
	return nil
}

func (m *Manager) writePhysical(physical int64, buf []byte) error {
	if _, err := m.file.WriteAt(buf, physical*PageSize); err != nil {
		return fmt.Errorf("disk: write physical page %d: %w", physical, err)
	}
	return nil
}
