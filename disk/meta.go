package disk

import "encoding/binary"

// metaHeaderSize is the fixed part of the meta page: two little-endian u32
// counters. extentUsedPage follows as num_extents little-endian u32 entries.
const metaHeaderSize = 8

// metaPage is the in-memory view of the on-disk meta page (physical page 0).
type metaPage struct {
	numAllocatedPages uint32
	numExtents        uint32
	extentUsedPage    []uint32
}

func newMetaPage() *metaPage {
	return &metaPage{extentUsedPage: make([]uint32, 0)}
}

func decodeMetaPage(buf []byte) *metaPage {
	m := &metaPage{}
	m.numAllocatedPages = binary.LittleEndian.Uint32(buf[0:4])
	m.numExtents = binary.LittleEndian.Uint32(buf[4:8])
	m.extentUsedPage = make([]uint32, m.numExtents)
	for i := uint32(0); i < m.numExtents; i++ {
		off := metaHeaderSize + int(i)*4
		m.extentUsedPage[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return m
}

func (m *metaPage) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], m.numAllocatedPages)
	binary.LittleEndian.PutUint32(buf[4:8], m.numExtents)
	for i, used := range m.extentUsedPage {
		off := metaHeaderSize + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], used)
	}
}
