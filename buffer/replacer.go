package buffer

import "container/list"

// Replacer picks an eviction victim among unpinned frames. Frames are
// tracked in Unpin order; Victim returns the frame that has been unpinned
// longest, i.e. least-recently-unpinned first.
type Replacer interface {
	// Victim removes and returns the oldest unpinned frame id, or false if
	// none is unpinned.
	Victim() (frameID int, ok bool)
	// Pin removes frameID from the unpinned set, if present. Idempotent.
	Pin(frameID int)
	// Unpin inserts frameID at the front of the unpinned set if it is not
	// already tracked and the replacer has spare capacity. Idempotent.
	Unpin(frameID int)
	// Size returns the number of frames currently tracked as unpinned.
	Size() int
}

// lruReplacer is a bounded FIFO-by-recency structure over unpinned frame
// ids: a doubly linked list ordered by recency plus a map for O(1) lookup,
// so Pin/Unpin/Victim are all O(1) instead of a linear scan.
type lruReplacer struct {
	capacity int
	order    *list.List // back = victim (oldest unpinned)
	elems    map[int]*list.Element
}

// NewLRUReplacer creates a replacer bounded to capacity frames, matching
// the buffer pool's frame count.
func NewLRUReplacer(capacity int) Replacer {
	return &lruReplacer{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[int]*list.Element),
	}
}

func (l *lruReplacer) Victim() (int, bool) {
	back := l.order.Back()
	if back == nil {
		return 0, false
	}
	l.order.Remove(back)
	frameID := back.Value.(int)
	delete(l.elems, frameID)
	return frameID, true
}

func (l *lruReplacer) Pin(frameID int) {
	elem, ok := l.elems[frameID]
	if !ok {
		return
	}
	l.order.Remove(elem)
	delete(l.elems, frameID)
}

func (l *lruReplacer) Unpin(frameID int) {
	if _, ok := l.elems[frameID]; ok {
		return
	}
	if l.order.Len() >= l.capacity {
		return
	}
	l.elems[frameID] = l.order.PushFront(frameID)
}

func (l *lruReplacer) Size() int {
	return l.order.Len()
}
