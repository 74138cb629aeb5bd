// Package page defines the fixed-size frame content shared by the
// buffer pool, the disk manager, and every index structure built on
// top of them.
package page

import (
	"sync"
	"sync/atomic"
)

// InvalidPageID marks "no page"; used for root pointers and next-page
// links that don't point anywhere yet.
const InvalidPageID int32 = -1

// Page caches one page's worth of data in memory, plus the metadata
// the buffer pool needs to manage it: a pin count, a dirty flag, and
// a reader-writer latch used by the index layer's crabbing protocol.
type Page struct {
	id       int32
	pinCount atomic.Int32
	dirty    bool
	latch    sync.RWMutex
	data     []byte
}

// New allocates a page of the given size, identified by id.
func New(id int32, size int) *Page {
	return &Page{id: id, data: make([]byte, size)}
}

// ID returns the page's unique identifier.
func (p *Page) ID() int32 {
	return p.id
}

// SetID rebinds the page struct to a different page identifier; used
// by the buffer pool when reusing a frame for a newly allocated page.
func (p *Page) SetID(id int32) {
	p.id = id
}

// Data returns the page's raw byte buffer.
func (p *Page) Data() []byte {
	return p.data
}

// IsDirty reports whether the page's data has changed since it was
// last flushed to disk.
func (p *Page) IsDirty() bool {
	return p.dirty
}

// SetDirty marks (or clears) the page's dirty flag.
func (p *Page) SetDirty(dirty bool) {
	p.dirty = dirty
}

// Pin increments the pin count, preventing eviction.
func (p *Page) Pin() int32 {
	return p.pinCount.Add(1)
}

// Unpin decrements the pin count and returns the result.
func (p *Page) Unpin() int32 {
	return p.pinCount.Add(-1)
}

// PinCount returns the current pin count.
func (p *Page) PinCount() int32 {
	return p.pinCount.Load()
}

// Reset clears the page for reuse with a new identifier.
func (p *Page) Reset(id int32) {
	p.id = id
	p.dirty = false
	p.pinCount.Store(0)
	for i := range p.data {
		p.data[i] = 0
	}
}

// WLatch acquires the page's write latch.
func (p *Page) WLatch() { p.latch.Lock() }

// WUnlatch releases the page's write latch.
func (p *Page) WUnlatch() { p.latch.Unlock() }

// RLatch acquires the page's read latch.
func (p *Page) RLatch() { p.latch.RLock() }

// RUnlatch releases the page's read latch.
func (p *Page) RUnlatch() { p.latch.RUnlock() }
