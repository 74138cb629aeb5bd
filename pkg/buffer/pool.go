// Package buffer implements the buffer pool manager: the external
// interface every index structure uses to bring pages into memory,
// pin/unpin them, and have them written back to disk. It composes an
// LRU-K replacer for eviction policy and an extendible hash table for
// the page id -> frame id directory.
package buffer

import (
	"errors"
	"sync"

	"latchkv/pkg/disk"
	"latchkv/pkg/hashtable"
	"latchkv/pkg/list"
	"latchkv/pkg/page"
	"latchkv/pkg/replacer"
)

// ErrNoFreeFrames is returned when every frame is pinned and no
// evictable victim can be found.
var ErrNoFreeFrames = errors.New("buffer: no free frames available")

// ErrPagePinned is returned by DeletePage when the page is still
// pinned by some caller.
var ErrPagePinned = errors.New("buffer: page is pinned")

// Pool is the buffer pool manager.
type Pool struct {
	mu        sync.Mutex
	disk      *disk.Manager
	frames    []*page.Page
	freeList  *list.List[int]
	dir       *hashtable.Table[int32, int]
	replacer  *replacer.Replacer
}

// New constructs a Pool with numFrames frames of pageSize bytes each,
// backed by disk manager d, using k for the replacer's LRU-K history
// length.
func New(d *disk.Manager, numFrames, pageSize, k int) *Pool {
	p := &Pool{
		disk:     d,
		frames:   make([]*page.Page, numFrames),
		freeList: list.New[int](),
		dir:      hashtable.New[int32, int](4, hashtable.XXHash64),
		replacer: replacer.New(numFrames, k),
	}
	for i := 0; i < numFrames; i++ {
		p.frames[i] = page.New(page.InvalidPageID, pageSize)
		p.freeList.PushTail(i)
	}
	return p
}

// findVictim returns a free or evictable frame id, evicting and
// flushing the previous occupant if necessary.
func (p *Pool) findVictim() (int, error) {
	if link := p.freeList.PeekHead(); link != nil {
		frameID := link.GetValue()
		link.PopSelf()
		return frameID, nil
	}
	frameID, ok := p.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrames
	}
	victim := p.frames[frameID]
	if victim.IsDirty() {
		if err := p.disk.WritePage(victim.ID(), victim.Data()); err != nil {
			return 0, err
		}
	}
	p.dir.Remove(victim.ID())
	return frameID, nil
}

// NewPage allocates a brand new page, pins it, and returns it.
func (p *Pool) NewPage() (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, err := p.findVictim()
	if err != nil {
		return nil, err
	}
	id := p.disk.AllocatePage()
	fr := p.frames[frameID]
	fr.Reset(id)
	fr.Pin()
	p.dir.Insert(id, frameID)
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)
	return fr, nil
}

// FetchPage returns the page for id, reading it from disk if it
// isn't already resident, and pins it.
func (p *Pool) FetchPage(id int32) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if frameID, ok := p.dir.Find(id); ok {
		fr := p.frames[frameID]
		fr.Pin()
		p.replacer.RecordAccess(frameID)
		p.replacer.SetEvictable(frameID, false)
		return fr, nil
	}
	frameID, err := p.findVictim()
	if err != nil {
		return nil, err
	}
	fr := p.frames[frameID]
	fr.Reset(id)
	if err := p.disk.ReadPage(id, fr.Data()); err != nil {
		p.freeList.PushTail(frameID)
		return nil, err
	}
	fr.Pin()
	p.dir.Insert(id, frameID)
	p.replacer.RecordAccess(frameID)
	p.replacer.SetEvictable(frameID, false)
	return fr, nil
}

// UnpinPage releases one reference to page id. isDirty is OR'd into
// the page's dirty flag. Once the pin count reaches zero the frame
// becomes eligible for eviction.
func (p *Pool) UnpinPage(id int32, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, ok := p.dir.Find(id)
	if !ok {
		return nil
	}
	fr := p.frames[frameID]
	if isDirty {
		fr.SetDirty(true)
	}
	if fr.PinCount() == 0 {
		return nil
	}
	if fr.Unpin() == 0 {
		p.replacer.SetEvictable(frameID, true)
	}
	return nil
}

// FlushPage writes page id to disk unconditionally and clears its
// dirty flag.
func (p *Pool) FlushPage(id int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, ok := p.dir.Find(id)
	if !ok {
		return nil
	}
	fr := p.frames[frameID]
	if err := p.disk.WritePage(id, fr.Data()); err != nil {
		return err
	}
	fr.SetDirty(false)
	return nil
}

// FlushAll writes every resident page to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	ids := make([]int32, 0, len(p.frames))
	for _, fr := range p.frames {
		if fr.ID() != page.InvalidPageID {
			ids = append(ids, fr.ID())
		}
	}
	p.mu.Unlock()
	for _, id := range ids {
		if err := p.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes page id from the pool and frees its frame. It
// refuses to delete a page that is still pinned.
func (p *Pool) DeletePage(id int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frameID, ok := p.dir.Find(id)
	if !ok {
		return nil
	}
	fr := p.frames[frameID]
	if fr.PinCount() > 0 {
		return ErrPagePinned
	}
	p.dir.Remove(id)
	p.replacer.Remove(frameID)
	fr.Reset(page.InvalidPageID)
	p.freeList.PushTail(frameID)
	return nil
}
