// Package replacer implements the LRU-K frame replacement policy used
// by the buffer pool to pick a victim frame when every frame is in
// use and a new page must be brought in.
package replacer

import (
	"errors"
	"sync"

	"latchkv/pkg/list"
)

// ErrNotEvictable is returned by Remove when asked to drop a frame
// that has not been marked evictable.
var ErrNotEvictable = errors.New("replacer: frame is not evictable")

type frameState struct {
	history   *list.List[int64]
	evictable bool
}

// Replacer tracks, for every frame registered with it, a bounded
// history of access timestamps and an evictable flag, and picks the
// frame with the largest backward k-distance as its eviction victim.
type Replacer struct {
	mu        sync.Mutex
	k         int
	frames    map[int]*frameState
	clock     int64
	evictable int
	capacity  int
}

// New constructs a Replacer tracking up to capacity frames, using the
// k most recent accesses per frame for its backward-distance
// calculation.
func New(capacity int, k int) *Replacer {
	return &Replacer{
		k:        k,
		frames:   make(map[int]*frameState),
		capacity: capacity,
	}
}

// RecordAccess logs an access to frameID at the current logical
// time. If the frame is new and the replacer is already tracking
// capacity frames, the access is dropped (the caller is expected to
// have evicted or otherwise freed a slot first).
func (r *Replacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, ok := r.frames[frameID]
	if !ok {
		if len(r.frames) == r.capacity {
			return
		}
		fs = &frameState{history: list.New[int64]()}
		r.frames[frameID] = fs
	}
	if fs.history.Len() == r.k {
		fs.history.PopHead()
	}
	fs.history.PushTail(r.clock)
	r.clock++
}

// SetEvictable marks frameID as eligible (or ineligible) for
// eviction. No-op if the frame isn't tracked.
func (r *Replacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, ok := r.frames[frameID]
	if !ok {
		return
	}
	if !fs.evictable && evictable {
		r.evictable++
	} else if fs.evictable && !evictable {
		r.evictable--
	}
	fs.evictable = evictable
}

// Evict picks the evictable frame with the largest backward
// k-distance (frames with fewer than k recorded accesses have an
// infinite distance; ties broken by earliest first access), removes
// it from tracking, and returns its id.
func (r *Replacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var victim int
	found := false
	for id, fs := range r.frames {
		if !fs.evictable {
			continue
		}
		if !found || r.less(id, victim) {
			victim = id
			found = true
		}
	}
	if !found {
		return 0, false
	}
	delete(r.frames, victim)
	r.evictable--
	return victim, true
}

// less reports whether frame a should be evicted before frame b:
// fewer-than-k-history frames beat full-history frames, and among
// frames in the same category, the one with the earlier oldest
// timestamp (larger backward distance) wins.
func (r *Replacer) less(a, b int) bool {
	fa, fb := r.frames[a], r.frames[b]
	aFull := fa.history.Len() == r.k
	bFull := fb.history.Len() == r.k
	if !aFull && bFull {
		return true
	}
	if aFull && !bFull {
		return false
	}
	return fa.history.PeekHead().GetValue() < fb.history.PeekHead().GetValue()
}

// Remove drops frameID from tracking entirely. It is an error to
// remove a frame that is currently not evictable (i.e. still pinned).
func (r *Replacer) Remove(frameID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, ok := r.frames[frameID]
	if !ok {
		return nil
	}
	if !fs.evictable {
		return ErrNotEvictable
	}
	delete(r.frames, frameID)
	r.evictable--
	return nil
}

// Size returns the number of frames currently marked evictable.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictable
}
