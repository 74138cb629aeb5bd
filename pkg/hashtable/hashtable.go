// Package hashtable implements an in-memory, generic extendible hash
// table. It is the directory structure the buffer pool uses to map
// page ids to frame ids; it has no disk backing of its own.
package hashtable

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Hasher computes a 64-bit hash of a key. See XXHash64 for a
// ready-made hasher over int32 keys.
type Hasher[K comparable] func(key K) uint64

// Table is a generic extendible hash table mapping keys of type K to
// values of type V.
type Table[K comparable, V any] struct {
	mu          sync.Mutex
	hash        Hasher[K]
	bucketSize  int
	globalDepth uint
	numBuckets  int
	dir         []*bucket[K, V]
}

type bucket[K comparable, V any] struct {
	depth    uint
	size     int
	occupied *bitset.BitSet
	keys     []K
	values   []V
}

func newBucket[K comparable, V any](size int, depth uint) *bucket[K, V] {
	return &bucket[K, V]{
		depth:    depth,
		occupied: bitset.New(uint(size)),
		keys:     make([]K, size),
		values:   make([]V, size),
	}
}

func (b *bucket[K, V]) isFull() bool {
	return b.size == len(b.keys)
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for i := uint(0); i < uint(len(b.keys)); i++ {
		if b.occupied.Test(i) && b.keys[i] == key {
			return b.values[i], true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i := uint(0); i < uint(len(b.keys)); i++ {
		if b.occupied.Test(i) && b.keys[i] == key {
			b.occupied.Clear(i)
			b.size--
			return true
		}
	}
	return false
}

// insert overwrites the value if key is already present, otherwise
// inserts into the first free slot. Returns false if the bucket is
// full and key is new.
func (b *bucket[K, V]) insert(key K, value V) bool {
	firstFree := -1
	for i := uint(0); i < uint(len(b.keys)); i++ {
		if b.occupied.Test(i) {
			if b.keys[i] == key {
				b.values[i] = value
				return true
			}
		} else if firstFree == -1 {
			firstFree = int(i)
		}
	}
	if firstFree == -1 {
		return false
	}
	b.keys[firstFree] = key
	b.values[firstFree] = value
	b.occupied.Set(uint(firstFree))
	b.size++
	return true
}

func (b *bucket[K, V]) items() (keys []K, values []V) {
	for i := uint(0); i < uint(len(b.keys)); i++ {
		if b.occupied.Test(i) {
			keys = append(keys, b.keys[i])
			values = append(values, b.values[i])
		}
	}
	return
}

// New constructs a Table with the given per-bucket capacity and
// hasher, starting at global depth 0 (a single bucket).
func New[K comparable, V any](bucketSize int, hash Hasher[K]) *Table[K, V] {
	t := &Table[K, V]{
		hash:       hash,
		bucketSize: bucketSize,
		numBuckets: 1,
	}
	t.dir = []*bucket[K, V]{newBucket[K, V](bucketSize, 0)}
	return t
}

func (t *Table[K, V]) indexOf(key K) uint64 {
	mask := uint64(1)<<t.globalDepth - 1
	return t.hash(key) & mask
}

// GlobalDepth returns the current directory depth.
func (t *Table[K, V]) GlobalDepth() uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalDepth
}

// NumBuckets returns the number of distinct buckets currently in use
// (which is <= len(directory), since multiple directory slots can
// point at the same bucket).
func (t *Table[K, V]) NumBuckets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numBuckets
}

// Find looks up key, returning its value and whether it was present.
func (t *Table[K, V]) Find(key K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].find(key)
}

// Remove deletes key, reporting whether it was present.
func (t *Table[K, V]) Remove(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir[t.indexOf(key)].remove(key)
}

// Insert adds or overwrites key -> value, splitting buckets and
// doubling the directory as many times as needed.
func (t *Table[K, V]) Insert(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		idx := t.indexOf(key)
		if t.dir[idx].insert(key, value) {
			return
		}
		if t.dir[idx].depth != t.globalDepth {
			t.redistribute(t.dir[idx])
		} else {
			t.globalDepth++
			n := len(t.dir)
			t.dir = append(t.dir, t.dir[:n]...)
		}
	}
}

// redistribute splits an overflowing bucket in two, rehashing its
// entries by the new, deeper local depth and rewiring every directory
// slot that used to point at it.
func (t *Table[K, V]) redistribute(b *bucket[K, V]) {
	b.depth++
	depth := b.depth
	t.numBuckets++
	nb := newBucket[K, V](t.bucketSize, depth)

	keys, values := b.items()
	preIdx := t.hash(keys[0]) & (uint64(1)<<(depth-1) - 1)
	// Re-insert everything into a cleared original bucket plus the new
	// bucket, splitting on the newly significant bit.
	for i := uint(0); i < uint(len(b.keys)); i++ {
		b.occupied.Clear(i)
	}
	b.size = 0
	for i, k := range keys {
		idx := t.hash(k) & (uint64(1)<<depth - 1)
		if idx != preIdx {
			nb.insert(k, values[i])
		} else {
			b.insert(k, values[i])
		}
	}
	mask := uint64(1)<<depth - 1
	prevMask := uint64(1)<<(depth-1) - 1
	for i := range t.dir {
		if uint64(i)&prevMask == preIdx && uint64(i)&mask != preIdx {
			t.dir[i] = nb
		}
	}
}
