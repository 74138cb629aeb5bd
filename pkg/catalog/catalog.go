// Package catalog implements the distinguished header page that maps
// index names to their current root page id, the way a real storage
// engine persists "where did the root move to after that last
// split/merge" across restarts.
package catalog

import (
	"encoding/binary"
	"sync"

	"latchkv/pkg/buffer"
	"latchkv/pkg/page"
)

// HeaderPageID is the fixed page id of the catalog's header page.
const HeaderPageID int32 = 0

// Catalog tracks index_name -> root_page_id, backed by a single page
// in the given buffer pool.
type Catalog struct {
	pool *buffer.Pool
	mu   sync.Mutex
	// roots mirrors the header page's contents in memory so reads
	// don't need to pin/unpin the buffer pool on every lookup.
	roots map[string]int32
}

// Open loads (or initializes) the catalog's header page from pool.
func Open(pool *buffer.Pool) (*Catalog, error) {
	c := &Catalog{pool: pool, roots: make(map[string]int32)}
	pg, err := pool.FetchPage(HeaderPageID)
	if err != nil {
		// First use: allocate the header page as page 0.
		pg, err = pool.NewPage()
		if err != nil {
			return nil, err
		}
		if pg.ID() != HeaderPageID {
			// Header page must be page 0; nothing else should have
			// raced to allocate first.
			pool.UnpinPage(pg.ID(), false)
			return c, nil
		}
		c.flushLocked(pg)
		pool.UnpinPage(pg.ID(), true)
		return c, nil
	}
	c.decode(pg.Data())
	pool.UnpinPage(pg.ID(), false)
	return c, nil
}

func (c *Catalog) decode(data []byte) {
	n := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	for i := uint32(0); i < n; i++ {
		nameLen := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		name := string(data[off : off+int(nameLen)])
		off += int(nameLen)
		root := int32(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		c.roots[name] = root
	}
}

func (c *Catalog) flushLocked(pg *page.Page) {
	data := pg.Data()
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(c.roots)))
	off := 4
	for name, root := range c.roots {
		binary.LittleEndian.PutUint32(data[off:off+4], uint32(len(name)))
		off += 4
		copy(data[off:off+len(name)], name)
		off += len(name)
		binary.LittleEndian.PutUint32(data[off:off+4], uint32(root))
		off += 4
	}
	pg.SetDirty(true)
}

// GetRoot returns the root page id for the named index.
func (c *Catalog) GetRoot(name string) (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root, ok := c.roots[name]
	return root, ok
}

// SetRoot records a new root page id for name and persists the
// header page immediately.
func (c *Catalog) SetRoot(name string, root int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots[name] = root
	pg, err := c.pool.FetchPage(HeaderPageID)
	if err != nil {
		return err
	}
	c.flushLocked(pg)
	return c.pool.UnpinPage(HeaderPageID, true)
}
