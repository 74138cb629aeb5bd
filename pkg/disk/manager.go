// Package disk implements the page file underneath the buffer pool:
// fixed-size aligned reads and writes, with no caching or eviction
// policy of its own (that's the buffer pool's job).
package disk

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ncw/directio"
)

// PageSize is the size, in bytes, of a single page on disk.
const PageSize = directio.BlockSize

// ErrCorruptFile is returned when an existing database file's length
// is not a multiple of PageSize.
var ErrCorruptFile = errors.New("disk: database file size is not a multiple of the page size")

// Manager owns the single file backing a page store and hands out
// fixed-size page slots by page id.
type Manager struct {
	file     *os.File
	mu       sync.Mutex
	numPages atomic.Int32
}

// Open creates (or re-opens) the page file at path.
func Open(path string) (*Manager, error) {
	if idx := strings.LastIndex(path, "/"); idx != -1 {
		if err := os.MkdirAll(path[:idx], 0775); err != nil {
			return nil, err
		}
	}
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, ErrCorruptFile
	}
	m := &Manager{file: f}
	m.numPages.Store(int32(info.Size() / PageSize))
	return m, nil
}

// AllocatePage reserves and returns the id of a new page at the end
// of the file. Nothing is written to the file until WritePage is
// called for the page.
func (m *Manager) AllocatePage() int32 {
	return m.numPages.Add(1) - 1
}

// NumPages returns the number of pages currently allocated.
func (m *Manager) NumPages() int32 {
	return m.numPages.Load()
}

// ReadPage fills buf (which must be PageSize bytes) with the contents
// of the given page. Reading a page beyond the current end of file
// (i.e. one allocated but never written) zero-fills buf.
func (m *Manager) ReadPage(id int32, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.file.Seek(int64(id)*PageSize, io.SeekStart); err != nil {
		return err
	}
	n, err := m.file.Read(buf)
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf (PageSize bytes) to the given page.
func (m *Manager) WritePage(id int32, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.file.WriteAt(buf, int64(id)*PageSize)
	return err
}

// Close closes the page file. It does not fsync it first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
