package hashtable

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

// XXHash64 hashes an int32 key (e.g. a page id) with xxHash. This is
// the default hasher used by the buffer pool's page directory.
func XXHash64(key int32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(key))
	return xxhash.Sum64(buf[:])
}
