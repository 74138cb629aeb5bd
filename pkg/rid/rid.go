// Package rid defines the record identifier used as the value type
// stored in B+Tree leaves: the page a row lives on plus its slot
// within that page.
package rid

import "encoding/binary"

// RID identifies a row by the page it lives on and its slot within
// that page, matching the page_id_t+slot_num pair used throughout the
// original storage engine this index design is based on.
type RID struct {
	PageID  int32
	SlotNum uint32
}

// New constructs a RID.
func New(pageID int32, slotNum uint32) RID {
	return RID{PageID: pageID, SlotNum: slotNum}
}

// Marshal serializes the RID into a fixed 8-byte array so it can be
// copied directly into a page slot.
func (r RID) Marshal() [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], r.SlotNum)
	return buf
}

// Unmarshal decodes a RID from its 8-byte representation.
func Unmarshal(buf [8]byte) RID {
	return RID{
		PageID:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		SlotNum: binary.LittleEndian.Uint32(buf[4:8]),
	}
}
