// Package storage implements the paged heap substrate: fixed-size pages
// with a slotted record directory, a file-backed page store, and a buffer
// cache mediating all disk I/O. B+ tree node layout lives in internal/btree
// and is built on top of the same Page type.
//
// Page layout (PageSize bytes, little-endian):
//
//	+-------------------------------+  offset 0
//	| magic u32  "KZPG"              |
//	| page_id i64                    |
//	| page_type u8 / reserved u8     |
//	| slot_count u16                 |
//	| record_count u16               |
//	| free_space_offset u16          |
//	| prev_page_id i64               |
//	| next_page_id i64               |
//	+-------------------------------+  offset HeaderSize
//	| slot directory (offset,len)... | -> grows forward
//	|            ...free...          |
//	|          payload bytes         | <- grows backward from PageSize
//	+-------------------------------+  offset PageSize
package storage

import (
	"encoding/binary"

	"github.com/relicdb/relicdb/internal/dberr"
)

const (
	// PageSize is the fixed size of every page in the database file and in
	// every per-index file. It is a compile-time constant: the on-disk
	// format bakes it in, so it is not configurable at runtime.
	PageSize = 4096

	pageMagic uint32 = 0x4B5A5047 // "KZPG"

	offMagic           = 0
	offPageID          = 4
	offPageType        = 12
	offReserved        = 13
	offSlotCount       = 14
	offRecordCount     = 16
	offFreeSpaceOffset = 18
	offPrevPageID      = 20
	offNextPageID      = 28

	// HeaderSize is the number of bytes occupied by the fixed page header.
	HeaderSize = 36

	slotEntrySize = 4 // offset u16, length u16
)

// PageID identifies a page within a single file (the main database file or
// one index file). Page 0 is reserved and never handed out by the page
// manager; page 1 of the main file is the metadata page.
type PageID int64

// InvalidPageID marks the absence of a page reference (e.g. an empty
// sibling-leaf pointer, or a heap with no rows yet).
const InvalidPageID PageID = -1

// PageType tags what a page currently holds.
type PageType uint8

const (
	PageTypeFree PageType = iota
	PageTypeData
	PageTypeIndex
	PageTypeMetadata
)

func (t PageType) String() string {
	switch t {
	case PageTypeFree:
		return "FREE"
	case PageTypeData:
		return "DATA"
	case PageTypeIndex:
		return "INDEX"
	case PageTypeMetadata:
		return "METADATA"
	default:
		return "UNKNOWN"
	}
}

// Page is a fixed-size, in-memory mirror of one on-disk page. All header
// and slot-directory access goes through accessor methods that read/write
// directly into buf so that Bytes() is always a ready-to-write disk image
// — there is no separate serialize step.
type Page struct {
	buf [PageSize]byte
}

// NewPage initializes a fresh page of the given id and type: zeroed slot
// directory, record count, and free_space_offset sitting at the very end
// of the page (the payload heap starts out empty).
func NewPage(id PageID, typ PageType) *Page {
	p := &Page{}
	p.init(id, typ)
	return p
}

func (p *Page) init(id PageID, typ PageType) {
	binary.LittleEndian.PutUint32(p.buf[offMagic:], pageMagic)
	binary.LittleEndian.PutUint64(p.buf[offPageID:], uint64(id))
	p.buf[offPageType] = byte(typ)
	p.buf[offReserved] = 0
	binary.LittleEndian.PutUint16(p.buf[offSlotCount:], 0)
	binary.LittleEndian.PutUint16(p.buf[offRecordCount:], 0)
	binary.LittleEndian.PutUint16(p.buf[offFreeSpaceOffset:], PageSize)
	invalid := InvalidPageID
	binary.LittleEndian.PutUint64(p.buf[offPrevPageID:], uint64(invalid))
	binary.LittleEndian.PutUint64(p.buf[offNextPageID:], uint64(invalid))
}

// LoadPage wraps a raw PageSize-byte disk image, verifying the page magic.
func LoadPage(data []byte) (*Page, error) {
	if len(data) != PageSize {
		return nil, dberr.Storage(dberr.InvalidPageType, "page buffer is %d bytes, want %d", len(data), PageSize)
	}
	p := &Page{}
	copy(p.buf[:], data)
	magic := binary.LittleEndian.Uint32(p.buf[offMagic:])
	if magic != pageMagic {
		return nil, dberr.Storage(dberr.InvalidRecordFormat, "bad page magic %08x", magic)
	}
	return p, nil
}

// Bytes returns the raw disk image of the page.
func (p *Page) Bytes() []byte { return p.buf[:] }

func (p *Page) ID() PageID { return PageID(binary.LittleEndian.Uint64(p.buf[offPageID:])) }

func (p *Page) Type() PageType { return PageType(p.buf[offPageType]) }
func (p *Page) SetType(t PageType) {
	p.buf[offPageType] = byte(t)
}

func (p *Page) SlotCount() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offSlotCount:])
}
func (p *Page) setSlotCount(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[offSlotCount:], n)
}

func (p *Page) RecordCount() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offRecordCount:])
}
func (p *Page) setRecordCount(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[offRecordCount:], n)
}

func (p *Page) FreeSpaceOffset() uint16 {
	return binary.LittleEndian.Uint16(p.buf[offFreeSpaceOffset:])
}
func (p *Page) setFreeSpaceOffset(n uint16) {
	binary.LittleEndian.PutUint16(p.buf[offFreeSpaceOffset:], n)
}

func (p *Page) PrevPageID() PageID {
	return PageID(binary.LittleEndian.Uint64(p.buf[offPrevPageID:]))
}
func (p *Page) SetPrevPageID(id PageID) {
	binary.LittleEndian.PutUint64(p.buf[offPrevPageID:], uint64(id))
}

func (p *Page) NextPageID() PageID {
	return PageID(binary.LittleEndian.Uint64(p.buf[offNextPageID:]))
}
func (p *Page) SetNextPageID(id PageID) {
	binary.LittleEndian.PutUint64(p.buf[offNextPageID:], uint64(id))
}

// Payload exposes the bytes below the generic header for use by layouts
// that don't use the slotted directory at all (B+ tree node pages, the
// metadata page). Callers that touch this directly own their own
// free-space bookkeeping.
func (p *Page) Payload() []byte { return p.buf[HeaderSize:] }

func (p *Page) directoryEnd() uint16 {
	return HeaderSize + p.SlotCount()*slotEntrySize
}

func (p *Page) slotEntryOffset(slot uint16) int {
	return HeaderSize + int(slot)*slotEntrySize
}

func (p *Page) readSlot(slot uint16) (offset, length uint16) {
	o := p.slotEntryOffset(slot)
	return binary.LittleEndian.Uint16(p.buf[o:]), binary.LittleEndian.Uint16(p.buf[o+2:])
}

func (p *Page) writeSlot(slot uint16, offset, length uint16) {
	o := p.slotEntryOffset(slot)
	binary.LittleEndian.PutUint16(p.buf[o:], offset)
	binary.LittleEndian.PutUint16(p.buf[o+2:], length)
}

// FreeBytes reports the size of the contiguous free region between the end
// of the slot directory and the top of the payload heap.
func (p *Page) FreeBytes() int {
	return int(p.FreeSpaceOffset()) - int(p.directoryEnd())
}

// Insert writes payload into the page, reusing the first tombstoned slot
// if one exists, otherwise appending a new slot. Returns the slot id the
// record was stored under.
func (p *Page) Insert(payload []byte) (uint16, error) {
	if p.FreeBytes() < len(payload)+slotEntrySize {
		return 0, dberr.Storage(dberr.PageFull, "need %d bytes, have %d", len(payload)+slotEntrySize, p.FreeBytes())
	}

	slot, found := uint16(0), false
	for i := uint16(0); i < p.SlotCount(); i++ {
		_, length := p.readSlot(i)
		if length == 0 {
			slot, found = i, true
			break
		}
	}
	if !found {
		slot = p.SlotCount()
		p.setSlotCount(slot + 1)
	}

	newOffset := p.FreeSpaceOffset() - uint16(len(payload))
	copy(p.buf[newOffset:], payload)
	p.writeSlot(slot, newOffset, uint16(len(payload)))
	p.setFreeSpaceOffset(newOffset)
	p.setRecordCount(p.RecordCount() + 1)
	return slot, nil
}

// Read returns the payload stored at slot. ok is false if the slot is out
// of range or tombstoned ("not present").
func (p *Page) Read(slot uint16) (payload []byte, ok bool) {
	if slot >= p.SlotCount() {
		return nil, false
	}
	offset, length := p.readSlot(slot)
	if length == 0 {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, p.buf[offset:offset+length])
	return out, true
}

// Update replaces the payload at slot in place. It only succeeds when the
// new payload is no longer than the old one; the offset is unchanged and
// the slot length shrinks, per the slotted-page update contract.
func (p *Page) Update(slot uint16, payload []byte) (ok bool, err error) {
	if slot >= p.SlotCount() {
		return false, dberr.Storage(dberr.InvalidArgument, "slot %d out of range", slot)
	}
	offset, length := p.readSlot(slot)
	if length == 0 {
		return false, dberr.Storage(dberr.InvalidArgument, "slot %d is tombstoned", slot)
	}
	if len(payload) > int(length) {
		return false, nil
	}
	copy(p.buf[offset:offset+uint16(len(payload))], payload)
	p.writeSlot(slot, offset, uint16(len(payload)))
	return true, nil
}

// Erase tombstones slot (length becomes 0). The slot id persists so any
// external RowID referencing it still resolves to "not present" rather
// than silently pointing at a different record later.
func (p *Page) Erase(slot uint16) error {
	if slot >= p.SlotCount() {
		return dberr.Storage(dberr.InvalidArgument, "slot %d out of range", slot)
	}
	_, length := p.readSlot(slot)
	if length == 0 {
		return nil
	}
	p.writeSlot(slot, 0, 0)
	p.setRecordCount(p.RecordCount() - 1)
	return nil
}

// Reset reinitializes the page in place as an empty page of the same type,
// used by heap truncation to reclaim the root page without reallocating
// it. Sibling links are preserved by the caller if needed before calling.
func (p *Page) Reset() {
	id, typ := p.ID(), p.Type()
	p.init(id, typ)
}
