// Package rid defines the 64-bit record id shared by internal/heap and
// internal/btree: a stable row locator combining a page id and a slot id.
// It lives in its own package so that heap and btree can both depend on it
// without depending on each other.
package rid

import "github.com/relicdb/relicdb/internal/storage"

// RecordID packs a page id (high 32 bits) and a slot id (low 32 bits) into
// a single 64-bit value. It is stable across reads but invalidated by a
// heap update that relocates the row, or by heap truncation.
type RecordID uint64

// Invalid is the zero-value-unsafe sentinel for "no record"; callers that
// need an explicit absence should use a (RecordID, bool) pair instead,
// since page id 0 is reserved and therefore never a legitimate page
// component of a real RecordID.
const Invalid RecordID = 0

// New packs a page id and slot id into a RecordID.
func New(page storage.PageID, slot uint32) RecordID {
	return RecordID(uint64(uint32(page))<<32 | uint64(slot))
}

// Page returns the page id component.
func (r RecordID) Page() storage.PageID { return storage.PageID(uint32(r >> 32)) }

// Slot returns the slot id component.
func (r RecordID) Slot() uint32 { return uint32(r) }
