// Package btree implements the variable-length-key, duplicate-aware,
// sibling-linked B+ tree that backs every secondary index. Nodes are
// stored one-per-page on top of internal/storage.Page, using the page's
// generic header plus a secondary node header; unlike heap pages, B+ tree
// nodes do not use the slotted directory at all and instead manage
// Payload() as their own forward/backward-growing scratch space.
//
// Node page layout (within Payload(), i.e. after the generic page header):
//
//	+0  magic u32 "KZIX"
//	+4  node_type u8 (0=internal, 1=leaf)
//	+5  reserved u8
//	+6  key_count u16
//	+8  parent i64
//	+16 next_leaf i64  (InvalidPageID for internal nodes)
//	+24 prev_leaf i64  (InvalidPageID for internal nodes)
//	+32 key_data_offset u16  (absolute page offset; top of the backward-
//	    growing key area, starts at PageSize)
//	+34 value array: key_count (leaf) or key_count+1 (internal) entries,
//	    each a u64 (leaf: packed RecordID; internal: child PageID)
//	... key-offset array: key_count entries, each u16 absolute page offset
//	... free space ...
//	... key data, packed backward from PageSize as (len u16, bytes len)
package btree

import (
	"encoding/binary"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

const (
	nodeMagic uint32 = 0x4B5A4958 // "KZIX"

	nhOffMagic         = 0
	nhOffNodeType      = 4
	nhOffReserved      = 5
	nhOffKeyCount      = 6
	nhOffParent        = 8
	nhOffNextLeaf      = 16
	nhOffPrevLeaf      = 24
	nhOffKeyDataOffset = 32

	// nodeHeaderSize is the size of the node header living at the start of
	// Payload(), i.e. immediately after the generic page header.
	nodeHeaderSize = 34

	valueEntrySize = 8 // RecordID or PageID, both 64-bit
	keyOffsetSize  = 2

	// MaxKeysPerNode is the build-time fanout limit; a node over this count
	// is "over capacity" and must split even if bytes would still fit.
	MaxKeysPerNode = 64
)

type nodeType uint8

const (
	nodeInternal nodeType = 0
	nodeLeaf     nodeType = 1
)

// Node is an in-memory view over one B+ tree node page. All accessors read
// and write directly into the underlying page buffer.
type Node struct {
	page *storage.Page
}

// NewLeaf initializes page as an empty leaf node.
func NewLeaf(page *storage.Page) *Node {
	n := &Node{page: page}
	n.initHeader(nodeLeaf)
	return n
}

// NewInternal initializes page as an empty internal node.
func NewInternal(page *storage.Page) *Node {
	n := &Node{page: page}
	n.initHeader(nodeInternal)
	return n
}

// Wrap loads an already-initialized node page, verifying its magic.
func Wrap(page *storage.Page) (*Node, error) {
	n := &Node{page: page}
	body := page.Payload()
	if len(body) < nodeHeaderSize {
		return nil, dberr.Storage(dberr.InvalidRecordFormat, "page too small for node header")
	}
	if binary.LittleEndian.Uint32(body[nhOffMagic:]) != nodeMagic {
		return nil, dberr.Storage(dberr.InvalidRecordFormat, "bad btree node magic on page %d", page.ID())
	}
	return n, nil
}

func (n *Node) initHeader(t nodeType) {
	body := n.page.Payload()
	binary.LittleEndian.PutUint32(body[nhOffMagic:], nodeMagic)
	body[nhOffNodeType] = byte(t)
	body[nhOffReserved] = 0
	binary.LittleEndian.PutUint16(body[nhOffKeyCount:], 0)
	invalid := storage.InvalidPageID
	binary.LittleEndian.PutUint64(body[nhOffParent:], uint64(invalid))
	binary.LittleEndian.PutUint64(body[nhOffNextLeaf:], uint64(invalid))
	binary.LittleEndian.PutUint64(body[nhOffPrevLeaf:], uint64(invalid))
	binary.LittleEndian.PutUint16(body[nhOffKeyDataOffset:], uint16(storage.PageSize))
}

func (n *Node) Page() *storage.Page { return n.page }
func (n *Node) ID() storage.PageID  { return n.page.ID() }

func (n *Node) IsLeaf() bool {
	return nodeType(n.page.Payload()[nhOffNodeType]) == nodeLeaf
}

func (n *Node) KeyCount() int {
	return int(binary.LittleEndian.Uint16(n.page.Payload()[nhOffKeyCount:]))
}

func (n *Node) setKeyCount(c int) {
	binary.LittleEndian.PutUint16(n.page.Payload()[nhOffKeyCount:], uint16(c))
}

// ValueCount is the number of fixed-width entries in the value array:
// key_count for a leaf, key_count+1 for an internal node (the extra
// left-most child).
func (n *Node) ValueCount() int {
	if n.IsLeaf() {
		return n.KeyCount()
	}
	return n.KeyCount() + 1
}

func (n *Node) Parent() storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint64(n.page.Payload()[nhOffParent:]))
}
func (n *Node) SetParent(id storage.PageID) {
	binary.LittleEndian.PutUint64(n.page.Payload()[nhOffParent:], uint64(id))
}

func (n *Node) NextLeaf() storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint64(n.page.Payload()[nhOffNextLeaf:]))
}
func (n *Node) SetNextLeaf(id storage.PageID) {
	binary.LittleEndian.PutUint64(n.page.Payload()[nhOffNextLeaf:], uint64(id))
}

func (n *Node) PrevLeaf() storage.PageID {
	return storage.PageID(binary.LittleEndian.Uint64(n.page.Payload()[nhOffPrevLeaf:]))
}
func (n *Node) SetPrevLeaf(id storage.PageID) {
	binary.LittleEndian.PutUint64(n.page.Payload()[nhOffPrevLeaf:], uint64(id))
}

func (n *Node) keyDataOffset() int {
	return int(binary.LittleEndian.Uint16(n.page.Payload()[nhOffKeyDataOffset:]))
}
func (n *Node) setKeyDataOffset(off int) {
	binary.LittleEndian.PutUint16(n.page.Payload()[nhOffKeyDataOffset:], uint16(off))
}

func (n *Node) valueArrayOffset() int { return storage.HeaderSize + nodeHeaderSize }

func (n *Node) keyOffsetArrayOffset() int {
	return n.valueArrayOffset() + n.ValueCount()*valueEntrySize
}

// freeBytes is the contiguous space between the end of the key-offset
// array and the top of the backward-growing key area.
func (n *Node) freeBytes() int {
	dirEnd := n.keyOffsetArrayOffset() + n.KeyCount()*keyOffsetSize
	return n.keyDataOffset() - dirEnd
}

// value reads the i'th fixed-width value-array entry as a raw uint64.
func (n *Node) value(i int) uint64 {
	off := n.valueArrayOffset() + i*valueEntrySize
	return binary.LittleEndian.Uint64(n.page.Bytes()[off:])
}

func (n *Node) setValue(i int, v uint64) {
	off := n.valueArrayOffset() + i*valueEntrySize
	binary.LittleEndian.PutUint64(n.page.Bytes()[off:], v)
}

// Child returns the i'th child page id of an internal node (0..KeyCount()).
func (n *Node) Child(i int) storage.PageID        { return storage.PageID(n.value(i)) }
func (n *Node) SetChild(i int, id storage.PageID) { n.setValue(i, uint64(id)) }

// RecordID returns the i'th leaf value.
func (n *Node) RecordID(i int) rid.RecordID { return rid.RecordID(n.value(i)) }
func (n *Node) SetRecordID(i int, r rid.RecordID) { n.setValue(i, uint64(r)) }

func (n *Node) keyOffsetEntry(i int) int {
	off := n.keyOffsetArrayOffset() + i*keyOffsetSize
	return int(binary.LittleEndian.Uint16(n.page.Bytes()[off:]))
}

func (n *Node) setKeyOffsetEntry(i, koff int) {
	off := n.keyOffsetArrayOffset() + i*keyOffsetSize
	binary.LittleEndian.PutUint16(n.page.Bytes()[off:], uint16(koff))
}

// Key returns a copy of the i'th key.
func (n *Node) Key(i int) []byte {
	koff := n.keyOffsetEntry(i)
	length := int(binary.LittleEndian.Uint16(n.page.Bytes()[koff:]))
	out := make([]byte, length)
	copy(out, n.page.Bytes()[koff+2:koff+2+length])
	return out
}

// fits reports whether inserting one more key of the given length (plus one
// more value entry) would keep the node within capacity.
func (n *Node) fits(keyLen int) bool {
	if n.KeyCount()+1 > MaxKeysPerNode {
		return false
	}
	need := valueEntrySize /* new value slot */ + keyOffsetSize /* new key-offset slot */ + 2 + keyLen /* key bytes */
	return n.freeBytes() >= need
}
