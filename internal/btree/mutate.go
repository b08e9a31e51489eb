package btree

import (
	"encoding/binary"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/storage"
)

// Keys returns copies of every key in the node, in stored order.
func (n *Node) Keys() [][]byte {
	out := make([][]byte, n.KeyCount())
	for i := range out {
		out[i] = n.Key(i)
	}
	return out
}

// RawValues returns the raw value-array entries (RecordID for a leaf,
// PageID for an internal node), in stored order.
func (n *Node) RawValues() []uint64 {
	out := make([]uint64, n.ValueCount())
	for i := range out {
		out[i] = n.value(i)
	}
	return out
}

// Rebuild replaces the node's entire key and value-array contents. keys and
// rawValues must satisfy len(rawValues) == len(keys) for a leaf, or
// len(keys)+1 for an internal node. This is the only mutation primitive:
// insert and remove both read the current contents out, splice in Go
// slices, and call Rebuild — simple and correct at the node sizes this
// tree uses (at most MaxKeysPerNode entries).
func (n *Node) Rebuild(keys [][]byte, rawValues []uint64) error {
	wantValues := len(keys)
	if !n.IsLeaf() {
		wantValues++
	}
	if len(rawValues) != wantValues {
		return dberr.Internal(dberr.InvalidArgument, "rebuild: %d values for %d keys (leaf=%v)", len(rawValues), len(keys), n.IsLeaf())
	}

	keyDataBytes := 0
	for _, k := range keys {
		keyDataBytes += 2 + len(k)
	}
	needed := len(rawValues)*valueEntrySize + len(keys)*keyOffsetSize + keyDataBytes
	avail := storage.PageSize - n.valueArrayOffset()
	if needed > avail {
		return dberr.Storage(dberr.PageFull, "node page %d: need %d bytes, have %d", n.ID(), needed, avail)
	}

	n.setKeyCount(len(keys))

	for i, v := range rawValues {
		n.setValue(i, v)
	}

	pos := storage.PageSize
	for i, k := range keys {
		pos -= len(k)
		copy(n.page.Bytes()[pos:], k)
		pos -= 2
		binary.LittleEndian.PutUint16(n.page.Bytes()[pos:], uint16(len(k)))
		n.setKeyOffsetEntry(i, pos)
	}
	n.setKeyDataOffset(pos)
	return nil
}

// findInsertPos returns the index of the first key >= target, i.e. the
// position at which target should be inserted to keep keys sorted. If an
// equal key exists, exact is true and i is its position.
func (n *Node) findInsertPos(target []byte) (i int, exact bool) {
	lo, hi := 0, n.KeyCount()
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := compareBytes(n.Key(mid), target)
		if cmp < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n.KeyCount() && compareBytes(n.Key(lo), target) == 0 {
		return lo, true
	}
	return lo, false
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func spliceKeys(keys [][]byte, i int, key []byte) [][]byte {
	out := make([][]byte, 0, len(keys)+1)
	out = append(out, keys[:i]...)
	out = append(out, key)
	out = append(out, keys[i:]...)
	return out
}

func spliceValues(values []uint64, i int, v uint64) []uint64 {
	out := make([]uint64, 0, len(values)+1)
	out = append(out, values[:i]...)
	out = append(out, v)
	out = append(out, values[i:]...)
	return out
}

func removeAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return out
}
