package btree

import (
	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

const valueArrayBase = storage.HeaderSize + nodeHeaderSize

// capacityOK reports whether a node with the given key count, value count,
// and total key-byte size would still fit on one page.
func capacityOK(keyCount, valueCount, keyBytes int) bool {
	if keyCount > MaxKeysPerNode {
		return false
	}
	avail := storage.PageSize - valueArrayBase
	need := valueCount*valueEntrySize + keyCount*keyOffsetSize + keyBytes
	return need <= avail
}

func totalKeyBytes(keys [][]byte) int {
	n := 0
	for _, k := range keys {
		n += 2 + len(k)
	}
	return n
}

// Tree is one B+ tree index, stored either in the main database file (for
// indexes that share it) or a dedicated per-index file — the caller
// supplies the PageManager either way. Root() may change after a mutating
// call that splits the root; callers (internal/catalog, via the DDL/DML
// executor) are responsible for persisting the new root id back to the
// catalog.
type Tree struct {
	pm     *storage.PageManager
	root   storage.PageID
	unique bool
	log    *zap.SugaredLogger
}

// Create allocates a fresh, empty leaf page as the tree's root.
func Create(pm *storage.PageManager, unique bool, log *zap.SugaredLogger) (*Tree, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	guard, err := pm.NewPage(storage.PageTypeIndex)
	if err != nil {
		return nil, err
	}
	NewLeaf(guard.Page())
	id := guard.ID()
	if err := guard.Release(true); err != nil {
		return nil, err
	}
	return &Tree{pm: pm, root: id, unique: unique, log: log}, nil
}

// Open wraps an existing tree whose root is already on disk.
func Open(pm *storage.PageManager, root storage.PageID, unique bool, log *zap.SugaredLogger) *Tree {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tree{pm: pm, root: root, unique: unique, log: log}
}

// Root returns the tree's current root page id.
func (t *Tree) Root() storage.PageID { return t.root }

type pathEntry struct {
	pageID   storage.PageID
	childIdx int
}

// upperBound returns the index of the first key in node strictly greater
// than target.
func upperBound(node *Node, target []byte) int {
	lo, hi := 0, node.KeyCount()
	for lo < hi {
		mid := (lo + hi) / 2
		if compareBytes(node.Key(mid), target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// leftmostLeaf returns the leaf reached by always following child 0, used
// when a range scan has no lower bound.
func (t *Tree) leftmostLeaf() (leafHandle, error) {
	cur := t.root
	for {
		guard, err := t.pm.Fetch(cur, false)
		if err != nil {
			return leafHandle{}, err
		}
		node, err := Wrap(guard.Page())
		if err != nil {
			guard.Release(false)
			return leafHandle{}, err
		}
		if node.IsLeaf() {
			return leafHandle{guard: guard, node: node}, nil
		}
		child := node.Child(0)
		if err := guard.Release(false); err != nil {
			return leafHandle{}, err
		}
		cur = child
	}
}

// Insert adds (key, r). In a unique tree an existing equal key fails with
// DUPLICATE_KEY; in a non-unique tree an existing equal key has its value
// overwritten in place rather than accumulating a second entry at the same
// position.
func (t *Tree) Insert(key []byte, r rid.RecordID) error {
	leaf, path, err := t.descendToLeafHeld(key)
	if err != nil {
		return err
	}
	defer leaf.guard.Release(true)

	idx, exact := leaf.node.findInsertPos(key)
	keys := leaf.node.Keys()
	values := leaf.node.RawValues()

	if exact {
		if t.unique {
			return dberr.Index(dberr.DuplicateKey, "duplicate key in unique index")
		}
		values[idx] = uint64(r)
		return leaf.node.Rebuild(keys, values)
	}

	newKeys := spliceKeys(keys, idx, key)
	newValues := spliceValues(values, idx, uint64(r))

	if capacityOK(len(newKeys), len(newValues), totalKeyBytes(newKeys)) {
		return leaf.node.Rebuild(newKeys, newValues)
	}

	return t.splitLeafAndPropagate(leaf.node, path, newKeys, newValues)
}

// leafHandle bundles a pinned leaf page with its Node view.
type leafHandle struct {
	guard *storage.PageGuard
	node  *Node
}

func (t *Tree) descendToLeafHeld(target []byte) (leafHandle, []pathEntry, error) {
	var path []pathEntry
	cur := t.root
	for {
		guard, err := t.pm.Fetch(cur, true)
		if err != nil {
			return leafHandle{}, nil, err
		}
		node, err := Wrap(guard.Page())
		if err != nil {
			guard.Release(false)
			return leafHandle{}, nil, err
		}
		if node.IsLeaf() {
			return leafHandle{guard: guard, node: node}, path, nil
		}
		idx := upperBound(node, target)
		child := node.Child(idx)
		if err := guard.Release(false); err != nil {
			return leafHandle{}, nil, err
		}
		path = append(path, pathEntry{pageID: cur, childIdx: idx})
		cur = child
	}
}

// splitLeafAndPropagate splits an over-capacity leaf holding newKeys/
// newValues (the leaf's old contents plus the one pending insert) into two
// leaves, links siblings, and propagates the new separator up the path,
// splitting ancestors as needed and re-rooting the tree if the root split.
func (t *Tree) splitLeafAndPropagate(leaf *Node, path []pathEntry, newKeys [][]byte, newValues []uint64) error {
	mid := len(newKeys) / 2
	leftKeys, rightKeys := newKeys[:mid], newKeys[mid:]
	leftValues, rightValues := newValues[:mid], newValues[mid:]

	rightGuard, err := t.pm.NewPage(storage.PageTypeIndex)
	if err != nil {
		return err
	}
	rightNode := NewLeaf(rightGuard.Page())
	if err := rightNode.Rebuild(rightKeys, rightValues); err != nil {
		rightGuard.Release(false)
		return err
	}

	oldNext := leaf.NextLeaf()
	rightNode.SetNextLeaf(oldNext)
	rightNode.SetPrevLeaf(leaf.ID())

	if err := leaf.Rebuild(leftKeys, leftValues); err != nil {
		rightGuard.Release(false)
		return err
	}
	leaf.SetNextLeaf(rightNode.ID())

	if oldNext != storage.InvalidPageID {
		nextGuard, err := t.pm.Fetch(oldNext, true)
		if err != nil {
			rightGuard.Release(true)
			return err
		}
		nextNode, err := Wrap(nextGuard.Page())
		if err != nil {
			nextGuard.Release(false)
			rightGuard.Release(true)
			return err
		}
		nextNode.SetPrevLeaf(rightNode.ID())
		if err := nextGuard.Release(true); err != nil {
			rightGuard.Release(true)
			return err
		}
	}

	sep := rightKeys[0]
	rightID := rightNode.ID()
	if err := rightGuard.Release(true); err != nil {
		return err
	}

	return t.propagateSplit(path, sep, rightID)
}

// propagateSplit inserts (sep, rightChild) into the parent named by the
// last entry of path, splitting that parent (and so on up the path) if it
// overflows, and creates a new root if the split reaches the top.
func (t *Tree) propagateSplit(path []pathEntry, sep []byte, rightChild storage.PageID) error {
	for i := len(path) - 1; i >= 0; i-- {
		entry := path[i]
		guard, err := t.pm.Fetch(entry.pageID, true)
		if err != nil {
			return err
		}
		node, err := Wrap(guard.Page())
		if err != nil {
			guard.Release(false)
			return err
		}

		keys := node.Keys()
		values := node.RawValues()
		newKeys := spliceKeys(keys, entry.childIdx, sep)
		newValues := spliceValues(values, entry.childIdx+1, uint64(rightChild))

		if err := t.setParent(rightChild, entry.pageID); err != nil {
			guard.Release(false)
			return err
		}

		if capacityOK(len(newKeys), len(newValues), totalKeyBytes(newKeys)) {
			err := node.Rebuild(newKeys, newValues)
			rel := guard.Release(true)
			if err != nil {
				return err
			}
			return rel
		}

		mid := len(newKeys) / 2
		leftKeys, medianKey, rightKeys := newKeys[:mid], newKeys[mid], newKeys[mid+1:]
		leftValues, rightValues := newValues[:mid+1], newValues[mid+1:]

		newRightGuard, err := t.pm.NewPage(storage.PageTypeIndex)
		if err != nil {
			guard.Release(false)
			return err
		}
		newRightNode := NewInternal(newRightGuard.Page())
		if err := newRightNode.Rebuild(rightKeys, rightValues); err != nil {
			newRightGuard.Release(false)
			guard.Release(false)
			return err
		}
		if err := node.Rebuild(leftKeys, leftValues); err != nil {
			newRightGuard.Release(false)
			guard.Release(false)
			return err
		}

		newRightID := newRightGuard.ID()
		if err := t.reparentChildren(newRightNode, newRightID); err != nil {
			newRightGuard.Release(true)
			guard.Release(true)
			return err
		}
		if err := newRightGuard.Release(true); err != nil {
			guard.Release(true)
			return err
		}
		if err := guard.Release(true); err != nil {
			return err
		}

		sep = medianKey
		rightChild = newRightID
		// continue to the next ancestor, or fall through to new-root below
	}

	// Every ancestor on the path was consumed (or there were none): the
	// former root just split. path is empty when the original leaf was
	// itself the root, in which case the old root id is t.root.
	leftID := t.root
	if len(path) > 0 {
		leftID = path[0].pageID
	}
	return t.newRoot(leftID, sep, rightChild)
}

func (t *Tree) newRoot(left storage.PageID, sep []byte, right storage.PageID) error {
	guard, err := t.pm.NewPage(storage.PageTypeIndex)
	if err != nil {
		return err
	}
	root := NewInternal(guard.Page())
	if err := root.Rebuild([][]byte{sep}, []uint64{uint64(left), uint64(right)}); err != nil {
		guard.Release(false)
		return err
	}
	rootID := guard.ID()
	if err := guard.Release(true); err != nil {
		return err
	}
	if err := t.setParent(left, rootID); err != nil {
		return err
	}
	if err := t.setParent(right, rootID); err != nil {
		return err
	}
	t.root = rootID
	return nil
}

func (t *Tree) setParent(child storage.PageID, parent storage.PageID) error {
	guard, err := t.pm.Fetch(child, true)
	if err != nil {
		return err
	}
	node, err := Wrap(guard.Page())
	if err != nil {
		guard.Release(false)
		return err
	}
	node.SetParent(parent)
	return guard.Release(true)
}

// reparentChildren updates the Parent pointer of every child referenced by
// an internal node's value array, used after that node's children moved
// under a new internal page during a split.
func (t *Tree) reparentChildren(node *Node, newParent storage.PageID) error {
	if node.IsLeaf() {
		return nil
	}
	for i := 0; i < node.ValueCount(); i++ {
		if err := t.setParent(node.Child(i), newParent); err != nil {
			return err
		}
	}
	return nil
}

// Remove erases the leaf entry matching (key, r) if present. No rebalance
// or merge is performed on the now-possibly-sparse leaf.
func (t *Tree) Remove(key []byte, r rid.RecordID) error {
	leaf, _, err := t.descendToLeafHeld(key)
	if err != nil {
		return err
	}
	defer leaf.guard.Release(true)

	idx, _ := leaf.node.findInsertPos(key)
	keys := leaf.node.Keys()
	values := leaf.node.RawValues()

	for idx < len(keys) && compareBytes(keys[idx], key) == 0 {
		if rid.RecordID(values[idx]) == r {
			newKeys := removeAt(keys, idx)
			newValues := removeAt(values, idx)
			return leaf.node.Rebuild(newKeys, newValues)
		}
		idx++
	}
	return nil // not found: a no-op, per the lenient index-maintenance contract
}

// ScanEqual returns every record id stored at key.
func (t *Tree) ScanEqual(key []byte) ([]rid.RecordID, error) {
	return t.ScanRange(key, true, key, true)
}

// ScanRange walks sibling-linked leaves collecting record ids whose key
// satisfies [lower, upper] (bounds nil mean unbounded; inclusivity flags
// apply to the corresponding bound).
func (t *Tree) ScanRange(lower []byte, lowerIncl bool, upper []byte, upperIncl bool) ([]rid.RecordID, error) {
	var out []rid.RecordID

	var leaf *Node
	var startIdx int
	var guard *storage.PageGuard

	if lower != nil {
		h, _, derr := t.descendToLeafHeld(lower)
		if derr != nil {
			return nil, derr
		}
		leaf, guard = h.node, h.guard
		idx, exact := leaf.findInsertPos(lower)
		if exact && !lowerIncl {
			idx++
		}
		startIdx = idx
	} else {
		h, derr := t.leftmostLeaf()
		if derr != nil {
			return nil, derr
		}
		leaf, guard = h.node, h.guard
		startIdx = 0
	}

	cur := leaf
	idx := startIdx
	for {
		keys := cur.Keys()
		values := cur.RawValues()
		for ; idx < len(keys); idx++ {
			if upper != nil {
				cmp := compareBytes(keys[idx], upper)
				if cmp > 0 || (cmp == 0 && !upperIncl) {
					if guard != nil {
						guard.Release(false)
					}
					return out, nil
				}
			}
			out = append(out, rid.RecordID(values[idx]))
		}
		next := cur.NextLeaf()
		if guard != nil {
			if err := guard.Release(false); err != nil {
				return nil, err
			}
			guard = nil
		}
		if next == storage.InvalidPageID {
			return out, nil
		}
		g, err := t.pm.Fetch(next, false)
		if err != nil {
			return nil, err
		}
		node, err := Wrap(g.Page())
		if err != nil {
			g.Release(false)
			return nil, err
		}
		guard = g
		cur = node
		idx = 0
	}
}
