package btree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

func openTestPageManager(t *testing.T) *storage.PageManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.db")
	fs, err := storage.OpenFileStore(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	pm, err := storage.OpenPageManager(fs, 64, nil)
	require.NoError(t, err)
	return pm
}

func intKey(n int64) []byte {
	return record.EncodeKey([]record.Value{record.BigInt(n)})
}

func TestTreeInsertAndScanEqual(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	loc := rid.New(storage.PageID(5), 1)
	require.NoError(t, tree.Insert(intKey(42), loc))

	got, err := tree.ScanEqual(intKey(42))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, loc, got[0])
}

func TestUniqueTreeRejectsDuplicateKey(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	require.NoError(t, tree.Insert(intKey(1), rid.New(storage.PageID(2), 0)))
	err = tree.Insert(intKey(1), rid.New(storage.PageID(3), 0))
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.DuplicateKey, code)
}

func TestNonUniqueTreeOverwritesValueOnEqualKey(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, false, nil)
	require.NoError(t, err)

	first := rid.New(storage.PageID(2), 0)
	second := rid.New(storage.PageID(3), 0)
	require.NoError(t, tree.Insert(intKey(7), first))
	require.NoError(t, tree.Insert(intKey(7), second))

	got, err := tree.ScanEqual(intKey(7))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second, got[0])
}

func TestTreeSplitsAcrossManyInserts(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	const n = 500
	for i := 0; i < n; i++ {
		loc := rid.New(storage.PageID(i+10), 0)
		require.NoError(t, tree.Insert(intKey(int64(i)), loc))
	}

	for i := 0; i < n; i++ {
		got, err := tree.ScanEqual(intKey(int64(i)))
		require.NoError(t, err)
		require.Lenf(t, got, 1, "key %d", i)
		assert.Equal(t, rid.New(storage.PageID(i+10), 0), got[0])
	}
}

func TestTreeScanRangeInclusiveBounds(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, tree.Insert(intKey(int64(i)), rid.New(storage.PageID(i+1), 0)))
	}

	got, err := tree.ScanRange(intKey(5), true, intKey(10), true)
	require.NoError(t, err)
	assert.Len(t, got, 6) // 5,6,7,8,9,10
}

func TestTreeScanRangeExclusiveBounds(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, tree.Insert(intKey(int64(i)), rid.New(storage.PageID(i+1), 0)))
	}

	got, err := tree.ScanRange(intKey(5), false, intKey(10), false)
	require.NoError(t, err)
	assert.Len(t, got, 4) // 6,7,8,9
}

func TestTreeScanRangeUnboundedBelow(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, tree.Insert(intKey(int64(i)), rid.New(storage.PageID(i+1), 0)))
	}

	got, err := tree.ScanRange(nil, true, intKey(3), true)
	require.NoError(t, err)
	assert.Len(t, got, 4) // 0,1,2,3
}

func TestTreeRemoveDeletesMatchingEntry(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, false, nil)
	require.NoError(t, err)

	loc := rid.New(storage.PageID(9), 2)
	require.NoError(t, tree.Insert(intKey(100), loc))
	require.NoError(t, tree.Remove(intKey(100), loc))

	got, err := tree.ScanEqual(intKey(100))
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestTreeRemoveNonexistentIsNoOp(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, false, nil)
	require.NoError(t, err)

	err = tree.Remove(intKey(999), rid.New(storage.PageID(1), 0))
	assert.NoError(t, err)
}

func TestTreeOpenReopensExistingRoot(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Insert(intKey(1), rid.New(storage.PageID(1), 0)))

	reopened := Open(pm, tree.Root(), true, nil)
	got, err := reopened.ScanEqual(intKey(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestTreeStringKeyOrdering(t *testing.T) {
	pm := openTestPageManager(t)
	tree, err := Create(pm, true, nil)
	require.NoError(t, err)

	names := []string{"charlie", "alpha", "delta", "bravo"}
	for i, name := range names {
		key := record.EncodeKey([]record.Value{record.Varchar(name)})
		require.NoError(t, tree.Insert(key, rid.New(storage.PageID(i+1), 0)))
	}

	got, err := tree.ScanRange(nil, true, nil, true)
	require.NoError(t, err)
	require.Len(t, got, 4)

	var order []string
	for _, r := range got {
		order = append(order, fmt.Sprintf("%d", r.Page()))
	}
	// alpha(2), bravo(4), charlie(1), delta(3)
	assert.Equal(t, []string{"2", "4", "1", "3"}, order)
}
