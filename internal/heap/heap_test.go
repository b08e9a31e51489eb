package heap

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

func openTestPageManager(t *testing.T) *storage.PageManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.db")
	fs, err := storage.OpenFileStore(path, true)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	pm, err := storage.OpenPageManager(fs, 16, nil)
	require.NoError(t, err)
	return pm
}

func TestHeapCreateEmptyScan(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	count := 0
	err = h.Scan(func(rid.RecordID, []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHeapInsertAndRead(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	loc, err := h.Insert([]byte("row-one"))
	require.NoError(t, err)

	payload, ok, err := h.Read(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "row-one", string(payload))
}

func TestHeapInsertAppendsPagesWhenFull(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	// Each payload is large enough that only a handful fit per page, forcing
	// the chain to grow across multiple pages.
	payload := make([]byte, 512)
	var locs []rid.RecordID
	for i := 0; i < 20; i++ {
		copy(payload, []byte(fmt.Sprintf("row-%02d", i)))
		loc, ierr := h.Insert(payload)
		require.NoError(t, ierr)
		locs = append(locs, loc)
	}

	seen := 0
	err = h.Scan(func(rid.RecordID, []byte) error {
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, seen)

	// Root page id should differ from at least one inserted record's page,
	// confirming the chain grew past a single page.
	distinctPages := map[storage.PageID]bool{}
	for _, l := range locs {
		distinctPages[l.Page()] = true
	}
	assert.Greater(t, len(distinctPages), 1)
}

func TestHeapUpdateInPlace(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	loc, err := h.Insert([]byte("original-value"))
	require.NoError(t, err)

	newLoc, err := h.Update(loc, []byte("short"))
	require.NoError(t, err)
	assert.Equal(t, loc, newLoc, "update that shrinks should stay in place")

	payload, ok, err := h.Read(newLoc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "short", string(payload))
}

func TestHeapUpdateRelocatesOnGrowth(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	loc, err := h.Insert([]byte("x"))
	require.NoError(t, err)
	// Fill the page so the grown record no longer fits beside the filler.
	_, err = h.Insert(make([]byte, storage.PageSize/2))
	require.NoError(t, err)

	grown := make([]byte, storage.PageSize)
	newLoc, err := h.Update(loc, grown[:storage.PageSize/2])
	require.NoError(t, err)
	assert.NotEqual(t, loc, newLoc)

	_, ok, err := h.Read(loc)
	require.NoError(t, err)
	assert.False(t, ok, "old location must be tombstoned after relocation")

	payload, ok, err := h.Read(newLoc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, payload, storage.PageSize/2)
}

func TestHeapEraseTombstonesRecord(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	loc, err := h.Insert([]byte("gone-soon"))
	require.NoError(t, err)

	require.NoError(t, h.Erase(loc))

	_, ok, err := h.Read(loc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeapScanSkipsErasedRecords(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	var locs []rid.RecordID
	for i := 0; i < 5; i++ {
		loc, ierr := h.Insert([]byte(fmt.Sprintf("r%d", i)))
		require.NoError(t, ierr)
		locs = append(locs, loc)
	}
	require.NoError(t, h.Erase(locs[1]))
	require.NoError(t, h.Erase(locs[3]))

	var got []string
	err = h.Scan(func(_ rid.RecordID, payload []byte) error {
		got = append(got, string(payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r2", "r4"}, got)
}

func TestHeapOpenReconstructsTailFromChain(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	payload := make([]byte, 512)
	for i := 0; i < 20; i++ {
		_, err := h.Insert(payload)
		require.NoError(t, err)
	}

	reopened, err := Open(pm, h.Root(), nil)
	require.NoError(t, err)
	assert.Equal(t, h.tail, reopened.tail)

	loc, err := reopened.Insert([]byte("after-reopen"))
	require.NoError(t, err)
	got, ok, err := reopened.Read(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "after-reopen", string(got))
}

func TestHeapTruncateClearsAllRows(t *testing.T) {
	pm := openTestPageManager(t)
	h, err := Create(pm, nil)
	require.NoError(t, err)

	payload := make([]byte, 512)
	for i := 0; i < 20; i++ {
		_, err := h.Insert(payload)
		require.NoError(t, err)
	}

	require.NoError(t, h.Truncate())
	assert.Equal(t, h.Root(), h.tail)

	count := 0
	err = h.Scan(func(rid.RecordID, []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	loc, err := h.Insert([]byte("fresh-after-truncate"))
	require.NoError(t, err)
	got, ok, err := h.Read(loc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh-after-truncate", string(got))
}

func TestHeapMigrateTransformsAndFreesOldChain(t *testing.T) {
	pm := openTestPageManager(t)
	src, err := Create(pm, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := src.Insert([]byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
	}

	dst, err := Migrate(pm, src, nil, func(old []byte) ([]byte, error) {
		return append(old, '!'), nil
	})
	require.NoError(t, err)
	assert.NotEqual(t, src.Root(), dst.Root())

	var got []string
	err = dst.Scan(func(_ rid.RecordID, payload []byte) error {
		got = append(got, string(payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"v0!", "v1!", "v2!", "v3!", "v4!"}, got)
}

func TestHeapMigratePropagatesTransformError(t *testing.T) {
	pm := openTestPageManager(t)
	src, err := Create(pm, nil)
	require.NoError(t, err)
	_, err = src.Insert([]byte("x"))
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	_, err = Migrate(pm, src, nil, func(old []byte) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
