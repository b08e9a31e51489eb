package rid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relicdb/relicdb/internal/storage"
)

func TestNewPacksAndUnpacksPageAndSlot(t *testing.T) {
	r := New(storage.PageID(123), 456)
	assert.Equal(t, storage.PageID(123), r.Page())
	assert.Equal(t, uint32(456), r.Slot())
}

func TestInvalidIsZero(t *testing.T) {
	assert.Equal(t, RecordID(0), Invalid)
}

func TestDistinctPageSlotPairsProduceDistinctIDs(t *testing.T) {
	a := New(storage.PageID(1), 0)
	b := New(storage.PageID(0), 1)
	assert.NotEqual(t, a, b)
}
