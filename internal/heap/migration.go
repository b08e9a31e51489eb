package heap

import (
	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

// Migrate rewrites src into a brand-new heap, passing every live row's
// payload through transform (which reshapes it to the new column layout —
// adding a backfilled default or dropping a column). The old chain is
// freed once every row has been copied. Row ids are not preserved across
// migration (the whole point is a fresh chain); rebuild_table_indexes
// re-derives index entries from the new heap's current record ids rather
// than trying to carry the old ones forward.
func Migrate(pm *storage.PageManager, src *Heap, log *zap.SugaredLogger, transform func(old []byte) ([]byte, error)) (*Heap, error) {
	dst, err := Create(pm, log)
	if err != nil {
		return nil, err
	}

	err = src.Scan(func(_ rid.RecordID, payload []byte) error {
		newPayload, terr := transform(payload)
		if terr != nil {
			return terr
		}
		_, ierr := dst.Insert(newPayload)
		return ierr
	})
	if err != nil {
		return nil, err
	}

	if err := freeChain(pm, src.Root()); err != nil {
		return nil, err
	}
	return dst, nil
}

func freeChain(pm *storage.PageManager, root storage.PageID) error {
	cur := root
	for cur != storage.InvalidPageID {
		guard, err := pm.Fetch(cur, false)
		if err != nil {
			return err
		}
		next := guard.Page().NextPageID()
		if err := guard.Release(false); err != nil {
			return err
		}
		if err := pm.FreePage(cur); err != nil {
			return err
		}
		cur = next
	}
	return nil
}
