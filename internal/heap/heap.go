// Package heap implements the table heap: a doubly-linked chain of DATA
// pages holding a table's rows, with a cached tail pointer for O(1)
// append. Row payloads are opaque []byte to this package — internal/record
// owns their structure.
package heap

import (
	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

// Heap is a live handle on one table's page chain.
type Heap struct {
	pm   *storage.PageManager
	root storage.PageID
	tail storage.PageID
	log  *zap.SugaredLogger
}

// Create allocates a fresh, empty single-page heap.
func Create(pm *storage.PageManager, log *zap.SugaredLogger) (*Heap, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	guard, err := pm.NewPage(storage.PageTypeData)
	if err != nil {
		return nil, err
	}
	id := guard.ID()
	if err := guard.Release(true); err != nil {
		return nil, err
	}
	return &Heap{pm: pm, root: id, tail: id, log: log}, nil
}

// Open wraps an existing heap given its root page id, walking the chain
// once to find the current tail.
func Open(pm *storage.PageManager, root storage.PageID, log *zap.SugaredLogger) (*Heap, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := &Heap{pm: pm, root: root, tail: root, log: log}
	cur := root
	for {
		guard, err := pm.Fetch(cur, false)
		if err != nil {
			return nil, err
		}
		next := guard.Page().NextPageID()
		if err := guard.Release(false); err != nil {
			return nil, err
		}
		if next == storage.InvalidPageID {
			h.tail = cur
			return h, nil
		}
		cur = next
	}
}

// Root returns the heap's root (head) page id.
func (h *Heap) Root() storage.PageID { return h.root }

// Insert writes payload into the heap, trying the cached tail page first,
// then walking forward for mid-chain slack, else appending a fresh page.
func (h *Heap) Insert(payload []byte) (rid.RecordID, error) {
	guard, err := h.pm.Fetch(h.tail, true)
	if err != nil {
		return 0, err
	}
	if slot, ierr := guard.Page().Insert(payload); ierr == nil {
		id := guard.ID()
		if err := guard.Release(true); err != nil {
			return 0, err
		}
		return rid.New(id, uint32(slot)), nil
	}
	if err := guard.Release(false); err != nil {
		return 0, err
	}

	cur := h.root
	for cur != storage.InvalidPageID {
		g, err := h.pm.Fetch(cur, true)
		if err != nil {
			return 0, err
		}
		if slot, ierr := g.Page().Insert(payload); ierr == nil {
			id := g.ID()
			if err := g.Release(true); err != nil {
				return 0, err
			}
			return rid.New(id, uint32(slot)), nil
		}
		next := g.Page().NextPageID()
		if err := g.Release(false); err != nil {
			return 0, err
		}
		cur = next
	}

	return h.appendPage(payload)
}

func (h *Heap) appendPage(payload []byte) (rid.RecordID, error) {
	newGuard, err := h.pm.NewPage(storage.PageTypeData)
	if err != nil {
		return 0, err
	}
	newGuard.Page().SetPrevPageID(h.tail)

	slot, err := newGuard.Page().Insert(payload)
	if err != nil {
		newGuard.Release(false)
		return 0, err
	}
	newID := newGuard.ID()
	if err := newGuard.Release(true); err != nil {
		return 0, err
	}

	tailGuard, err := h.pm.Fetch(h.tail, true)
	if err != nil {
		return 0, err
	}
	tailGuard.Page().SetNextPageID(newID)
	if err := tailGuard.Release(true); err != nil {
		return 0, err
	}

	h.tail = newID
	return rid.New(newID, uint32(slot)), nil
}

// Read returns the payload at loc, or ok=false if tombstoned/out of range.
func (h *Heap) Read(loc rid.RecordID) ([]byte, bool, error) {
	guard, err := h.pm.Fetch(loc.Page(), false)
	if err != nil {
		return nil, false, err
	}
	defer guard.Release(false)
	payload, ok := guard.Page().Read(uint16(loc.Slot()))
	return payload, ok, nil
}

// Update attempts an in-place replacement. On length growth it erases the
// old slot and re-inserts the payload through Insert, returning the new
// location: another page when the old page lacks room, or the same slot
// again when Insert reuses the slot just freed.
func (h *Heap) Update(loc rid.RecordID, payload []byte) (rid.RecordID, error) {
	guard, err := h.pm.Fetch(loc.Page(), true)
	if err != nil {
		return 0, err
	}
	ok, uerr := guard.Page().Update(uint16(loc.Slot()), payload)
	if uerr != nil {
		guard.Release(false)
		return 0, uerr
	}
	if ok {
		if err := guard.Release(true); err != nil {
			return 0, err
		}
		return loc, nil
	}
	if err := guard.Page().Erase(uint16(loc.Slot())); err != nil {
		guard.Release(false)
		return 0, err
	}
	if err := guard.Release(true); err != nil {
		return 0, err
	}
	return h.Insert(payload)
}

// Erase tombstones the slot at loc.
func (h *Heap) Erase(loc rid.RecordID) error {
	guard, err := h.pm.Fetch(loc.Page(), true)
	if err != nil {
		return err
	}
	if err := guard.Page().Erase(uint16(loc.Slot())); err != nil {
		guard.Release(false)
		return err
	}
	return guard.Release(true)
}

// Scan calls fn(loc, payload) for every live slot across the chain, in
// page-then-slot order. fn returning an error stops the scan early and
// that error is returned.
func (h *Heap) Scan(fn func(rid.RecordID, []byte) error) error {
	cur := h.root
	for cur != storage.InvalidPageID {
		guard, err := h.pm.Fetch(cur, false)
		if err != nil {
			return err
		}
		page := guard.Page()
		count := page.SlotCount()
		for slot := uint16(0); slot < count; slot++ {
			payload, ok := page.Read(slot)
			if !ok {
				continue
			}
			if err := fn(rid.New(cur, uint32(slot)), payload); err != nil {
				guard.Release(false)
				return err
			}
		}
		next := page.NextPageID()
		if err := guard.Release(false); err != nil {
			return err
		}
		cur = next
	}
	return nil
}

// Truncate clears the root page in place, frees every subsequent page in
// the chain, and resets the tail to the root. Every previously issued
// RecordID is invalidated.
func (h *Heap) Truncate() error {
	cur := h.root
	guard, err := h.pm.Fetch(cur, true)
	if err != nil {
		return err
	}
	next := guard.Page().NextPageID()
	guard.Page().Reset()
	if err := guard.Release(true); err != nil {
		return err
	}

	cur = next
	for cur != storage.InvalidPageID {
		g, err := h.pm.Fetch(cur, false)
		if err != nil {
			return err
		}
		following := g.Page().NextPageID()
		if err := g.Release(false); err != nil {
			return err
		}
		if err := h.pm.FreePage(cur); err != nil {
			return err
		}
		cur = following
	}

	h.tail = h.root
	return nil
}
