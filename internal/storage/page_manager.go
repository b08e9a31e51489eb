package storage

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// Metadata page (page id 1) layout within Payload(), little-endian:
//
//	+0  catalog_tables_root  i64
//	+8  catalog_columns_root i64
//	+16 catalog_indexes_root i64
//	+24 next_table_id        u64
//	+32 next_index_id        u64
//	+40 free_list_head       i64
const (
	mdCatalogTablesRoot  = 0
	mdCatalogColumnsRoot = 8
	mdCatalogIndexesRoot = 16
	mdNextTableID        = 24
	mdNextIndexID        = 32
	mdFreeListHead       = 40
)

// metadataPageID is the fixed location of the metadata page in the main
// database file. Page 0 is reserved and never allocated to a caller so
// that "page id 0" can double as a sentinel in tooling that doesn't have
// access to InvalidPageID.
const metadataPageID PageID = 1

// PageManager is the narrow front door every other package uses to reach
// pages: it wraps a BufferCache with the free-list policy and the typed
// metadata-page-1 accessors (catalog roots, id counters). Exposing only
// these accessors — rather than letting the catalog reach into the
// metadata page's bytes directly — is what keeps internal/catalog and
// internal/storage from forming a cyclic dependency.
type PageManager struct {
	cache *BufferCache
	log   *zap.SugaredLogger
}

// OpenPageManager wraps store in a buffer cache of the given capacity,
// initializing the reserved page 0 and metadata page 1 if the file is
// brand new.
func OpenPageManager(store *FileStore, cacheCapacity int, log *zap.SugaredLogger) (*PageManager, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cache := NewBufferCache(store, cacheCapacity, log)
	pm := &PageManager{cache: cache, log: log}

	if store.PageCount() == 0 {
		reserved, err := cache.allocateFresh(PageTypeFree)
		if err != nil {
			return nil, err
		}
		if err := reserved.Release(true); err != nil {
			return nil, err
		}

		meta, err := cache.allocateFresh(PageTypeMetadata)
		if err != nil {
			return nil, err
		}
		page := meta.Page()
		writeI64(page, mdCatalogTablesRoot, InvalidPageID)
		writeI64(page, mdCatalogColumnsRoot, InvalidPageID)
		writeI64(page, mdCatalogIndexesRoot, InvalidPageID)
		writeU64(page, mdNextTableID, 1)
		writeU64(page, mdNextIndexID, 1)
		writeI64(page, mdFreeListHead, InvalidPageID)
		if err := meta.Release(true); err != nil {
			return nil, err
		}
	}

	return pm, nil
}

func writeI64(p *Page, off int, v PageID) {
	binary.LittleEndian.PutUint64(p.Payload()[off:], uint64(v))
}
func readI64(p *Page, off int) PageID {
	return PageID(binary.LittleEndian.Uint64(p.Payload()[off:]))
}
func writeU64(p *Page, off int, v uint64) {
	binary.LittleEndian.PutUint64(p.Payload()[off:], v)
}
func readU64(p *Page, off int) uint64 {
	return binary.LittleEndian.Uint64(p.Payload()[off:])
}

// Fetch pins and returns the page for id.
func (pm *PageManager) Fetch(id PageID, forWrite bool) (*PageGuard, error) {
	return pm.cache.Fetch(id, forWrite)
}

// NewPage allocates a page of the given type, reusing the free-list head
// if one is available and otherwise extending the file. The returned page
// is pinned; the caller must Release it.
func (pm *PageManager) NewPage(typ PageType) (*PageGuard, error) {
	head, err := pm.FreeListHead()
	if err != nil {
		return nil, err
	}
	if head == InvalidPageID {
		return pm.cache.allocateFresh(typ)
	}

	guard, err := pm.cache.Fetch(head, true)
	if err != nil {
		return nil, err
	}
	nextFree := readI64(guard.Page(), 0) // free page's payload[0:8] holds the next link
	if err := pm.setFreeListHead(nextFree); err != nil {
		guard.Release(false)
		return nil, err
	}
	guard.Page().init(head, typ)
	return guard, nil
}

// FreePage prepends id to the free list: its payload's first 8 bytes are
// overwritten with the previous free-list head, its type becomes FREE, and
// it becomes the new head.
func (pm *PageManager) FreePage(id PageID) error {
	guard, err := pm.cache.Fetch(id, true)
	if err != nil {
		return err
	}
	head, err := pm.FreeListHead()
	if err != nil {
		guard.Release(false)
		return err
	}
	page := guard.Page()
	page.SetType(PageTypeFree)
	binary.LittleEndian.PutUint64(page.Payload()[0:], uint64(head))
	if err := guard.Release(true); err != nil {
		return err
	}
	return pm.setFreeListHead(id)
}

// FreeListHead returns the current head of the free-page list.
func (pm *PageManager) FreeListHead() (PageID, error) {
	return pm.readMetaI64(mdFreeListHead)
}

func (pm *PageManager) setFreeListHead(id PageID) error {
	return pm.writeMetaI64(mdFreeListHead, id)
}

// CatalogTablesRoot returns the heap root page id for the tables list,
// or InvalidPageID if the catalog has not yet created it.
func (pm *PageManager) CatalogTablesRoot() (PageID, error) { return pm.readMetaI64(mdCatalogTablesRoot) }

// SetCatalogTablesRoot persists the tables list's root page id.
func (pm *PageManager) SetCatalogTablesRoot(id PageID) error {
	return pm.writeMetaI64(mdCatalogTablesRoot, id)
}

// CatalogColumnsRoot returns the heap root page id for the columns list.
func (pm *PageManager) CatalogColumnsRoot() (PageID, error) {
	return pm.readMetaI64(mdCatalogColumnsRoot)
}

// SetCatalogColumnsRoot persists the columns list's root page id.
func (pm *PageManager) SetCatalogColumnsRoot(id PageID) error {
	return pm.writeMetaI64(mdCatalogColumnsRoot, id)
}

// CatalogIndexesRoot returns the heap root page id for the indexes list.
func (pm *PageManager) CatalogIndexesRoot() (PageID, error) {
	return pm.readMetaI64(mdCatalogIndexesRoot)
}

// SetCatalogIndexesRoot persists the indexes list's root page id.
func (pm *PageManager) SetCatalogIndexesRoot(id PageID) error {
	return pm.writeMetaI64(mdCatalogIndexesRoot, id)
}

// AllocateTableID returns the next unused table id and advances the
// counter. Ids are never reused, even across DROP TABLE.
func (pm *PageManager) AllocateTableID() (uint64, error) {
	return pm.allocateCounter(mdNextTableID)
}

// AllocateIndexID returns the next unused index id and advances the
// counter.
func (pm *PageManager) AllocateIndexID() (uint64, error) {
	return pm.allocateCounter(mdNextIndexID)
}

func (pm *PageManager) allocateCounter(off int) (uint64, error) {
	guard, err := pm.cache.Fetch(metadataPageID, true)
	if err != nil {
		return 0, err
	}
	defer guard.Release(true)
	cur := readU64(guard.Page(), off)
	writeU64(guard.Page(), off, cur+1)
	return cur, nil
}

func (pm *PageManager) readMetaI64(off int) (PageID, error) {
	guard, err := pm.cache.Fetch(metadataPageID, false)
	if err != nil {
		return InvalidPageID, err
	}
	defer guard.Release(false)
	return readI64(guard.Page(), off), nil
}

func (pm *PageManager) writeMetaI64(off int, v PageID) error {
	guard, err := pm.cache.Fetch(metadataPageID, true)
	if err != nil {
		return err
	}
	defer guard.Release(true)
	writeI64(guard.Page(), off, v)
	return nil
}

// FlushAll writes every dirty frame and syncs the backing file.
func (pm *PageManager) FlushAll() error { return pm.cache.FlushAll() }

// PinCount exposes the underlying cache's total outstanding pin count, for
// tests asserting pin/unpin balance.
func (pm *PageManager) PinCount() int { return pm.cache.PinCount() }

// Close flushes and closes the backing store.
func (pm *PageManager) Close() error { return pm.cache.Close() }
