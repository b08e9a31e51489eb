package storage

import (
	"container/list"

	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/dberr"
)

// frame is one resident page in the cache.
type frame struct {
	page     *Page
	pinCount int
	dirty    bool
	elem     *list.Element // position in the LRU list; nil while pinned
}

// BufferCache is a bounded pool of page frames keyed by page id, backed by
// one FileStore. It mediates every disk read/write: callers never touch
// the FileStore directly once a cache sits in front of it.
//
// Eviction picks the least-recently-unpinned frame (container/list, front =
// most recently unpinned, back = eviction candidate); pinned frames are
// never eligible.
type BufferCache struct {
	store    *FileStore
	capacity int
	frames   map[PageID]*frame
	lru      *list.List
	log      *zap.SugaredLogger
}

// NewBufferCache builds a cache of the given frame capacity over store. A
// nil logger is replaced with a no-op logger so callers need not always
// supply one.
func NewBufferCache(store *FileStore, capacity int, log *zap.SugaredLogger) *BufferCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &BufferCache{
		store:    store,
		capacity: capacity,
		frames:   make(map[PageID]*frame),
		lru:      list.New(),
		log:      log,
	}
}

// PageGuard is a pinned, scoped handle on a frame's Page. Every Fetch/New
// must be paired with exactly one Release; Release is idempotent so a
// deferred call composes safely with an earlier explicit one on a success
// path.
type PageGuard struct {
	cache    *BufferCache
	id       PageID
	page     *Page
	released bool
}

// Page returns the underlying page. Mutations are visible to every other
// holder of the same page id until eviction writes them back.
func (g *PageGuard) Page() *Page { return g.page }

// ID returns the guarded page's id.
func (g *PageGuard) ID() PageID { return g.id }

// Release unpins the frame, latching the dirty flag if markDirty is true.
// Safe to call multiple times (and via defer after an earlier explicit
// call on the success path).
func (g *PageGuard) Release(markDirty bool) error {
	if g.released {
		return nil
	}
	g.released = true
	return g.cache.unpin(g.id, markDirty)
}

// Fetch pins the frame for id, loading it from disk on a cache miss and
// evicting an unpinned victim if the cache is full. forWrite does not
// change cache behavior today (there is no separate read/write latch
// mode) but documents caller intent.
func (c *BufferCache) Fetch(id PageID, forWrite bool) (*PageGuard, error) {
	if fr, ok := c.frames[id]; ok {
		if fr.elem != nil {
			c.lru.Remove(fr.elem)
			fr.elem = nil
		}
		fr.pinCount++
		return &PageGuard{cache: c, id: id, page: fr.page}, nil
	}

	if len(c.frames) >= c.capacity {
		if err := c.evictOne(); err != nil {
			return nil, err
		}
	}

	page, err := c.store.ReadPage(id)
	if err != nil {
		return nil, err
	}
	c.frames[id] = &frame{page: page, pinCount: 1}
	return &PageGuard{cache: c, id: id, page: page}, nil
}

func (c *BufferCache) unpin(id PageID, markDirty bool) error {
	fr, ok := c.frames[id]
	if !ok {
		return dberr.Internal(dberr.InternalError, "unpin of page %d not resident", id)
	}
	if markDirty {
		fr.dirty = true
	}
	if fr.pinCount == 0 {
		return dberr.Internal(dberr.InternalError, "unpin of page %d with zero pin count", id)
	}
	fr.pinCount--
	if fr.pinCount == 0 {
		fr.elem = c.lru.PushFront(id)
	}
	return nil
}

// evictOne evicts the least-recently-unpinned frame, writing it back first
// if dirty. Returns NO_FREE_FRAMES if every resident frame is pinned.
func (c *BufferCache) evictOne() error {
	elem := c.lru.Back()
	if elem == nil {
		return dberr.Storage(dberr.NoFreeFrames, "all %d frames are pinned", c.capacity)
	}
	victim := elem.Value.(PageID)
	c.lru.Remove(elem)
	fr := c.frames[victim]
	if fr.dirty {
		c.log.Debugw("evicting dirty frame, flushing first", "page_id", victim)
		if err := c.store.WritePage(fr.page); err != nil {
			return err
		}
	}
	delete(c.frames, victim)
	return nil
}

// allocateFresh extends the backing file by one page, initializes it as
// typ, and returns it pinned. It never consults a free list — that policy
// lives in PageManager, which is the only caller.
func (c *BufferCache) allocateFresh(typ PageType) (*PageGuard, error) {
	id, err := c.store.Extend()
	if err != nil {
		return nil, err
	}
	if len(c.frames) >= c.capacity {
		if err := c.evictOne(); err != nil {
			return nil, err
		}
	}
	page := NewPage(id, typ)
	c.frames[id] = &frame{page: page, pinCount: 1, dirty: true}
	return &PageGuard{cache: c, id: id, page: page}, nil
}

// FlushAll writes every dirty frame to disk and syncs the file store. This
// is the only durability boundary the engine offers: a clean FlushAll/Close
// is safe; a crash mid-operation is explicitly out of scope.
func (c *BufferCache) FlushAll() error {
	for id, fr := range c.frames {
		if fr.dirty {
			if err := c.store.WritePage(fr.page); err != nil {
				return err
			}
			fr.dirty = false
		}
		_ = id
	}
	return c.store.Sync()
}

// PinCount returns the total pin count across every resident frame. Tests
// use this to assert property 7 (every fetch paired with an unpin) by
// checking it returns to zero after each public operation.
func (c *BufferCache) PinCount() int {
	total := 0
	for _, fr := range c.frames {
		total += fr.pinCount
	}
	return total
}

// Close flushes and closes the backing file store.
func (c *BufferCache) Close() error {
	if err := c.FlushAll(); err != nil {
		return err
	}
	return c.store.Close()
}
