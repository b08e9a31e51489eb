package executor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/btree"
	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/heap"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

// Options tunes engine behavior. OnIndexUsage, when set, is called once per
// statement with the index an index-assisted scan chose, letting callers
// (EXPLAIN, tests) observe planning decisions without threading a return
// value through every query path.
type Options struct {
	OnIndexUsage func(indexName string, rows []rid.RecordID)
}

// indexHandle pairs a catalog index entry with its live B+ tree, which
// lives in its own file, separate from the main database file.
type indexHandle struct {
	info  *catalog.IndexInfo
	tree  *btree.Tree
	store *storage.FileStore
	pm    *storage.PageManager
}

// Engine is the top-level handle a DDL/DML statement executes against: the
// shared main-file catalog and table heaps, plus a registry of opened
// per-index files.
type Engine struct {
	mu  sync.Mutex
	dir string // directory holding the main file and per-index files

	pm  *storage.PageManager
	cat *catalog.Catalog
	log *zap.SugaredLogger

	heaps   map[uint64]*heap.Heap    // tableID -> heap
	indexes map[string]*indexHandle // lowercased index name -> handle

	opts Options
}

// Open wires an Engine on top of an already-open main-file PageManager and
// catalog, reopening every registered index's own file.
func Open(dir string, pm *storage.PageManager, cat *catalog.Catalog, log *zap.SugaredLogger, opts Options) (*Engine, error) {
	e := &Engine{
		dir:     dir,
		pm:      pm,
		cat:     cat,
		log:     log,
		heaps:   make(map[uint64]*heap.Heap),
		indexes: make(map[string]*indexHandle),
		opts:    opts,
	}
	for _, info := range cat.ListIndexes() {
		if info.RootPage == storage.InvalidPageID {
			// Created but never built (crashed mid-CREATE INDEX); skip, a
			// rebuild is out of scope for Open.
			continue
		}
		h, err := e.openIndexFile(info)
		if err != nil {
			log.Warnw("failed to reopen index file, skipping", "index", info.Name, "error", err)
			continue
		}
		e.indexes[strings.ToLower(info.Name)] = h
	}
	return e, nil
}

func (e *Engine) openIndexFile(info *catalog.IndexInfo) (*indexHandle, error) {
	table, ok := e.cat.GetTableByID(info.TableID)
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "index %q references missing table", info.Name)
	}
	path := e.indexFilePathFor(table.Name, info.Name)
	store, err := storage.OpenFileStore(path, true)
	if err != nil {
		return nil, err
	}
	pm, err := storage.OpenPageManager(store, 64, e.log)
	if err != nil {
		store.Close()
		return nil, err
	}
	tree := btree.Open(pm, info.RootPage, info.Unique, e.log)
	return &indexHandle{info: info, tree: tree, store: store, pm: pm}, nil
}

// indexFilePathFor names an index's own file deterministically from its
// table and index name, so a later Open call can find the same file
// without persisting a separate path in the catalog.
func (e *Engine) indexFilePathFor(table, index string) string {
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s.idx", table, index))
}

func (e *Engine) getHeap(info *catalog.TableInfo) (*heap.Heap, error) {
	if h, ok := e.heaps[info.ID]; ok {
		return h, nil
	}
	h, err := heap.Open(e.pm, info.RootPage, e.log)
	if err != nil {
		return nil, err
	}
	e.heaps[info.ID] = h
	return h, nil
}

func (e *Engine) reportIndexUsage(name string, rows []rid.RecordID) {
	if e.opts.OnIndexUsage != nil {
		e.opts.OnIndexUsage(name, rows)
	}
}

// Catalog exposes the underlying catalog for callers (EXPLAIN, the CLI's
// .schema command) that need read-only introspection.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }
