package executor

import (
	"strings"

	"github.com/relicdb/relicdb/internal/btree"
	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/heap"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/sql/parser"
	"github.com/relicdb/relicdb/internal/storage"
)

// CreateTable implements CREATE TABLE, including the automatic
// <table>_pk unique index created whenever a PRIMARY KEY column is
// declared.
func (e *Engine) CreateTable(stmt *parser.CreateTableStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	specs := make([]catalog.ColumnSpec, len(stmt.Columns))
	for i, cd := range stmt.Columns {
		t, err := ColumnType(cd.Type)
		if err != nil {
			return nil, err
		}
		def := record.NullOf(t)
		if cd.Default != nil {
			lit, err := EvalValue(cd.Default, Row{})
			if err != nil {
				return nil, err
			}
			def, err = CoerceValue(lit, t)
			if err != nil {
				return nil, err
			}
		}
		specs[i] = catalog.ColumnSpec{
			Name:       cd.Name,
			Type:       t,
			Length:     cd.Length,
			NotNull:    cd.NotNull,
			PrimaryKey: cd.PrimaryKey,
			Unique:     cd.Unique,
			Default:    def,
		}
	}

	h, err := heap.Create(e.pm, e.log)
	if err != nil {
		return nil, err
	}

	info, err := e.cat.CreateTable(stmt.Table, h.Root(), specs)
	if err != nil {
		return nil, err
	}
	e.heaps[info.ID] = h

	if stmt.PrimaryKey != "" {
		cols, err := e.cat.ListColumns(info.ID)
		if err != nil {
			return nil, err
		}
		var pkID uint64
		for _, c := range cols {
			if strings.EqualFold(c.Name, stmt.PrimaryKey) {
				pkID = c.ColumnID
			}
		}
		if _, err := e.createIndexInternal(info, stmt.Table+"_pk", []uint64{pkID}, true, true); err != nil {
			return nil, err
		}
	}

	return &Result{Message: "table created"}, nil
}

// DropTable implements DROP TABLE [IF EXISTS] ... [CASCADE]: every index
// over the table is dropped first, then the heap's page chain is freed,
// then the table's catalog row is removed. Tables live in the shared main database
// file in this implementation (see DESIGN.md), so there is no separate
// per-table file to delete.
func (e *Engine) DropTable(stmt *parser.DropTableStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.cat.GetTable(stmt.Table)
	if !ok {
		if stmt.IfExists {
			return &Result{Message: "table does not exist, skipped"}, nil
		}
		return nil, dberr.Query(dberr.TableNotFound, "table %q", stmt.Table)
	}

	for _, idx := range e.cat.ListIndexesForTable(info.ID) {
		if err := e.dropIndexInternal(idx.Name); err != nil {
			return nil, err
		}
	}

	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}
	if err := h.Truncate(); err != nil {
		return nil, err
	}
	if err := e.pm.FreePage(h.Root()); err != nil {
		return nil, err
	}
	delete(e.heaps, info.ID)

	if err := e.cat.DropTable(stmt.Table); err != nil {
		return nil, err
	}
	return &Result{Message: "table dropped"}, nil
}

// TruncateTable implements TRUNCATE TABLE: the heap's rows are discarded
// in place (Heap.Truncate) and every index over the table is emptied and
// rebuilt from the now-empty heap.
func (e *Engine) TruncateTable(stmt *parser.TruncateStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.cat.GetTable(stmt.Table)
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "table %q", stmt.Table)
	}
	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}
	if err := h.Truncate(); err != nil {
		return nil, err
	}
	if err := e.rebuildIndexesForTable(info); err != nil {
		return nil, err
	}
	return &Result{Message: "table truncated"}, nil
}

// CreateIndex implements CREATE [UNIQUE] INDEX ... ON table(cols...):
// the catalog row is persisted with an invalid root first (so a crash
// mid-build never leaves a catalog entry pointing at a half-built tree),
// the physical index is built by scanning the table's current heap, and
// only then is the root patched in.
func (e *Engine) CreateIndex(stmt *parser.CreateIndexStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.cat.GetTable(stmt.Table)
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "table %q", stmt.Table)
	}
	cols, err := e.cat.ListColumns(info.ID)
	if err != nil {
		return nil, err
	}
	colIDs := make([]uint64, len(stmt.Columns))
	for i, name := range stmt.Columns {
		found := false
		for _, c := range cols {
			if strings.EqualFold(c.Name, name) {
				colIDs[i] = c.ColumnID
				found = true
				break
			}
		}
		if !found {
			return nil, dberr.Query(dberr.ColumnNotFound, "column %q", name)
		}
	}

	if _, err := e.createIndexInternal(info, stmt.IndexName, colIDs, stmt.Unique, false); err != nil {
		return nil, err
	}
	return &Result{Message: "index created"}, nil
}

func (e *Engine) createIndexInternal(table *catalog.TableInfo, name string, colIDs []uint64, unique, primary bool) (*indexHandle, error) {
	entry, err := e.cat.CreateIndexEntry(name, table.ID, colIDs, unique, primary, storage.InvalidPageID)
	if err != nil {
		return nil, err
	}

	path := e.indexFilePathFor(table.Name, name)
	store, err := storage.OpenFileStore(path, true)
	if err != nil {
		return nil, err
	}
	pm, err := storage.OpenPageManager(store, 64, e.log)
	if err != nil {
		store.Close()
		return nil, err
	}
	tree, err := btree.Create(pm, unique, e.log)
	if err != nil {
		store.Close()
		return nil, err
	}

	handle := &indexHandle{info: entry, tree: tree, store: store, pm: pm}
	if err := e.populateIndex(table, handle, colIDs); err != nil {
		return nil, err
	}
	if err := e.cat.SetIndexRoot(name, tree.Root()); err != nil {
		return nil, err
	}
	entry.RootPage = tree.Root()
	e.indexes[strings.ToLower(name)] = handle
	return handle, nil
}

func (e *Engine) populateIndex(table *catalog.TableInfo, handle *indexHandle, colIDs []uint64) error {
	h, err := e.getHeap(table)
	if err != nil {
		return err
	}
	cols, err := e.cat.ListColumns(table.ID)
	if err != nil {
		return err
	}
	return h.Scan(func(r rid.RecordID, payload []byte) error {
		values, err := record.Decode(payload)
		if err != nil {
			return err
		}
		key, err := indexKey(cols, values, colIDs)
		if err != nil {
			return err
		}
		return handle.tree.Insert(key, r)
	})
}

// indexKey builds the composite B+ tree key for a row's values over the
// index's declared columns, in index-column order.
func indexKey(cols []*catalog.ColumnInfo, values []record.Value, colIDs []uint64) ([]byte, error) {
	parts := make([]record.Value, len(colIDs))
	for i, id := range colIDs {
		found := false
		for j, c := range cols {
			if c.ColumnID == id && j < len(values) {
				parts[i] = values[j]
				found = true
				break
			}
		}
		if !found {
			return nil, dberr.Internal(dberr.InvalidArgument, "index column not present in row")
		}
	}
	return record.EncodeKey(parts), nil
}

// DropIndex implements DROP INDEX [IF EXISTS]: the catalog row is
// removed, then the physical per-index file is deleted.
func (e *Engine) DropIndex(stmt *parser.DropIndexStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.cat.GetIndex(stmt.IndexName); !ok {
		if stmt.IfExists {
			return &Result{Message: "index does not exist, skipped"}, nil
		}
		return nil, dberr.Query(dberr.IndexNotFound, "index %q", stmt.IndexName)
	}
	if err := e.dropIndexInternal(stmt.IndexName); err != nil {
		return nil, err
	}
	return &Result{Message: "index dropped"}, nil
}

func (e *Engine) dropIndexInternal(name string) error {
	key := strings.ToLower(name)
	handle, ok := e.indexes[key]
	if ok {
		path := handle.store.Path()
		if err := handle.pm.Close(); err != nil {
			return err
		}
		if err := storage.DeleteFileStore(path); err != nil {
			return err
		}
		delete(e.indexes, key)
	}
	return e.cat.DropIndex(name)
}

// AlterTable implements ALTER TABLE ADD COLUMN / DROP COLUMN: the heap is
// migrated row-by-row to the new column shape via internal/heap.Migrate,
// and since migration does not preserve record ids, every index on the
// table is rebuilt from the new heap afterward.
func (e *Engine) AlterTable(stmt *parser.AlterTableStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.cat.GetTable(stmt.Table)
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "table %q", stmt.Table)
	}

	if stmt.AddColumn != nil {
		return e.addColumn(info, stmt.AddColumn)
	}
	return e.dropColumn(info, stmt.DropColumn)
}

func (e *Engine) addColumn(info *catalog.TableInfo, cd *parser.ColumnDefinition) (*Result, error) {
	t, err := ColumnType(cd.Type)
	if err != nil {
		return nil, err
	}
	def := record.NullOf(t)
	if cd.Default != nil {
		lit, err := EvalValue(cd.Default, Row{})
		if err != nil {
			return nil, err
		}
		def, err = CoerceValue(lit, t)
		if err != nil {
			return nil, err
		}
	}

	activeBefore, err := e.cat.ListColumns(info.ID)
	if err != nil {
		return nil, err
	}

	col, err := e.cat.AddColumn(info.ID, catalog.ColumnSpec{
		Name: cd.Name, Type: t, Length: cd.Length, NotNull: cd.NotNull, Unique: cd.Unique, Default: def,
	})
	if err != nil {
		return nil, err
	}

	if err := e.migrateHeap(info, func(old []record.Value) ([]record.Value, error) {
		if len(old) != len(activeBefore) {
			return nil, dberr.Record(dberr.SchemaMismatch, "row field count does not match active schema")
		}
		return append(append([]record.Value{}, old...), col.Default), nil
	}); err != nil {
		return nil, err
	}

	if err := e.rebuildIndexesForTable(info); err != nil {
		return nil, err
	}
	return &Result{Message: "column added"}, nil
}

func (e *Engine) dropColumn(info *catalog.TableInfo, name string) (*Result, error) {
	activeBefore, err := e.cat.ListColumns(info.ID)
	if err != nil {
		return nil, err
	}
	dropIdx := -1
	for i, c := range activeBefore {
		if strings.EqualFold(c.Name, name) {
			dropIdx = i
		}
	}
	if dropIdx < 0 {
		return nil, dberr.Query(dberr.ColumnNotFound, "column %q", name)
	}

	if err := e.cat.DropColumn(info.ID, name); err != nil {
		return nil, err
	}

	if err := e.migrateHeap(info, func(old []record.Value) ([]record.Value, error) {
		if len(old) != len(activeBefore) {
			return nil, dberr.Record(dberr.SchemaMismatch, "row field count does not match active schema")
		}
		out := make([]record.Value, 0, len(old)-1)
		for i, v := range old {
			if i == dropIdx {
				continue
			}
			out = append(out, v)
		}
		return out, nil
	}); err != nil {
		return nil, err
	}

	if err := e.rebuildIndexesForTable(info); err != nil {
		return nil, err
	}
	return &Result{Message: "column dropped"}, nil
}

func (e *Engine) migrateHeap(info *catalog.TableInfo, transform func([]record.Value) ([]record.Value, error)) error {
	src, err := e.getHeap(info)
	if err != nil {
		return err
	}
	dst, err := heap.Migrate(e.pm, src, e.log, func(old []byte) ([]byte, error) {
		values, err := record.Decode(old)
		if err != nil {
			return nil, err
		}
		newValues, err := transform(values)
		if err != nil {
			return nil, err
		}
		return record.Encode(newValues)
	})
	if err != nil {
		return err
	}
	if err := e.cat.SetTableRoot(info.ID, dst.Root()); err != nil {
		return err
	}
	info.RootPage = dst.Root()
	e.heaps[info.ID] = dst
	return nil
}

// rebuildIndexesForTable clears and repopulates every index on a table
// from its current heap contents, used after any operation (migration,
// truncate) that invalidates previously recorded record ids.
func (e *Engine) rebuildIndexesForTable(info *catalog.TableInfo) error {
	for _, idxInfo := range e.cat.ListIndexesForTable(info.ID) {
		handle, ok := e.indexes[strings.ToLower(idxInfo.Name)]
		if !ok {
			continue
		}
		fresh, err := btree.Create(handle.pm, idxInfo.Unique, e.log)
		if err != nil {
			return err
		}
		handle.tree = fresh
		if err := e.populateIndex(info, handle, idxInfo.Columns); err != nil {
			return err
		}
		if err := e.cat.SetIndexRoot(idxInfo.Name, fresh.Root()); err != nil {
			return err
		}
		idxInfo.RootPage = fresh.Root()
	}
	return nil
}
