package catalog

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/heap"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/storage"
)

type tableEntry struct {
	info *TableInfo
	loc  rid.RecordID
}

type indexEntry struct {
	info *IndexInfo
	loc  rid.RecordID
}

// Catalog is the single-database registry of tables, columns, and
// indexes. It owns three heaps (one per list) and caches the tables and
// indexes lists in memory; columns are re-read from their heap on every
// call.
type Catalog struct {
	pm *storage.PageManager

	tables  *heap.Heap
	columns *heap.Heap
	indexes *heap.Heap

	tablesByID   map[uint64]*tableEntry
	tablesByName map[string]uint64

	indexesByName map[string]*indexEntry

	log *zap.SugaredLogger
}

// Open opens (or, on a brand-new database, creates) the catalog's three
// backing heaps and loads the tables/indexes caches.
func Open(pm *storage.PageManager, log *zap.SugaredLogger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Catalog{
		pm:            pm,
		tablesByID:    make(map[uint64]*tableEntry),
		tablesByName:  make(map[string]uint64),
		indexesByName: make(map[string]*indexEntry),
		log:           log,
	}

	tablesHeap, err := openOrCreateList(pm, log, pm.CatalogTablesRoot, pm.SetCatalogTablesRoot)
	if err != nil {
		return nil, err
	}
	columnsHeap, err := openOrCreateList(pm, log, pm.CatalogColumnsRoot, pm.SetCatalogColumnsRoot)
	if err != nil {
		return nil, err
	}
	indexesHeap, err := openOrCreateList(pm, log, pm.CatalogIndexesRoot, pm.SetCatalogIndexesRoot)
	if err != nil {
		return nil, err
	}
	c.tables, c.columns, c.indexes = tablesHeap, columnsHeap, indexesHeap

	// Best-effort cache refresh: a read failure here is logged and ignored
	// rather than aborting database open.
	if err := c.refreshTableCache(); err != nil {
		c.log.Warnw("catalog: failed to refresh table cache on open", "error", err)
	}
	if err := c.refreshIndexCache(); err != nil {
		c.log.Warnw("catalog: failed to refresh index cache on open", "error", err)
	}
	return c, nil
}

func openOrCreateList(pm *storage.PageManager, log *zap.SugaredLogger, get func() (storage.PageID, error), set func(storage.PageID) error) (*heap.Heap, error) {
	root, err := get()
	if err != nil {
		return nil, err
	}
	if root != storage.InvalidPageID {
		return heap.Open(pm, root, log)
	}
	h, err := heap.Create(pm, log)
	if err != nil {
		return nil, err
	}
	if err := set(h.Root()); err != nil {
		return nil, err
	}
	return h, nil
}

func (c *Catalog) refreshTableCache() error {
	tablesByID := make(map[uint64]*tableEntry)
	tablesByName := make(map[string]uint64)
	err := c.tables.Scan(func(loc rid.RecordID, payload []byte) error {
		info, derr := decodeTable(payload)
		if derr != nil {
			return derr
		}
		tablesByID[info.ID] = &tableEntry{info: info, loc: loc}
		tablesByName[strings.ToLower(info.Name)] = info.ID
		return nil
	})
	if err != nil {
		return err
	}
	c.tablesByID, c.tablesByName = tablesByID, tablesByName
	return nil
}

func (c *Catalog) refreshIndexCache() error {
	byName := make(map[string]*indexEntry)
	err := c.indexes.Scan(func(loc rid.RecordID, payload []byte) error {
		info, derr := decodeIndex(payload)
		if derr != nil {
			return derr
		}
		byName[strings.ToLower(info.Name)] = &indexEntry{info: info, loc: loc}
		return nil
	})
	if err != nil {
		return err
	}
	c.indexesByName = byName
	return nil
}

// ColumnSpec is the input shape for a column at CREATE TABLE / ADD COLUMN
// time, before catalog ids and ordinals are assigned.
type ColumnSpec struct {
	Name       string
	Type       record.DataType
	Length     uint32
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    record.Value
}

// CreateTable registers a new table with its initial column set. Column
// ordinals are assigned 0..n-1 in the order given. At most one column may
// be PrimaryKey=true here; primary keys cannot be added later via ADD
// COLUMN.
func (c *Catalog) CreateTable(name string, root storage.PageID, cols []ColumnSpec) (*TableInfo, error) {
	if _, exists := c.tablesByName[strings.ToLower(name)]; exists {
		return nil, dberr.Query(dberr.TableExists, "table %q already exists", name)
	}
	seen := make(map[string]bool, len(cols))
	pkCount := 0
	for _, cd := range cols {
		key := strings.ToLower(cd.Name)
		if seen[key] {
			return nil, dberr.Query(dberr.DuplicateColumn, "duplicate column %q", cd.Name)
		}
		seen[key] = true
		if cd.PrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return nil, dberr.Query(dberr.InvalidConstraint, "table %q declares more than one PRIMARY KEY column", name)
	}

	tableID, err := c.pm.AllocateTableID()
	if err != nil {
		return nil, err
	}
	info := &TableInfo{
		ID:            tableID,
		Name:          name,
		RootPage:      root,
		SchemaVersion: 1,
		NextColumnID:  uint64(len(cols)),
	}
	payload, err := encodeTable(info)
	if err != nil {
		return nil, err
	}
	loc, err := c.tables.Insert(payload)
	if err != nil {
		return nil, err
	}

	for i, cd := range cols {
		col := &ColumnInfo{
			TableID:       tableID,
			ColumnID:      uint64(i),
			Name:          cd.Name,
			Type:          cd.Type,
			Length:        cd.Length,
			Ordinal:       uint32(i),
			NotNull:       cd.NotNull,
			PrimaryKey:    cd.PrimaryKey,
			Unique:        cd.Unique,
			IsDropped:     false,
			SchemaVersion: 1,
			Default:       cd.Default,
		}
		cpayload, err := encodeColumn(col)
		if err != nil {
			return nil, err
		}
		if _, err := c.columns.Insert(cpayload); err != nil {
			return nil, err
		}
	}

	c.tablesByID[tableID] = &tableEntry{info: info, loc: loc}
	c.tablesByName[strings.ToLower(name)] = tableID
	return info, nil
}

// DropTable removes a table's catalog entry. It does not touch the
// table's heap or indexes; the caller (DDL executor) is responsible for
// freeing those and for dropping dependent indexes first.
func (c *Catalog) DropTable(name string) error {
	id, ok := c.tablesByName[strings.ToLower(name)]
	if !ok {
		return dberr.Query(dberr.TableNotFound, "table %q", name)
	}
	e := c.tablesByID[id]
	if err := c.tables.Erase(e.loc); err != nil {
		return err
	}
	delete(c.tablesByID, id)
	delete(c.tablesByName, strings.ToLower(name))
	return nil
}

// GetTable returns the cached table info for name, case-insensitively.
func (c *Catalog) GetTable(name string) (*TableInfo, bool) {
	id, ok := c.tablesByName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return c.tablesByID[id].info, true
}

// GetTableByID returns the cached table info for id.
func (c *Catalog) GetTableByID(id uint64) (*TableInfo, bool) {
	e, ok := c.tablesByID[id]
	if !ok {
		return nil, false
	}
	return e.info, true
}

// ListTables returns every table, sorted by name.
func (c *Catalog) ListTables() []*TableInfo {
	out := make([]*TableInfo, 0, len(c.tablesByID))
	for _, e := range c.tablesByID {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListColumns returns the active (non-dropped) columns of tableID in
// ordinal order, re-scanning the columns heap on every call.
func (c *Catalog) ListColumns(tableID uint64) ([]*ColumnInfo, error) {
	var out []*ColumnInfo
	err := c.columns.Scan(func(_ rid.RecordID, payload []byte) error {
		col, derr := decodeColumn(payload)
		if derr != nil {
			return derr
		}
		if col.TableID == tableID && !col.IsDropped {
			out = append(out, col)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

// ListAllColumns returns every column row (including dropped ones) for
// tableID, used by historical lookups and migration.
func (c *Catalog) ListAllColumns(tableID uint64) ([]*ColumnInfo, error) {
	var out []*ColumnInfo
	err := c.columns.Scan(func(_ rid.RecordID, payload []byte) error {
		col, derr := decodeColumn(payload)
		if derr != nil {
			return derr
		}
		if col.TableID == tableID {
			out = append(out, col)
		}
		return nil
	})
	return out, err
}

// AddColumn appends a new column to tableID, bumping its schema_version by
// exactly one. New columns cannot be declared PRIMARY KEY: primary keys are
// fixed at CREATE TABLE time.
func (c *Catalog) AddColumn(tableID uint64, cd ColumnSpec) (*ColumnInfo, error) {
	if cd.PrimaryKey {
		return nil, dberr.Query(dberr.InvalidConstraint, "cannot add a PRIMARY KEY column after CREATE TABLE")
	}
	e, ok := c.tablesByID[tableID]
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "table id %d", tableID)
	}

	active, err := c.ListColumns(tableID)
	if err != nil {
		return nil, err
	}
	for _, existing := range active {
		if strings.EqualFold(existing.Name, cd.Name) {
			return nil, dberr.Query(dberr.DuplicateColumn, "duplicate column %q", cd.Name)
		}
	}

	columnID := e.info.NextColumnID
	newVersion := e.info.SchemaVersion + 1
	col := &ColumnInfo{
		TableID:       tableID,
		ColumnID:      columnID,
		Name:          cd.Name,
		Type:          cd.Type,
		Length:        cd.Length,
		Ordinal:       uint32(len(active)),
		NotNull:       cd.NotNull,
		PrimaryKey:    false,
		Unique:        cd.Unique,
		IsDropped:     false,
		SchemaVersion: newVersion,
		Default:       cd.Default,
	}
	payload, err := encodeColumn(col)
	if err != nil {
		return nil, err
	}
	if _, err := c.columns.Insert(payload); err != nil {
		return nil, err
	}

	e.info.NextColumnID = columnID + 1
	e.info.SchemaVersion = newVersion
	if err := c.rewriteTable(e); err != nil {
		return nil, err
	}
	return col, nil
}

// DropColumn tombstones columnName within tableID: it cannot drop the
// table's only remaining active column, nor its PRIMARY KEY column.
// Ordinals of the remaining active columns are renumbered to stay
// contiguous.
func (c *Catalog) DropColumn(tableID uint64, columnName string) error {
	e, ok := c.tablesByID[tableID]
	if !ok {
		return dberr.Query(dberr.TableNotFound, "table id %d", tableID)
	}

	active, err := c.ListColumns(tableID)
	if err != nil {
		return err
	}
	if len(active) <= 1 {
		return dberr.Query(dberr.InvalidConstraint, "cannot drop the last column of table %q", e.info.Name)
	}

	var target *ColumnInfo
	var targetLoc rid.RecordID
	remaining := make([]*ColumnInfo, 0, len(active)-1)
	err = c.columns.Scan(func(loc rid.RecordID, payload []byte) error {
		col, derr := decodeColumn(payload)
		if derr != nil {
			return derr
		}
		if col.TableID != tableID || col.IsDropped {
			return nil
		}
		if strings.EqualFold(col.Name, columnName) {
			target = col
			targetLoc = loc
			return nil
		}
		remaining = append(remaining, col)
		return nil
	})
	if err != nil {
		return err
	}
	if target == nil {
		return dberr.Query(dberr.ColumnNotFound, "column %q on table %q", columnName, e.info.Name)
	}
	if target.PrimaryKey {
		return dberr.Query(dberr.InvalidConstraint, "cannot drop PRIMARY KEY column %q", columnName)
	}

	newVersion := e.info.SchemaVersion + 1
	target.IsDropped = true
	target.Ordinal = DroppedOrdinal
	target.SchemaVersion = newVersion
	tpayload, err := encodeColumn(target)
	if err != nil {
		return err
	}
	if _, err := c.columns.Update(targetLoc, tpayload); err != nil {
		return err
	}

	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Ordinal < remaining[j].Ordinal })
	for i, col := range remaining {
		if col.Ordinal == uint32(i) {
			continue
		}
		col.Ordinal = uint32(i)
		if err := c.rewriteColumn(col); err != nil {
			return err
		}
	}

	e.info.SchemaVersion = newVersion
	return c.rewriteTable(e)
}

func (c *Catalog) rewriteColumn(col *ColumnInfo) error {
	var loc rid.RecordID
	found := false
	err := c.columns.Scan(func(l rid.RecordID, payload []byte) error {
		if found {
			return nil
		}
		existing, derr := decodeColumn(payload)
		if derr != nil {
			return derr
		}
		if existing.TableID == col.TableID && existing.ColumnID == col.ColumnID {
			loc = l
			found = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return dberr.Internal(dberr.InternalError, "column %d on table %d vanished mid-update", col.ColumnID, col.TableID)
	}
	payload, err := encodeColumn(col)
	if err != nil {
		return err
	}
	_, err = c.columns.Update(loc, payload)
	return err
}

// SetTableRoot persists a new heap root page for tableID, used after heap
// migration (ALTER TABLE) or truncate-with-reallocation.
func (c *Catalog) SetTableRoot(tableID uint64, root storage.PageID) error {
	e, ok := c.tablesByID[tableID]
	if !ok {
		return dberr.Query(dberr.TableNotFound, "table id %d", tableID)
	}
	e.info.RootPage = root
	return c.rewriteTable(e)
}

// BumpSchemaVersion increments tableID's schema_version by exactly one and
// persists it.
func (c *Catalog) BumpSchemaVersion(tableID uint64) (uint64, error) {
	e, ok := c.tablesByID[tableID]
	if !ok {
		return 0, dberr.Query(dberr.TableNotFound, "table id %d", tableID)
	}
	e.info.SchemaVersion++
	if err := c.rewriteTable(e); err != nil {
		return 0, err
	}
	return e.info.SchemaVersion, nil
}

func (c *Catalog) rewriteTable(e *tableEntry) error {
	payload, err := encodeTable(e.info)
	if err != nil {
		return err
	}
	newLoc, err := c.tables.Update(e.loc, payload)
	if err != nil {
		return err
	}
	e.loc = newLoc
	return nil
}

// CreateIndexEntry registers a new secondary (or primary) index. root
// should be the root page of an already-created, empty B+ tree; the DDL
// executor creates the tree first, then calls this to record it.
func (c *Catalog) CreateIndexEntry(name string, tableID uint64, columnIDs []uint64, unique, primary bool, root storage.PageID) (*IndexInfo, error) {
	if _, exists := c.indexesByName[strings.ToLower(name)]; exists {
		return nil, dberr.Index(dberr.IndexNotFound, "index %q already exists", name)
	}
	indexID, err := c.pm.AllocateIndexID()
	if err != nil {
		return nil, err
	}
	info := &IndexInfo{
		ID:       indexID,
		Name:     name,
		TableID:  tableID,
		Columns:  columnIDs,
		Unique:   unique,
		Primary:  primary,
		RootPage: root,
	}
	payload, err := encodeIndex(info)
	if err != nil {
		return nil, err
	}
	loc, err := c.indexes.Insert(payload)
	if err != nil {
		return nil, err
	}
	c.indexesByName[strings.ToLower(name)] = &indexEntry{info: info, loc: loc}
	return info, nil
}

// GetIndex returns the cached index info for name, case-insensitively.
func (c *Catalog) GetIndex(name string) (*IndexInfo, bool) {
	e, ok := c.indexesByName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return e.info, true
}

// ListIndexesForTable returns every index on tableID, sorted by
// (table_id, name) — here just name, since tableID is fixed.
func (c *Catalog) ListIndexesForTable(tableID uint64) []*IndexInfo {
	var out []*IndexInfo
	for _, e := range c.indexesByName {
		if e.info.TableID == tableID {
			out = append(out, e.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListIndexes returns every index in the database, sorted by
// (table_id, name).
func (c *Catalog) ListIndexes() []*IndexInfo {
	out := make([]*IndexInfo, 0, len(c.indexesByName))
	for _, e := range c.indexesByName {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TableID != out[j].TableID {
			return out[i].TableID < out[j].TableID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SetIndexRoot persists the root page id discovered after the index
// manager physically rebuilds the tree (e.g. after ALTER TABLE).
func (c *Catalog) SetIndexRoot(name string, root storage.PageID) error {
	e, ok := c.indexesByName[strings.ToLower(name)]
	if !ok {
		return dberr.Index(dberr.IndexNotFound, "index %q", name)
	}
	e.info.RootPage = root
	payload, err := encodeIndex(e.info)
	if err != nil {
		return err
	}
	newLoc, err := c.indexes.Update(e.loc, payload)
	if err != nil {
		return err
	}
	e.loc = newLoc
	return nil
}

// DropIndex removes an index's catalog entry. The caller is responsible
// for freeing the index's B+ tree pages.
func (c *Catalog) DropIndex(name string) error {
	key := strings.ToLower(name)
	e, ok := c.indexesByName[key]
	if !ok {
		return dberr.Index(dberr.IndexNotFound, "index %q", name)
	}
	if err := c.indexes.Erase(e.loc); err != nil {
		return err
	}
	delete(c.indexesByName, key)
	return nil
}
