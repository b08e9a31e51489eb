// Package catalog persists table, column, and index metadata on the same
// paged substrate as table data: each of the three lists is itself a
// internal/heap.Heap whose rows are internal/record field vectors, so
// catalog storage gets chain growth, slot reuse, and round-trip encoding
// for free rather than inventing a second on-disk format. An in-memory
// cache mirrors the tables and indexes lists (columns are re-read per
// query since ALTER mutates them less predictably).
package catalog

import (
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/storage"
)

// TableInfo is one catalog row for a table.
type TableInfo struct {
	ID            uint64
	Name          string
	RootPage      storage.PageID
	SchemaVersion uint64
	NextColumnID  uint64
}

// ColumnInfo is one catalog row for a column, including dropped
// (tombstoned) columns retained for historical lookup.
type ColumnInfo struct {
	TableID       uint64
	ColumnID      uint64
	Name          string
	Type          record.DataType
	Length        uint32 // declared VARCHAR(n) length; 0 for other types
	Ordinal       uint32 // UINT32_MAX (DroppedOrdinal) once dropped
	NotNull       bool
	PrimaryKey    bool
	Unique        bool
	IsDropped     bool
	SchemaVersion uint64
	Default       record.Value // Null Value means "no default"
}

// DroppedOrdinal marks a column that has been dropped from the active
// schema; it is never a valid ordinal position.
const DroppedOrdinal uint32 = 0xFFFFFFFF

// IndexInfo is one catalog row for a secondary index.
type IndexInfo struct {
	ID       uint64
	Name     string
	TableID  uint64
	Columns  []uint64 // column ids, in key order
	Unique   bool
	Primary  bool
	RootPage storage.PageID
}
