package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/storage"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	store, err := storage.OpenFileStore(t.TempDir()+"/catalog.db", true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pm, err := storage.OpenPageManager(store, 64, zap.NewNop().Sugar())
	require.NoError(t, err)

	cat, err := Open(pm, zap.NewNop().Sugar())
	require.NoError(t, err)
	return cat
}

func idCols() []ColumnSpec {
	return []ColumnSpec{
		{Name: "id", Type: record.TypeInteger, PrimaryKey: true, NotNull: true},
		{Name: "name", Type: record.TypeVarchar, Length: 32},
	}
}

func TestCreateTableAndLookup(t *testing.T) {
	cat := openTestCatalog(t)

	info, err := cat.CreateTable("users", storage.PageID(10), idCols())
	require.NoError(t, err)
	assert.Equal(t, "users", info.Name)
	assert.EqualValues(t, 2, info.NextColumnID)

	got, ok := cat.GetTable("USERS")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, info.ID, got.ID)

	cols, err := cat.ListColumns(info.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
}

func TestCreateTableDuplicateName(t *testing.T) {
	cat := openTestCatalog(t)

	_, err := cat.CreateTable("users", storage.PageID(1), idCols())
	require.NoError(t, err)

	_, err = cat.CreateTable("Users", storage.PageID(2), idCols())
	require.Error(t, err)
	code, ok := dberr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, dberr.TableExists, code)
}

func TestCreateTableDuplicateColumn(t *testing.T) {
	cat := openTestCatalog(t)

	cols := []ColumnSpec{
		{Name: "id", Type: record.TypeInteger},
		{Name: "ID", Type: record.TypeVarchar},
	}
	_, err := cat.CreateTable("t", storage.PageID(1), cols)
	require.Error(t, err)
	code, _ := dberr.CodeOf(err)
	assert.Equal(t, dberr.DuplicateColumn, code)
}

func TestCreateTableMultiplePrimaryKeys(t *testing.T) {
	cat := openTestCatalog(t)

	cols := []ColumnSpec{
		{Name: "a", Type: record.TypeInteger, PrimaryKey: true},
		{Name: "b", Type: record.TypeInteger, PrimaryKey: true},
	}
	_, err := cat.CreateTable("t", storage.PageID(1), cols)
	require.Error(t, err)
	code, _ := dberr.CodeOf(err)
	assert.Equal(t, dberr.InvalidConstraint, code)
}

func TestAddColumn(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), idCols())
	require.NoError(t, err)

	before := info.SchemaVersion
	col, err := cat.AddColumn(info.ID, ColumnSpec{Name: "email", Type: record.TypeText, Default: record.NullOf(record.TypeText)})
	require.NoError(t, err)
	assert.Equal(t, "email", col.Name)

	updated, ok := cat.GetTableByID(info.ID)
	require.True(t, ok)
	assert.Equal(t, before+1, updated.SchemaVersion)

	cols, err := cat.ListColumns(info.ID)
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestAddColumnPrimaryKeyRejected(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), idCols())
	require.NoError(t, err)

	_, err = cat.AddColumn(info.ID, ColumnSpec{Name: "x", Type: record.TypeInteger, PrimaryKey: true})
	require.Error(t, err)
	code, _ := dberr.CodeOf(err)
	assert.Equal(t, dberr.InvalidConstraint, code)
}

func TestDropColumnTombstonesAndRenumbers(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), []ColumnSpec{
		{Name: "id", Type: record.TypeInteger, PrimaryKey: true},
		{Name: "a", Type: record.TypeInteger},
		{Name: "b", Type: record.TypeInteger},
	})
	require.NoError(t, err)

	require.NoError(t, cat.DropColumn(info.ID, "a"))

	active, err := cat.ListColumns(info.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "id", active[0].Name)
	assert.Equal(t, "b", active[1].Name)
	assert.EqualValues(t, 1, active[1].Ordinal)

	all, err := cat.ListAllColumns(info.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	var tombstoned *ColumnInfo
	for _, c := range all {
		if c.Name == "a" {
			tombstoned = c
		}
	}
	require.NotNil(t, tombstoned)
	assert.True(t, tombstoned.IsDropped)
	assert.Equal(t, DroppedOrdinal, tombstoned.Ordinal)
}

func TestDropColumnRejectsLastColumn(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), []ColumnSpec{
		{Name: "only", Type: record.TypeInteger},
	})
	require.NoError(t, err)

	err = cat.DropColumn(info.ID, "only")
	require.Error(t, err)
	code, _ := dberr.CodeOf(err)
	assert.Equal(t, dberr.InvalidConstraint, code)
}

func TestDropColumnRejectsPrimaryKey(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), idCols())
	require.NoError(t, err)

	err = cat.DropColumn(info.ID, "id")
	require.Error(t, err)
	code, _ := dberr.CodeOf(err)
	assert.Equal(t, dberr.InvalidConstraint, code)
}

func TestDropTableRemovesFromCache(t *testing.T) {
	cat := openTestCatalog(t)
	_, err := cat.CreateTable("t", storage.PageID(1), idCols())
	require.NoError(t, err)

	require.NoError(t, cat.DropTable("T"))

	_, ok := cat.GetTable("t")
	assert.False(t, ok)
	assert.Empty(t, cat.ListTables())
}

func TestIndexLifecycle(t *testing.T) {
	cat := openTestCatalog(t)
	info, err := cat.CreateTable("t", storage.PageID(1), idCols())
	require.NoError(t, err)

	idx, err := cat.CreateIndexEntry("t_pk", info.ID, []uint64{1}, true, true, storage.InvalidPageID)
	require.NoError(t, err)
	assert.Equal(t, "t_pk", idx.Name)

	require.NoError(t, cat.SetIndexRoot("t_pk", storage.PageID(42)))
	got, ok := cat.GetIndex("t_pk")
	require.True(t, ok)
	assert.Equal(t, storage.PageID(42), got.RootPage)

	require.NoError(t, cat.DropIndex("t_pk"))
	_, ok = cat.GetIndex("t_pk")
	assert.False(t, ok)
}

func TestTableIDsNeverReused(t *testing.T) {
	cat := openTestCatalog(t)

	first, err := cat.CreateTable("a", storage.PageID(1), idCols())
	require.NoError(t, err)
	require.NoError(t, cat.DropTable("a"))

	second, err := cat.CreateTable("b", storage.PageID(2), idCols())
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
}
