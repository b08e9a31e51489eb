package catalog

import (
	"strconv"
	"strings"

	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/storage"
)

func encodeTable(t *TableInfo) ([]byte, error) {
	return record.Encode([]record.Value{
		record.BigInt(int64(t.ID)),
		record.Varchar(t.Name),
		record.BigInt(int64(t.RootPage)),
		record.BigInt(int64(t.SchemaVersion)),
		record.BigInt(int64(t.NextColumnID)),
	})
}

func decodeTable(buf []byte) (*TableInfo, error) {
	f, err := record.Decode(buf)
	if err != nil {
		return nil, err
	}
	if len(f) != 5 {
		return nil, dberr.Record(dberr.SchemaMismatch, "table row: want 5 fields, got %d", len(f))
	}
	return &TableInfo{
		ID:            uint64(f[0].I64),
		Name:          f[1].Str,
		RootPage:      storage.PageID(f[2].I64),
		SchemaVersion: uint64(f[3].I64),
		NextColumnID:  uint64(f[4].I64),
	}, nil
}

func encodeColumn(c *ColumnInfo) ([]byte, error) {
	return record.Encode([]record.Value{
		record.BigInt(int64(c.TableID)),
		record.BigInt(int64(c.ColumnID)),
		record.Varchar(c.Name),
		record.Integer(int32(c.Type)),
		record.Integer(int32(c.Length)),
		record.Integer(int32(c.Ordinal)),
		record.Bool(c.NotNull),
		record.Bool(c.PrimaryKey),
		record.Bool(c.Unique),
		record.Bool(c.IsDropped),
		record.BigInt(int64(c.SchemaVersion)),
		c.Default,
	})
}

func decodeColumn(buf []byte) (*ColumnInfo, error) {
	f, err := record.Decode(buf)
	if err != nil {
		return nil, err
	}
	if len(f) != 12 {
		return nil, dberr.Record(dberr.SchemaMismatch, "column row: want 12 fields, got %d", len(f))
	}
	return &ColumnInfo{
		TableID:       uint64(f[0].I64),
		ColumnID:      uint64(f[1].I64),
		Name:          f[2].Str,
		Type:          record.DataType(f[3].I32),
		Length:        uint32(f[4].I32),
		Ordinal:       uint32(f[5].I32),
		NotNull:       f[6].Bool,
		PrimaryKey:    f[7].Bool,
		Unique:        f[8].Bool,
		IsDropped:     f[9].Bool,
		SchemaVersion: uint64(f[10].I64),
		Default:       f[11],
	}, nil
}

func joinColumnIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitColumnIDs(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, dberr.Record(dberr.SchemaMismatch, "bad column id list %q", s)
		}
		out[i] = v
	}
	return out, nil
}

func encodeIndex(idx *IndexInfo) ([]byte, error) {
	return record.Encode([]record.Value{
		record.BigInt(int64(idx.ID)),
		record.Varchar(idx.Name),
		record.BigInt(int64(idx.TableID)),
		record.Varchar(joinColumnIDs(idx.Columns)),
		record.Bool(idx.Unique),
		record.Bool(idx.Primary),
		record.BigInt(int64(idx.RootPage)),
	})
}

func decodeIndex(buf []byte) (*IndexInfo, error) {
	f, err := record.Decode(buf)
	if err != nil {
		return nil, err
	}
	if len(f) != 7 {
		return nil, dberr.Record(dberr.SchemaMismatch, "index row: want 7 fields, got %d", len(f))
	}
	cols, err := splitColumnIDs(f[3].Str)
	if err != nil {
		return nil, err
	}
	return &IndexInfo{
		ID:       uint64(f[0].I64),
		Name:     f[1].Str,
		TableID:  uint64(f[2].I64),
		Columns:  cols,
		Unique:   f[4].Bool,
		Primary:  f[5].Bool,
		RootPage: storage.PageID(f[6].I64),
	}, nil
}
