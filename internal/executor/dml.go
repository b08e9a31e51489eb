package executor

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// Insert implements INSERT, including multi-row VALUES lists. Every row
// is inserted into the heap and then into every index over the table.
func (e *Engine) Insert(stmt *parser.InsertStatement) (*Result, error) {
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
	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}

	targetCols := stmt.Columns
	if len(targetCols) == 0 {
		targetCols = make([]string, len(cols))
		for i, c := range cols {
			targetCols[i] = c.Name
		}
	}

	for _, row := range stmt.ValueRows {
		if len(row) != len(targetCols) {
			return nil, dberr.Query(dberr.InvalidConstraint, "value count does not match column count")
		}
		values := make([]record.Value, len(cols))
		for i, c := range cols {
			values[i] = c.Default
		}
		for i, name := range targetCols {
			idx := columnIndexByName(cols, name)
			if idx < 0 {
				return nil, dberr.Query(dberr.ColumnNotFound, "column %q", name)
			}
			lit, err := EvalValue(row[i], Row{})
			if err != nil {
				return nil, err
			}
			coerced, err := CoerceValue(lit, cols[idx].Type)
			if err != nil {
				return nil, err
			}
			values[idx] = coerced
		}
		for i, c := range cols {
			if c.NotNull && values[i].Null {
				return nil, dberr.Query(dberr.InvalidConstraint, "column %q may not be NULL", c.Name)
			}
		}

		payload, err := record.Encode(values)
		if err != nil {
			return nil, err
		}
		recID, err := h.Insert(payload)
		if err != nil {
			return nil, err
		}
		if err := e.insertIntoIndexes(info, cols, values, recID); err != nil {
			return nil, err
		}
	}

	return &Result{Message: fmt.Sprintf("%d row(s) inserted", len(stmt.ValueRows))}, nil
}

func columnIndexByName(cols []*catalog.ColumnInfo, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func (e *Engine) insertIntoIndexes(info *catalog.TableInfo, cols []*catalog.ColumnInfo, values []record.Value, r rid.RecordID) error {
	for _, idxInfo := range e.cat.ListIndexesForTable(info.ID) {
		handle, ok := e.indexes[strings.ToLower(idxInfo.Name)]
		if !ok {
			continue
		}
		key, err := indexKey(cols, values, idxInfo.Columns)
		if err != nil {
			return err
		}
		if err := handle.tree.Insert(key, r); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements DELETE FROM ... [WHERE ...]: every index-assisted
// candidate is re-validated against the full predicate once read back,
// and only rows that pass are erased from the heap and every index.
func (e *Engine) Delete(stmt *parser.DeleteStatement) (*Result, error) {
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
	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}
	plan, err := e.planTableScan(info, cols, stmt.Where, nil)
	if err != nil {
		return nil, err
	}

	deleted := 0
	for _, r := range plan.rows {
		payload, found, err := h.Read(r)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		values, err := record.Decode(payload)
		if err != nil {
			return nil, err
		}
		if stmt.Where != nil {
			row := RowFromCatalog(stmt.Table, cols, values)
			tb, err := EvalBool(stmt.Where, row)
			if err != nil {
				return nil, err
			}
			if !tb.IsTrue() {
				continue
			}
		}
		for _, idxInfo := range e.cat.ListIndexesForTable(info.ID) {
			handle, ok := e.indexes[strings.ToLower(idxInfo.Name)]
			if !ok {
				continue
			}
			key, err := indexKey(cols, values, idxInfo.Columns)
			if err != nil {
				return nil, err
			}
			if err := handle.tree.Remove(key, r); err != nil {
				return nil, err
			}
		}
		if err := h.Erase(r); err != nil {
			return nil, err
		}
		deleted++
	}
	return &Result{Message: fmt.Sprintf("%d row(s) deleted", deleted)}, nil
}

// Update implements UPDATE ... SET ... [WHERE ...]. An index is only
// touched for a row whose record id moved (the heap had to relocate it)
// or whose encoded key actually changed.
func (e *Engine) Update(stmt *parser.UpdateStatement) (*Result, error) {
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
	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}
	plan, err := e.planTableScan(info, cols, stmt.Where, nil)
	if err != nil {
		return nil, err
	}
	indexes := e.cat.ListIndexesForTable(info.ID)

	updated := 0
	for _, r := range plan.rows {
		payload, found, err := h.Read(r)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		oldValues, err := record.Decode(payload)
		if err != nil {
			return nil, err
		}
		oldRow := RowFromCatalog(stmt.Table, cols, oldValues)
		if stmt.Where != nil {
			tb, err := EvalBool(stmt.Where, oldRow)
			if err != nil {
				return nil, err
			}
			if !tb.IsTrue() {
				continue
			}
		}

		newValues := append([]record.Value{}, oldValues...)
		for _, asn := range stmt.Assignments {
			idx := columnIndexByName(cols, asn.Column)
			if idx < 0 {
				return nil, dberr.Query(dberr.ColumnNotFound, "column %q", asn.Column)
			}
			v, err := EvalValue(asn.Value, oldRow)
			if err != nil {
				return nil, err
			}
			coerced, err := CoerceValue(v, cols[idx].Type)
			if err != nil {
				return nil, err
			}
			if cols[idx].NotNull && coerced.Null {
				return nil, dberr.Query(dberr.InvalidConstraint, "column %q may not be NULL", cols[idx].Name)
			}
			newValues[idx] = coerced
		}

		newPayload, err := record.Encode(newValues)
		if err != nil {
			return nil, err
		}
		newRID, err := h.Update(r, newPayload)
		if err != nil {
			return nil, err
		}

		for _, idxInfo := range indexes {
			handle, ok := e.indexes[strings.ToLower(idxInfo.Name)]
			if !ok {
				continue
			}
			oldKey, err := indexKey(cols, oldValues, idxInfo.Columns)
			if err != nil {
				return nil, err
			}
			newKey, err := indexKey(cols, newValues, idxInfo.Columns)
			if err != nil {
				return nil, err
			}
			if newRID == r && bytes.Equal(oldKey, newKey) {
				continue
			}
			if err := handle.tree.Remove(oldKey, r); err != nil {
				return nil, err
			}
			if err := handle.tree.Insert(newKey, newRID); err != nil {
				return nil, err
			}
		}
		updated++
	}
	return &Result{Message: fmt.Sprintf("%d row(s) updated", updated)}, nil
}

// Select implements SELECT, dispatching through the single-table planner
// when there are no joins, and a left-deep nested-loop join otherwise,
// then applying WHERE re-validation, ORDER BY, projection (or
// aggregation), DISTINCT, and finally LIMIT/OFFSET.
func (e *Engine) Select(stmt *parser.SelectStatement) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateProjection(stmt.Columns); err != nil {
		return nil, err
	}

	info, ok := e.cat.GetTable(stmt.From)
	if !ok {
		return nil, dberr.Query(dberr.TableNotFound, "table %q", stmt.From)
	}
	cols, err := e.cat.ListColumns(info.ID)
	if err != nil {
		return nil, err
	}
	alias := stmt.FromAlias
	if alias == "" {
		alias = stmt.From
	}

	var rows []Row
	orderCovered := false
	schemaCols := columnHeader(alias, cols)

	if len(stmt.Joins) == 0 {
		plan, err := e.planTableScan(info, cols, stmt.Where, stmt.OrderBy)
		if err != nil {
			return nil, err
		}
		h, err := e.getHeap(info)
		if err != nil {
			return nil, err
		}
		rows, err = readRows(h, plan.rows, alias, cols)
		if err != nil {
			return nil, err
		}
		orderCovered = plan.orderCovers != nil
	} else {
		h, err := e.getHeap(info)
		if err != nil {
			return nil, err
		}
		all, err := e.fullHeapScan(info)
		if err != nil {
			return nil, err
		}
		rows, err = readRows(h, all, alias, cols)
		if err != nil {
			return nil, err
		}
		for _, j := range stmt.Joins {
			jInfo, ok := e.cat.GetTable(j.Table)
			if !ok {
				return nil, dberr.Query(dberr.TableNotFound, "table %q", j.Table)
			}
			jCols, err := e.cat.ListColumns(jInfo.ID)
			if err != nil {
				return nil, err
			}
			jAlias := j.Alias
			if jAlias == "" {
				jAlias = j.Table
			}
			jh, err := e.getHeap(jInfo)
			if err != nil {
				return nil, err
			}
			jAll, err := e.fullHeapScan(jInfo)
			if err != nil {
				return nil, err
			}
			jRows, err := readRows(jh, jAll, jAlias, jCols)
			if err != nil {
				return nil, err
			}
			rows, err = nestedLoopJoin(rows, jRows, j.On)
			if err != nil {
				return nil, err
			}
			schemaCols = append(schemaCols, columnHeader(jAlias, jCols)...)
		}
	}

	if stmt.Where != nil {
		rows, err = filterRows(rows, stmt.Where)
		if err != nil {
			return nil, err
		}
	}

	if len(stmt.OrderBy) > 0 && !orderCovered {
		if err := sortRows(rows, stmt.OrderBy); err != nil {
			return nil, err
		}
	}

	if isAggregateProjection(stmt.Columns) {
		values, err := evalAggregateRow(stmt.Columns, rows)
		if err != nil {
			return nil, err
		}
		headers := make([]string, len(stmt.Columns))
		for i, c := range stmt.Columns {
			headers[i] = c.String()
		}
		return &Result{Columns: headers, Rows: [][]record.Value{values}, RowCount: 1}, nil
	}

	headers, projected, err := projectRows(stmt.Columns, rows, schemaCols)
	if err != nil {
		return nil, err
	}

	if stmt.Distinct {
		projected = distinctRows(projected)
	}

	projected = applyLimitOffset(projected, stmt.Limit, stmt.Offset)

	return &Result{Columns: headers, Rows: projected, RowCount: len(projected)}, nil
}

func readRows(h interface {
	Read(rid.RecordID) ([]byte, bool, error)
}, ids []rid.RecordID, alias string, cols []*catalog.ColumnInfo) ([]Row, error) {
	rows := make([]Row, 0, len(ids))
	for _, r := range ids {
		payload, found, err := h.Read(r)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		values, err := record.Decode(payload)
		if err != nil {
			return nil, err
		}
		rows = append(rows, RowFromCatalog(alias, cols, values))
	}
	return rows, nil
}

func filterRows(rows []Row, where parser.Expression) ([]Row, error) {
	out := rows[:0:0]
	for _, row := range rows {
		tb, err := EvalBool(where, row)
		if err != nil {
			return nil, err
		}
		if tb.IsTrue() {
			out = append(out, row)
		}
	}
	return out, nil
}

func sortRows(rows []Row, orderBy []parser.OrderByClause) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			ident := &parser.Identifier{Name: ob.Column}
			vi, err := rows[i].Get(ident)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := rows[j].Get(ident)
			if err != nil {
				sortErr = err
				return false
			}
			cmp := record.OrderCompare(vi, vj)
			if ob.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return sortErr
}

func columnHeader(alias string, cols []*catalog.ColumnInfo) []ResolvedColumn {
	out := make([]ResolvedColumn, len(cols))
	for i, c := range cols {
		out[i] = ResolvedColumn{Table: alias, Name: c.Name}
	}
	return out
}

func projectRows(cols []parser.Expression, rows []Row, schemaCols []ResolvedColumn) ([]string, [][]record.Value, error) {
	multiSource := rowsSpanMultipleTables(schemaCols)
	headers := projectionHeaders(cols, schemaCols, multiSource)

	out := make([][]record.Value, 0, len(rows))
	for _, row := range rows {
		vals := make([]record.Value, 0, len(headers))
		for _, c := range cols {
			if _, ok := c.(*parser.StarExpression); ok {
				vals = append(vals, row.Values...)
				continue
			}
			v, err := EvalValue(c, row)
			if err != nil {
				return nil, nil, err
			}
			vals = append(vals, v)
		}
		out = append(out, vals)
	}
	return headers, out, nil
}

func rowsSpanMultipleTables(schemaCols []ResolvedColumn) bool {
	seen := map[string]bool{}
	for _, c := range schemaCols {
		seen[strings.ToLower(c.Table)] = true
	}
	return len(seen) > 1
}

func projectionHeaders(cols []parser.Expression, schemaCols []ResolvedColumn, multiSource bool) []string {
	var headers []string
	for _, c := range cols {
		if _, ok := c.(*parser.StarExpression); ok {
			for _, rc := range schemaCols {
				if multiSource {
					headers = append(headers, rc.Table+"."+rc.Name)
				} else {
					headers = append(headers, rc.Name)
				}
			}
			continue
		}
		headers = append(headers, c.String())
	}
	return headers
}

func distinctRows(rows [][]record.Value) [][]record.Value {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		var sb strings.Builder
		for _, v := range row {
			sb.WriteString(v.Signature())
			sb.WriteByte('\x1f')
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func applyLimitOffset(rows [][]record.Value, limit, offset *int) [][]record.Value {
	if offset != nil {
		if *offset >= len(rows) {
			return rows[:0:0]
		}
		rows = rows[*offset:]
	}
	if limit != nil {
		if *limit < len(rows) {
			rows = rows[:*limit]
		}
	}
	return rows
}
