package executor

import (
	"strings"

	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/rid"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// columnConstraint accumulates what an AND-tree of WHERE predicates
// implies about a single column: an exact value, and/or a lower/upper
// range bound. Anything under an OR, or any predicate shape folding
// doesn't recognize, simply never sets one of these and falls back to a
// post-scan re-check against the full predicate.
type columnConstraint struct {
	hasEq bool
	eq    record.Value

	hasLower  bool
	lower     record.Value
	lowerIncl bool

	hasUpper  bool
	upper     record.Value
	upperIncl bool
}

// foldConstraints walks the AND-spine of a WHERE clause (stopping at any
// OR, which it cannot fold through) collecting per-column equality and
// range facts.
func foldConstraints(expr parser.Expression, cols []*catalog.ColumnInfo) map[uint64]*columnConstraint {
	out := make(map[uint64]*columnConstraint)
	var walk func(parser.Expression)
	walk = func(e parser.Expression) {
		be, ok := e.(*parser.BinaryExpression)
		if !ok {
			return
		}
		if be.Operator == parser.OpAnd {
			walk(be.Left)
			walk(be.Right)
			return
		}

		var ident *parser.Identifier
		var other parser.Expression
		op := be.Operator
		if id, ok := be.Left.(*parser.Identifier); ok {
			ident, other = id, be.Right
		} else if id, ok := be.Right.(*parser.Identifier); ok {
			ident, other = id, be.Left
			op = flipOperator(op)
		} else {
			return
		}

		col := findColumnByName(cols, ident.Name)
		if col == nil {
			return
		}
		val, err := EvalValue(other, Row{})
		if err != nil {
			return
		}
		// Index keys are encoded from column-typed values, so the literal
		// must carry the column's type too; a literal that changes value
		// under coercion is not folded.
		coerced, err := CoerceValue(val, col.Type)
		if err != nil {
			return
		}
		if cmp, ok := record.Compare(coerced, val); ok && cmp != 0 {
			return
		}
		val = coerced

		c := out[col.ColumnID]
		if c == nil {
			c = &columnConstraint{}
			out[col.ColumnID] = c
		}
		switch op {
		case parser.OpEquals:
			c.hasEq, c.eq = true, val
		case parser.OpLessThan:
			c.hasUpper, c.upper, c.upperIncl = true, val, false
		case parser.OpLessOrEqual:
			c.hasUpper, c.upper, c.upperIncl = true, val, true
		case parser.OpGreaterThan:
			c.hasLower, c.lower, c.lowerIncl = true, val, false
		case parser.OpGreaterOrEqual:
			c.hasLower, c.lower, c.lowerIncl = true, val, true
		}
	}
	walk(expr)
	return out
}

func flipOperator(op parser.BinaryOp) parser.BinaryOp {
	switch op {
	case parser.OpLessThan:
		return parser.OpGreaterThan
	case parser.OpGreaterThan:
		return parser.OpLessThan
	case parser.OpLessOrEqual:
		return parser.OpGreaterOrEqual
	case parser.OpGreaterOrEqual:
		return parser.OpLessOrEqual
	default:
		return op
	}
}

func findColumnByName(cols []*catalog.ColumnInfo, name string) *catalog.ColumnInfo {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// scanPlan describes how a single-table scan was executed: either the
// full heap in insertion order, or an index-assisted lookup that must
// still be re-validated against the full WHERE predicate once rows are
// read back.
type scanPlan struct {
	rows        []rid.RecordID
	indexUsed   string
	orderCovers []parser.OrderByClause // non-nil if rows are already in this order
}

// planTableScan selects how to read a single table's candidate record
// ids for a WHERE predicate (which may be nil) and an optional ORDER BY,
// preferring (in order) a covering equality index, a single-column range
// index, an order-covering index scan, and finally a full heap scan.
func (e *Engine) planTableScan(info *catalog.TableInfo, cols []*catalog.ColumnInfo, where parser.Expression, orderBy []parser.OrderByClause) (*scanPlan, error) {
	indexes := e.cat.ListIndexesForTable(info.ID)

	if where != nil {
		constraints := foldConstraints(where, cols)
		if plan := e.tryEqualityIndex(indexes, constraints); plan != nil {
			return plan, nil
		}
		if plan := e.tryRangeIndex(indexes, constraints); plan != nil {
			return plan, nil
		}
	}

	if plan := e.tryOrderCoveringIndex(indexes, cols, orderBy); plan != nil {
		return plan, nil
	}

	rows, err := e.fullHeapScan(info)
	if err != nil {
		return nil, err
	}
	return &scanPlan{rows: rows}, nil
}

func (e *Engine) fullHeapScan(info *catalog.TableInfo) ([]rid.RecordID, error) {
	h, err := e.getHeap(info)
	if err != nil {
		return nil, err
	}
	var rows []rid.RecordID
	err = h.Scan(func(r rid.RecordID, _ []byte) error {
		rows = append(rows, r)
		return nil
	})
	return rows, err
}

// tryEqualityIndex picks the index whose columns are all covered by
// equality constraints, preferring the widest (most-column) match.
func (e *Engine) tryEqualityIndex(indexes []*catalog.IndexInfo, constraints map[uint64]*columnConstraint) *scanPlan {
	var best *catalog.IndexInfo
	for _, idx := range indexes {
		covered := true
		for _, colID := range idx.Columns {
			c := constraints[colID]
			if c == nil || !c.hasEq {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		if best == nil || len(idx.Columns) > len(best.Columns) {
			best = idx
		}
	}
	if best == nil {
		return nil
	}
	handle, ok := e.indexes[strings.ToLower(best.Name)]
	if !ok {
		return nil
	}
	key := make([]record.Value, len(best.Columns))
	for i, colID := range best.Columns {
		key[i] = constraints[colID].eq
	}
	rows, err := handle.tree.ScanEqual(record.EncodeKey(key))
	if err != nil {
		return nil
	}
	e.reportIndexUsage(best.Name, rows)
	return &scanPlan{rows: rows, indexUsed: best.Name}
}

// tryRangeIndex picks a single-column index whose column carries a
// lower and/or upper range constraint.
func (e *Engine) tryRangeIndex(indexes []*catalog.IndexInfo, constraints map[uint64]*columnConstraint) *scanPlan {
	for _, idx := range indexes {
		if len(idx.Columns) != 1 {
			continue
		}
		c := constraints[idx.Columns[0]]
		if c == nil || c.hasEq || (!c.hasLower && !c.hasUpper) {
			continue
		}
		handle, ok := e.indexes[strings.ToLower(idx.Name)]
		if !ok {
			continue
		}
		var lowerKey, upperKey []byte
		lowerIncl, upperIncl := true, true
		if c.hasLower {
			lowerKey = record.EncodeKey([]record.Value{c.lower})
			lowerIncl = c.lowerIncl
		}
		if c.hasUpper {
			upperKey = record.EncodeKey([]record.Value{c.upper})
			upperIncl = c.upperIncl
		}
		rows, err := handle.tree.ScanRange(lowerKey, lowerIncl, upperKey, upperIncl)
		if err != nil {
			continue
		}
		e.reportIndexUsage(idx.Name, rows)
		return &scanPlan{rows: rows, indexUsed: idx.Name}
	}
	return nil
}

// tryOrderCoveringIndex uses an index whose column prefix matches the
// requested ORDER BY to avoid a separate sort pass, scanning the full
// key range and reversing it when the first ORDER BY column is DESC.
// Every ORDER BY column must share the first one's direction.
func (e *Engine) tryOrderCoveringIndex(indexes []*catalog.IndexInfo, cols []*catalog.ColumnInfo, orderBy []parser.OrderByClause) *scanPlan {
	if len(orderBy) == 0 {
		return nil
	}
	for _, idx := range indexes {
		if len(idx.Columns) == 0 || len(idx.Columns) < len(orderBy) {
			continue
		}
		matches := true
		for i, ob := range orderBy {
			col := columnByID(cols, idx.Columns[i])
			if col == nil || !strings.EqualFold(col.Name, ob.Column) || ob.Descending != orderBy[0].Descending {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}
		handle, ok := e.indexes[strings.ToLower(idx.Name)]
		if !ok {
			continue
		}
		rows, err := handle.tree.ScanRange(nil, true, nil, true)
		if err != nil {
			continue
		}
		if orderBy[0].Descending {
			reverseRecordIDs(rows)
		}
		e.reportIndexUsage(idx.Name, rows)
		return &scanPlan{rows: rows, indexUsed: idx.Name, orderCovers: orderBy}
	}
	return nil
}

func columnByID(cols []*catalog.ColumnInfo, id uint64) *catalog.ColumnInfo {
	for _, c := range cols {
		if c.ColumnID == id {
			return c
		}
	}
	return nil
}

func reverseRecordIDs(rows []rid.RecordID) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
