package executor

import (
	"strings"

	"github.com/relicdb/relicdb/internal/catalog"
	"github.com/relicdb/relicdb/internal/dberr"
	"github.com/relicdb/relicdb/internal/record"
	"github.com/relicdb/relicdb/internal/sql/parser"
)

// ResolvedColumn names one slot of a bound Row: the table name or alias it
// came from (for qualified lookups and multi-table projection) and its
// column name.
type ResolvedColumn struct {
	Table string
	Name  string
}

// Row is a fully materialized, name-bound tuple: one or more source
// tables' columns laid out side by side, as produced by a single-table
// scan or a join. It is the unit every expression in eval.go is evaluated
// against.
type Row struct {
	Cols   []ResolvedColumn
	Values []record.Value
}

// Concat appends other's columns and values after r's, used to build the
// combined row of a nested-loop join.
func (r Row) Concat(other Row) Row {
	cols := make([]ResolvedColumn, 0, len(r.Cols)+len(other.Cols))
	vals := make([]record.Value, 0, len(r.Values)+len(other.Values))
	cols = append(cols, r.Cols...)
	cols = append(cols, other.Cols...)
	vals = append(vals, r.Values...)
	vals = append(vals, other.Values...)
	return Row{Cols: cols, Values: vals}
}

// Get resolves ident against the row's columns: an unqualified name must
// be unambiguous across every bound table, a qualified name must match
// exactly one (table, name) pair.
func (r Row) Get(ident *parser.Identifier) (record.Value, error) {
	idx, err := r.indexOf(ident)
	if err != nil {
		return record.Value{}, err
	}
	return r.Values[idx], nil
}

func (r Row) indexOf(ident *parser.Identifier) (int, error) {
	found := -1
	count := 0
	for i, c := range r.Cols {
		if !strings.EqualFold(c.Name, ident.Name) {
			continue
		}
		if ident.Table != "" && !strings.EqualFold(c.Table, ident.Table) {
			continue
		}
		found = i
		count++
	}
	switch count {
	case 0:
		return -1, dberr.Query(dberr.ColumnNotFound, "column %q", ident.String())
	case 1:
		return found, nil
	default:
		return -1, dberr.Query(dberr.AmbiguousColumn, "column %q is ambiguous", ident.String())
	}
}

// RowFromCatalog builds the ResolvedColumn header for a single table/alias
// scan from its active column list.
func RowFromCatalog(alias string, cols []*catalog.ColumnInfo, values []record.Value) Row {
	resolved := make([]ResolvedColumn, len(cols))
	for i, c := range cols {
		resolved[i] = ResolvedColumn{Table: alias, Name: c.Name}
	}
	return Row{Cols: resolved, Values: values}
}

// valueTruth converts a Value into TriBool for use as a bare boolean
// predicate (a column reference used directly in WHERE, with no
// comparison operator).
func valueTruth(v record.Value) TriBool {
	if v.Null {
		return Unknown
	}
	if v.Type == record.TypeBoolean {
		return triFromBool(v.Bool)
	}
	return Unknown
}

// EvalBool evaluates expr as a three-valued predicate against row: NULL
// operands and type-incompatible comparisons yield Unknown rather than an
// error.
func EvalBool(expr parser.Expression, row Row) (TriBool, error) {
	switch e := expr.(type) {
	case *parser.BinaryExpression:
		switch e.Operator {
		case parser.OpAnd:
			l, err := EvalBool(e.Left, row)
			if err != nil {
				return Unknown, err
			}
			r, err := EvalBool(e.Right, row)
			if err != nil {
				return Unknown, err
			}
			return l.And(r), nil
		case parser.OpOr:
			l, err := EvalBool(e.Left, row)
			if err != nil {
				return Unknown, err
			}
			r, err := EvalBool(e.Right, row)
			if err != nil {
				return Unknown, err
			}
			return l.Or(r), nil
		case parser.OpEquals, parser.OpNotEquals, parser.OpLessThan,
			parser.OpGreaterThan, parser.OpLessOrEqual, parser.OpGreaterOrEqual:
			lv, err := EvalValue(e.Left, row)
			if err != nil {
				return Unknown, err
			}
			rv, err := EvalValue(e.Right, row)
			if err != nil {
				return Unknown, err
			}
			return compareTri(lv, rv, e.Operator), nil
		default:
			return valueAsBool(expr, row)
		}

	case *parser.UnaryExpression:
		if e.Operator == parser.UnaryOpNot {
			v, err := EvalBool(e.Operand, row)
			if err != nil {
				return Unknown, err
			}
			return v.Not(), nil
		}
		return valueAsBool(expr, row)

	case *parser.IsNullExpression:
		v, err := EvalValue(e.Operand, row)
		if err != nil {
			return Unknown, err
		}
		isNull := v.Null
		if e.Not {
			isNull = !isNull
		}
		return triFromBool(isNull), nil

	default:
		return valueAsBool(expr, row)
	}
}

func valueAsBool(expr parser.Expression, row Row) (TriBool, error) {
	v, err := EvalValue(expr, row)
	if err != nil {
		return Unknown, err
	}
	return valueTruth(v), nil
}

// compareTri compares two already-evaluated values. A NULL operand or an
// incompatible type pairing yields Unknown rather than an error.
func compareTri(l, r record.Value, op parser.BinaryOp) TriBool {
	if l.Null || r.Null {
		return Unknown
	}
	cmp, ok := record.Compare(l, r)
	if !ok {
		return Unknown
	}
	switch op {
	case parser.OpEquals:
		return triFromBool(cmp == 0)
	case parser.OpNotEquals:
		return triFromBool(cmp != 0)
	case parser.OpLessThan:
		return triFromBool(cmp < 0)
	case parser.OpGreaterThan:
		return triFromBool(cmp > 0)
	case parser.OpLessOrEqual:
		return triFromBool(cmp <= 0)
	case parser.OpGreaterOrEqual:
		return triFromBool(cmp >= 0)
	default:
		return Unknown
	}
}

// EvalValue evaluates expr to a scalar Value against row: literals,
// column references, and arithmetic. Comparisons/AND/OR/IS NULL used in a
// scalar position (e.g. a SELECT projection) collapse Unknown to a NULL
// boolean, matching SQL's usual "predicate as value" behavior.
func EvalValue(expr parser.Expression, row Row) (record.Value, error) {
	switch e := expr.(type) {
	case *parser.Identifier:
		return row.Get(e)

	case *parser.IntegerLiteral:
		return record.BigInt(e.Value), nil

	case *parser.RealLiteral:
		return record.Double(e.Value), nil

	case *parser.StringLiteral:
		return record.Varchar(e.Value), nil

	case *parser.BooleanLiteral:
		return record.Bool(e.Value), nil

	case *parser.NullLiteral:
		return record.NullOf(record.TypeNull), nil

	case *parser.UnaryExpression:
		if e.Operator == parser.UnaryOpNegate {
			v, err := EvalValue(e.Operand, row)
			if err != nil {
				return record.Value{}, err
			}
			return negateValue(v)
		}
		tb, err := EvalBool(expr, row)
		if err != nil {
			return record.Value{}, err
		}
		return boolFromTri(tb), nil

	case *parser.BinaryExpression:
		switch e.Operator {
		case parser.OpAdd, parser.OpSubtract, parser.OpMultiply, parser.OpDivide:
			lv, err := EvalValue(e.Left, row)
			if err != nil {
				return record.Value{}, err
			}
			rv, err := EvalValue(e.Right, row)
			if err != nil {
				return record.Value{}, err
			}
			return arith(lv, rv, e.Operator)
		default:
			tb, err := EvalBool(expr, row)
			if err != nil {
				return record.Value{}, err
			}
			return boolFromTri(tb), nil
		}

	case *parser.IsNullExpression:
		tb, err := EvalBool(expr, row)
		if err != nil {
			return record.Value{}, err
		}
		return boolFromTri(tb), nil

	default:
		return record.Value{}, dberr.Query(dberr.TypeError, "unsupported expression %T", expr)
	}
}

func boolFromTri(tb TriBool) record.Value {
	if tb == Unknown {
		return record.NullOf(record.TypeBoolean)
	}
	return record.Bool(tb == True)
}

func negateValue(v record.Value) (record.Value, error) {
	if v.Null {
		return v, nil
	}
	switch v.Type {
	case record.TypeInteger:
		return record.Integer(-v.I32), nil
	case record.TypeBigInt:
		return record.BigInt(-v.I64), nil
	case record.TypeFloat:
		return record.Float(-v.F32), nil
	case record.TypeDouble:
		return record.Double(-v.F64), nil
	default:
		return record.Value{}, dberr.Query(dberr.TypeError, "cannot negate a %s value", v.Type)
	}
}

func resultIsFloat(l, r record.Value) bool {
	isFloaty := func(t record.DataType) bool { return t == record.TypeFloat || t == record.TypeDouble }
	return isFloaty(l.Type) || isFloaty(r.Type)
}

func arith(l, r record.Value, op parser.BinaryOp) (record.Value, error) {
	if l.Null || r.Null {
		if resultIsFloat(l, r) {
			return record.NullOf(record.TypeDouble), nil
		}
		return record.NullOf(record.TypeBigInt), nil
	}
	lf, lok := l.AsFloat64()
	rf, rok := r.AsFloat64()
	if !lok || !rok {
		return record.Value{}, dberr.Query(dberr.TypeError, "arithmetic on non-numeric operand")
	}

	if resultIsFloat(l, r) {
		var res float64
		switch op {
		case parser.OpAdd:
			res = lf + rf
		case parser.OpSubtract:
			res = lf - rf
		case parser.OpMultiply:
			res = lf * rf
		case parser.OpDivide:
			if rf == 0 {
				return record.Value{}, dberr.Query(dberr.TypeError, "division by zero")
			}
			res = lf / rf
		}
		return record.Double(res), nil
	}

	li, _ := l.AsInt64()
	ri, _ := r.AsInt64()
	var res int64
	switch op {
	case parser.OpAdd:
		res = li + ri
	case parser.OpSubtract:
		res = li - ri
	case parser.OpMultiply:
		res = li * ri
	case parser.OpDivide:
		if ri == 0 {
			return record.Value{}, dberr.Query(dberr.TypeError, "division by zero")
		}
		res = li / ri
	}
	return record.BigInt(res), nil
}

// CoerceValue converts v (typically straight off a parsed literal) to the
// declared column type target: INSERT/UPDATE write typed column values,
// not raw literal values.
func CoerceValue(v record.Value, target record.DataType) (record.Value, error) {
	if v.Null {
		return record.NullOf(target), nil
	}
	switch target {
	case record.TypeBoolean:
		if v.Type != record.TypeBoolean {
			return record.Value{}, dberr.Query(dberr.TypeError, "expected BOOLEAN, got %s", v.Type)
		}
		return v, nil

	case record.TypeInteger:
		i, ok := v.AsInt64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to INTEGER", v.Type)
		}
		return record.Integer(int32(i)), nil

	case record.TypeBigInt:
		i, ok := v.AsInt64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to BIGINT", v.Type)
		}
		return record.BigInt(i), nil

	case record.TypeFloat:
		f, ok := v.AsFloat64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to FLOAT", v.Type)
		}
		return record.Float(float32(f)), nil

	case record.TypeDouble:
		f, ok := v.AsFloat64()
		if !ok {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to DOUBLE", v.Type)
		}
		return record.Double(f), nil

	case record.TypeVarchar:
		if !v.Type.IsString() {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to VARCHAR", v.Type)
		}
		return record.Varchar(v.Str), nil

	case record.TypeText:
		if !v.Type.IsString() {
			return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to TEXT", v.Type)
		}
		return record.Text(v.Str), nil

	case record.TypeDate:
		if v.Type == record.TypeDate {
			return v, nil
		}
		if v.Type.IsString() {
			return record.ParseDate(v.Str)
		}
		return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to DATE", v.Type)

	case record.TypeTimestamp:
		if v.Type == record.TypeTimestamp {
			return v, nil
		}
		if i, ok := v.AsInt64(); ok {
			return record.Timestamp(i), nil
		}
		return record.Value{}, dberr.Query(dberr.TypeError, "cannot convert %s to TIMESTAMP", v.Type)

	default:
		return record.Value{}, dberr.Query(dberr.UnsupportedType, "unsupported target type %s", target)
	}
}

// ColumnType maps a parser-level DataType (as written in CREATE TABLE /
// ALTER TABLE ADD COLUMN) to the record.DataType stored in the catalog and
// on disk.
func ColumnType(t parser.DataType) (record.DataType, error) {
	switch t {
	case parser.TypeInteger:
		return record.TypeInteger, nil
	case parser.TypeBigInt:
		return record.TypeBigInt, nil
	case parser.TypeReal:
		return record.TypeFloat, nil
	case parser.TypeDouble:
		return record.TypeDouble, nil
	case parser.TypeBoolean:
		return record.TypeBoolean, nil
	case parser.TypeVarchar:
		return record.TypeVarchar, nil
	case parser.TypeText:
		return record.TypeText, nil
	case parser.TypeDate:
		return record.TypeDate, nil
	case parser.TypeTimestamp:
		return record.TypeTimestamp, nil
	default:
		return 0, dberr.Query(dberr.UnsupportedType, "unsupported column type %s", t)
	}
}
