// Package record implements the self-describing field codec used for every
// row payload stored in a heap page: a null bitmap followed by a
// type-tagged, length-prefixed field vector. internal/btree keys are
// encoded through the same Value type so that the tree stays type-agnostic
// over opaque byte strings.
package record

import (
	"fmt"
	"time"
)

// DataType tags the runtime type of a Value. The numeric values are also
// the on-disk type tag written by Encode, so they must never be reordered.
type DataType uint8

const (
	TypeBoolean DataType = iota
	TypeInteger          // INTEGER, 32-bit
	TypeBigInt           // BIGINT, 64-bit
	TypeFloat            // single precision
	TypeDouble           // double precision
	TypeDate             // i64 epoch days
	TypeTimestamp        // i64 epoch seconds
	TypeVarchar
	TypeText
	TypeNull // an untyped NULL literal with no declared column type
)

func (t DataType) String() string {
	switch t {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeDate:
		return "DATE"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeVarchar:
		return "VARCHAR"
	case TypeText:
		return "TEXT"
	case TypeNull:
		return "NULL"
	default:
		return "UNKNOWN"
	}
}

// IsNumeric reports whether the type participates in widening numeric
// comparisons and coercions.
func (t DataType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeBigInt, TypeFloat, TypeDouble:
		return true
	default:
		return false
	}
}

// IsString reports whether the type is one of the two length-prefixed text
// representations.
func (t DataType) IsString() bool {
	return t == TypeVarchar || t == TypeText
}

const epochDayLayout = "2006-01-02"

// Value is a tagged variant over every supported DataType, per the "sum
// type, single exhaustive match" design note: every comparison and
// coercion function switches on Type and nothing else.
type Value struct {
	Type DataType
	Null bool

	Bool bool
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Str  string
}

func Bool(v bool) Value               { return Value{Type: TypeBoolean, Bool: v} }
func Integer(v int32) Value           { return Value{Type: TypeInteger, I32: v} }
func BigInt(v int64) Value            { return Value{Type: TypeBigInt, I64: v} }
func Float(v float32) Value           { return Value{Type: TypeFloat, F32: v} }
func Double(v float64) Value          { return Value{Type: TypeDouble, F64: v} }
func Date(epochDays int64) Value      { return Value{Type: TypeDate, I64: epochDays} }
func Timestamp(epochSecs int64) Value { return Value{Type: TypeTimestamp, I64: epochSecs} }
func Varchar(s string) Value          { return Value{Type: TypeVarchar, Str: s} }
func Text(s string) Value             { return Value{Type: TypeText, Str: s} }

// NullOf returns a NULL value carrying typ as its declared column type, so a
// decoded row still knows what type the column would have held.
func NullOf(typ DataType) Value { return Value{Type: typ, Null: true} }

// ParseDate interprets s as a YYYY-MM-DD literal and returns the
// corresponding epoch-day DATE value, per the external SQL surface's date
// literal grammar.
func ParseDate(s string) (Value, error) {
	t, err := time.Parse(epochDayLayout, s)
	if err != nil {
		return Value{}, fmt.Errorf("invalid DATE literal %q: %w", s, err)
	}
	days := t.Unix() / 86400
	return Date(days), nil
}

// String renders v for display (REPL table output, JSON-free web responses,
// DISTINCT/GROUP signature hashing before canonicalization).
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case TypeBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case TypeInteger:
		return fmt.Sprintf("%d", v.I32)
	case TypeBigInt:
		return fmt.Sprintf("%d", v.I64)
	case TypeFloat:
		return fmt.Sprintf("%g", v.F32)
	case TypeDouble:
		return fmt.Sprintf("%g", v.F64)
	case TypeDate:
		return time.Unix(v.I64*86400, 0).UTC().Format(epochDayLayout)
	case TypeTimestamp:
		return fmt.Sprintf("%d", v.I64)
	case TypeVarchar, TypeText:
		return v.Str
	default:
		return "?"
	}
}

// AsFloat64 widens any numeric value to float64 for cross-type comparison.
// ok is false for non-numeric types.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Type {
	case TypeInteger:
		return float64(v.I32), true
	case TypeBigInt:
		return float64(v.I64), true
	case TypeFloat:
		return float64(v.F32), true
	case TypeDouble:
		return v.F64, true
	default:
		return 0, false
	}
}

// AsInt64 widens an integer-family value to int64. ok is false for
// floating-point or non-numeric types.
func (v Value) AsInt64() (int64, bool) {
	switch v.Type {
	case TypeInteger:
		return int64(v.I32), true
	case TypeBigInt:
		return v.I64, true
	case TypeDate, TypeTimestamp:
		return v.I64, true
	default:
		return 0, false
	}
}

// Signature renders a canonical "type_tag|string_form" form used for
// DISTINCT and aggregate-DISTINCT dedup.
func (v Value) Signature() string {
	if v.Null {
		return fmt.Sprintf("%d|\x00NULL", v.Type)
	}
	return fmt.Sprintf("%d|%s", v.Type, v.String())
}
