package record

// Compare orders two non-NULL values of possibly different numeric types
// by widening, strings lexicographically, and DATE/TIMESTAMP as their
// underlying i64. ok is false for incompatible types (callers treat that as
// Unknown rather than an error).
func Compare(a, b Value) (cmp int, ok bool) {
	if a.Type.IsNumeric() && b.Type.IsNumeric() {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Type.IsString() && b.Type.IsString() {
		switch {
		case a.Str < b.Str:
			return -1, true
		case a.Str > b.Str:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.Type == TypeBoolean && b.Type == TypeBoolean {
		switch {
		case a.Bool == b.Bool:
			return 0, true
		case !a.Bool:
			return -1, true
		default:
			return 1, true
		}
	}
	if (a.Type == TypeDate || a.Type == TypeTimestamp) && a.Type == b.Type {
		switch {
		case a.I64 < b.I64:
			return -1, true
		case a.I64 > b.I64:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// OrderCompare orders two Values for ORDER BY, where NULL sorts first in
// ascending order (last in descending, which the caller implements by
// flipping the result). NULL-vs-NULL is 0.
func OrderCompare(a, b Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	if cmp, ok := Compare(a, b); ok {
		return cmp
	}
	return 0
}

// Equal reports value equality used by field-vector round-trip tests and
// index key comparisons. NULLs are equal only to other NULLs of the same
// declared type.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	if v.Null || other.Null {
		return v.Null && other.Null
	}
	switch v.Type {
	case TypeBoolean:
		return v.Bool == other.Bool
	case TypeInteger:
		return v.I32 == other.I32
	case TypeBigInt:
		return v.I64 == other.I64
	case TypeFloat:
		return v.F32 == other.F32
	case TypeDouble:
		return v.F64 == other.F64
	case TypeDate, TypeTimestamp:
		return v.I64 == other.I64
	case TypeVarchar, TypeText:
		return v.Str == other.Str
	case TypeNull:
		return true
	default:
		return false
	}
}
