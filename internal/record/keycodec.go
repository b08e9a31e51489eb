package record

import (
	"encoding/binary"
	"math"

	"github.com/relicdb/relicdb/internal/dberr"
)

// EncodeKey renders values as a single lexicographically-orderable byte
// string for use as a B+ tree key. This is distinct from Encode/Decode
// (the row-payload codec): index keys must sort the same way their typed
// values do, so integers and floats are big-endian with their sign bit
// transformed, and strings are NUL-escaped and terminated so that shorter
// prefixes sort before longer ones with the same prefix. NULL sorts before
// every non-NULL value of the same column.
//
// A composite key is the concatenation of each column's encoding in order;
// because every encoding is self-terminating (fixed width, or an escaped
// variable-length string with an explicit terminator), concatenation
// preserves the same ordering column-by-column.
func EncodeKey(values []Value) []byte {
	out := make([]byte, 0, 16*len(values))
	for _, v := range values {
		out = appendKeyField(out, v)
	}
	return out
}

func appendKeyField(out []byte, v Value) []byte {
	if v.Null {
		return append(out, 0x00)
	}
	out = append(out, 0x01)
	switch v.Type {
	case TypeBoolean:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return append(out, b)
	case TypeInteger:
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], uint32(v.I32)^0x80000000)
		return append(out, w[:]...)
	case TypeBigInt, TypeDate, TypeTimestamp:
		var w [8]byte
		binary.BigEndian.PutUint64(w[:], uint64(v.I64)^0x8000000000000000)
		return append(out, w[:]...)
	case TypeFloat:
		bits := math.Float32bits(v.F32)
		if bits&0x80000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x80000000
		}
		var w [4]byte
		binary.BigEndian.PutUint32(w[:], bits)
		return append(out, w[:]...)
	case TypeDouble:
		bits := math.Float64bits(v.F64)
		if bits&0x8000000000000000 != 0 {
			bits = ^bits
		} else {
			bits |= 0x8000000000000000
		}
		var w [8]byte
		binary.BigEndian.PutUint64(w[:], bits)
		return append(out, w[:]...)
	case TypeVarchar, TypeText:
		for i := 0; i < len(v.Str); i++ {
			c := v.Str[i]
			if c == 0x00 {
				out = append(out, 0x00, 0xFF)
			} else {
				out = append(out, c)
			}
		}
		return append(out, 0x00, 0x00)
	default:
		return out
	}
}

// DecodeKeyInt32 and friends are not provided: index keys are write-only
// byte strings from the tree's point of view (search compares opaque
// bytes); only the executor, which holds the original typed Value, ever
// needs the value back, and it already has it from the row.

// ValidateTypeTag reports whether tag is a recognized DataType, failing
// with INVALID_RECORD_FORMAT otherwise. Nothing in this module calls it.
func ValidateTypeTag(tag byte) error {
	switch DataType(tag) {
	case TypeBoolean, TypeInteger, TypeBigInt, TypeFloat, TypeDouble,
		TypeDate, TypeTimestamp, TypeVarchar, TypeText, TypeNull:
		return nil
	default:
		return dberr.Record(dberr.InvalidRecordFormat, "unknown type tag %d", tag)
	}
}
