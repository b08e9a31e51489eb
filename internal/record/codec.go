package record

import (
	"encoding/binary"
	"math"

	"github.com/relicdb/relicdb/internal/dberr"
)

func bitmapBytes(n int) int { return (n + 7) / 8 }

func bitSet(bitmap []byte, i int) bool {
	return bitmap[i/8]&(1<<uint(i%8)) != 0
}

func setBit(bitmap []byte, i int) {
	bitmap[i/8] |= 1 << uint(i%8)
}

func fixedWidth(t DataType) (int, bool) {
	switch t {
	case TypeBoolean:
		return 1, true
	case TypeInteger:
		return 4, true
	case TypeBigInt, TypeDate, TypeTimestamp:
		return 8, true
	case TypeFloat:
		return 4, true
	case TypeDouble:
		return 8, true
	default:
		return 0, false
	}
}

// Encode serializes a row's field vector: field_count u16, a null bitmap of
// ceil(n/8) bytes, then for each field a type_tag byte followed by its
// payload (omitted entirely when the field is NULL). Fixed-width numeric
// types write their native little-endian width; VARCHAR/TEXT carry an
// explicit u32 length prefix.
func Encode(fields []Value) ([]byte, error) {
	buf := make([]byte, 0, 64)
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(fields)))
	buf = append(buf, hdr[:]...)

	bitmap := make([]byte, bitmapBytes(len(fields)))
	for i, f := range fields {
		if f.Null {
			setBit(bitmap, i)
		}
	}
	buf = append(buf, bitmap...)

	for _, f := range fields {
		buf = append(buf, byte(f.Type))
		if f.Null {
			continue
		}
		switch f.Type {
		case TypeBoolean:
			b := byte(0)
			if f.Bool {
				b = 1
			}
			buf = append(buf, b)
		case TypeInteger:
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], uint32(f.I32))
			buf = append(buf, w[:]...)
		case TypeBigInt, TypeDate, TypeTimestamp:
			var w [8]byte
			binary.LittleEndian.PutUint64(w[:], uint64(f.I64))
			buf = append(buf, w[:]...)
		case TypeFloat:
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], math.Float32bits(f.F32))
			buf = append(buf, w[:]...)
		case TypeDouble:
			var w [8]byte
			binary.LittleEndian.PutUint64(w[:], math.Float64bits(f.F64))
			buf = append(buf, w[:]...)
		case TypeVarchar, TypeText:
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], uint32(len(f.Str)))
			buf = append(buf, w[:]...)
			buf = append(buf, f.Str...)
		case TypeNull:
			// no payload: a non-null field can't legitimately carry TypeNull,
			// but decoding tolerates it as an empty value rather than erroring.
		default:
			return nil, dberr.Record(dberr.UnsupportedType, "unknown field type tag %d", f.Type)
		}
	}
	return buf, nil
}

// Decode parses a field vector previously produced by Encode in a single
// forward pass. It fails with INVALID_RECORD_FORMAT on a truncated buffer
// or unknown type tag.
func Decode(buf []byte) ([]Value, error) {
	if len(buf) < 2 {
		return nil, dberr.Record(dberr.InvalidRecordFormat, "buffer too short for field count")
	}
	count := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]

	nBitmap := bitmapBytes(count)
	if len(buf) < nBitmap {
		return nil, dberr.Record(dberr.InvalidRecordFormat, "buffer too short for null bitmap")
	}
	bitmap := buf[:nBitmap]
	buf = buf[nBitmap:]

	fields := make([]Value, count)
	for i := 0; i < count; i++ {
		if len(buf) < 1 {
			return nil, dberr.Record(dberr.InvalidRecordFormat, "truncated buffer reading field %d tag", i)
		}
		typ := DataType(buf[0])
		buf = buf[1:]

		isNull := bitSet(bitmap, i)
		if isNull {
			fields[i] = Value{Type: typ, Null: true}
			continue
		}

		if width, ok := fixedWidth(typ); ok {
			if len(buf) < width {
				return nil, dberr.Record(dberr.InvalidRecordFormat, "truncated buffer reading field %d payload", i)
			}
			payload := buf[:width]
			buf = buf[width:]
			switch typ {
			case TypeBoolean:
				fields[i] = Bool(payload[0] != 0)
			case TypeInteger:
				fields[i] = Integer(int32(binary.LittleEndian.Uint32(payload)))
			case TypeBigInt:
				fields[i] = BigInt(int64(binary.LittleEndian.Uint64(payload)))
			case TypeDate:
				fields[i] = Date(int64(binary.LittleEndian.Uint64(payload)))
			case TypeTimestamp:
				fields[i] = Timestamp(int64(binary.LittleEndian.Uint64(payload)))
			case TypeFloat:
				fields[i] = Float(math.Float32frombits(binary.LittleEndian.Uint32(payload)))
			case TypeDouble:
				fields[i] = Double(math.Float64frombits(binary.LittleEndian.Uint64(payload)))
			}
			continue
		}

		switch typ {
		case TypeVarchar, TypeText:
			if len(buf) < 4 {
				return nil, dberr.Record(dberr.InvalidRecordFormat, "truncated buffer reading field %d length", i)
			}
			n := int(binary.LittleEndian.Uint32(buf))
			buf = buf[4:]
			if len(buf) < n {
				return nil, dberr.Record(dberr.InvalidRecordFormat, "truncated buffer reading field %d string body", i)
			}
			s := string(buf[:n])
			buf = buf[n:]
			if typ == TypeVarchar {
				fields[i] = Varchar(s)
			} else {
				fields[i] = Text(s)
			}
		case TypeNull:
			fields[i] = Value{Type: TypeNull}
		default:
			return nil, dberr.Record(dberr.InvalidRecordFormat, "unknown type tag %d for field %d", typ, i)
		}
	}
	return fields, nil
}
