package record

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fields := []Value{
		Integer(42),
		Varchar("hello"),
		NullOf(TypeVarchar),
		Bool(true),
		Double(3.25),
		BigInt(-7),
	}

	buf, err := Encode(fields)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, got, len(fields))
	for i := range fields {
		assert.True(t, fields[i].Equal(got[i]), "field %d: want %+v, got %+v", i, fields[i], got[i])
	}
}

func TestDecodeTruncatedBuffer(t *testing.T) {
	fields := []Value{Integer(1), Varchar("abc")}
	buf, err := Encode(fields)
	require.NoError(t, err)

	_, err = Decode(buf[:len(buf)-2])
	assert.Error(t, err)
}

func TestCompareNumericWidening(t *testing.T) {
	cmp, ok := Compare(Integer(5), Double(5.0))
	require.True(t, ok)
	assert.Equal(t, 0, cmp)

	cmp, ok = Compare(Integer(3), BigInt(9))
	require.True(t, ok)
	assert.Equal(t, -1, cmp)
}

func TestCompareIncompatibleTypes(t *testing.T) {
	_, ok := Compare(Varchar("a"), Integer(1))
	assert.False(t, ok)
}

func TestOrderCompareNullsFirst(t *testing.T) {
	assert.Equal(t, -1, OrderCompare(NullOf(TypeInteger), Integer(0)))
	assert.Equal(t, 1, OrderCompare(Integer(0), NullOf(TypeInteger)))
	assert.Equal(t, 0, OrderCompare(NullOf(TypeInteger), NullOf(TypeInteger)))
}

func TestEncodeKeyOrderingMatchesValueOrdering(t *testing.T) {
	values := []Value{BigInt(-100), BigInt(-1), BigInt(0), BigInt(1), BigInt(100)}
	keys := make([][]byte, len(values))
	for i, v := range values {
		keys[i] = EncodeKey([]Value{v})
	}

	shuffled := append([][]byte{}, keys...)
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) < 0 })
	assert.Equal(t, keys, shuffled, "byte-order of encoded keys must match numeric order")
}

func TestEncodeKeyStringOrdering(t *testing.T) {
	a := EncodeKey([]Value{Varchar("apple")})
	b := EncodeKey([]Value{Varchar("banana")})
	c := EncodeKey([]Value{Varchar("app")})
	assert.True(t, bytes.Compare(c, a) < 0, "shorter prefix must sort before longer string with same prefix")
	assert.True(t, bytes.Compare(a, b) < 0)
}

func TestEncodeKeyNullSortsFirst(t *testing.T) {
	nullKey := EncodeKey([]Value{NullOf(TypeInteger)})
	valueKey := EncodeKey([]Value{Integer(-1000000)})
	assert.True(t, bytes.Compare(nullKey, valueKey) < 0)
}

func TestValueSignatureDistinguishesTypesAndNulls(t *testing.T) {
	assert.NotEqual(t, Integer(1).Signature(), BigInt(1).Signature())
	assert.Equal(t, NullOf(TypeInteger).Signature(), NullOf(TypeInteger).Signature())
	assert.NotEqual(t, Integer(1).Signature(), Integer(2).Signature())
}

func TestParseDate(t *testing.T) {
	v, err := ParseDate("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", v.String())

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
}
