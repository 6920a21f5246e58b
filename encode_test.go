package resultset

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeValue(t *testing.T) {
	cols := mustDecodeMetadata(t,
		RawColumn{Name: "id", Type: TypeInt4},
		intNColumn("small", 0),
		RawColumn{Name: "amount", Type: TypeDecimalN, Flags: FlagNullable, Length: 5, Precision: 5, Scale: 2},
		RawColumn{Name: "born", Type: TypeDateN, Flags: FlagNullable},
		RawColumn{Name: "seen", Type: TypeDateTimeN, Flags: FlagNullable, Length: 8},
		RawColumn{Name: "name", Type: TypeBigVarChar, Flags: FlagNullable, Length: 10, Collation: DefaultCollation.Bytes()},
	)

	cell, err := EncodeValue(&cols[0], Int(-1))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, cell.Data)

	cell, err = EncodeValue(&cols[2], DecimalValue(NewDecimal(big.NewInt(12345), 2)))
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 0x39, 0x30, 0, 0}, cell.Data)

	// Smaller scales are widened before encoding.
	cell, err = EncodeValue(&cols[2], DecimalValue(NewDecimal(big.NewInt(-5), 0)))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0, 0xF4, 0x01, 0, 0}, cell.Data)

	cell, err = EncodeValue(&cols[3], Time(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x07, 0x24, 0x0B}, cell.Data)

	cell, err = EncodeValue(&cols[4], Time(time.Date(1900, 1, 2, 0, 0, 1, 0, time.UTC)))
	assert.Nil(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0x2C, 0x01, 0, 0}, cell.Data)

	cell, err = EncodeValue(&cols[5], Text("café"))
	assert.Nil(t, err)
	assert.Equal(t, []byte{'c', 'a', 'f', 0xE9}, cell.Data)

	cell, err = EncodeValue(&cols[1], Null())
	assert.Nil(t, err)
	assert.True(t, cell.Null)
	assert.False(t, cell.Absent)
}

func TestEncodeValue_roundsDateTime(t *testing.T) {
	cols := mustDecodeMetadata(t, RawColumn{Name: "seen", Type: TypeDateTimeN, Flags: FlagNullable, Length: 8})

	// 2ms is 0.6 ticks, which rounds up to one tick (3.33ms).
	in := time.Date(1900, 1, 1, 0, 0, 0, int(2*time.Millisecond), time.UTC)
	cell, err := EncodeValue(&cols[0], Time(in))
	assert.Nil(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 0, 0, 0}, cell.Data)

	v, err := DecodeValue(&cols[0], cell)
	assert.Nil(t, err)
	assert.WithinDuration(t, in, *v.AsTime(), 2*time.Millisecond)
}

func TestEncodeValue_sparse(t *testing.T) {
	cols := mustDecodeMetadata(t, intNColumn("s", FlagSparse))

	cell, err := EncodeValue(&cols[0], Null())
	assert.Nil(t, err)
	assert.True(t, cell.Absent)

	v, err := DecodeValue(&cols[0], cell)
	assert.Nil(t, err)
	assert.True(t, v.IsNull())
}

func TestEncodeValue_errors(t *testing.T) {
	japaneseText := RawColumn{Name: "name", Type: TypeBigVarChar, Flags: FlagNullable, Length: 10, Collation: DefaultCollation.Bytes()}
	cols := mustDecodeMetadata(t,
		RawColumn{Name: "id", Type: TypeInt4},
		RawColumn{Name: "tiny", Type: TypeInt1},
		RawColumn{Name: "amount", Type: TypeDecimalN, Flags: FlagNullable, Length: 5, Precision: 3, Scale: 2},
		nvarcharColumn("short", 2, 0),
		japaneseText,
		RawColumn{Name: "born", Type: TypeDateTimeN, Flags: FlagNullable, Length: 8},
	)

	tests := []struct {
		name string
		col  int
		v    Value
	}{
		{"null into not null", 0, Null()},
		{"kind mismatch", 0, Text("1")},
		{"int overflow", 0, Int(1 << 40)},
		{"tinyint negative", 1, Int(-1)},
		{"decimal overflow", 2, DecimalValue(NewDecimal(big.NewInt(1000), 0))},
		{"decimal scale loss", 2, DecimalValue(NewDecimal(big.NewInt(1234), 3))},
		{"nvarchar too long", 3, Text("abc")},
		{"not in code page", 4, Text("日本")},
		{"before datetime epoch", 5, Time(time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC))},
	}

	for _, test := range tests {
		_, err := EncodeValue(&cols[test.col], test.v)
		assert.NotNil(t, err, test.name)
	}
}

func TestColumnDescriptor_Raw(t *testing.T) {
	cs, _ := LookupCollation("Latin1_General_CS_AS")
	def := nvarcharColumn("nick", 20, FlagSparse)
	def.Default = []byte{'x', 0}
	raw := []RawColumn{
		{Name: "id", Type: TypeInt4, Flags: FlagIdentity},
		{Name: "code", Type: TypeBigChar, Flags: FlagNullable, Length: 4, Collation: cs.Bytes()},
		def,
		columnSetColumn("extra"),
	}
	cols := mustDecodeMetadata(t, raw...)

	got, err := cols[0].Raw()
	assert.Nil(t, err)
	assert.Equal(t, RawColumn{Name: "id", Type: TypeInt4, Flags: FlagIdentity, Length: 4}, got)

	got, err = cols[1].Raw()
	assert.Nil(t, err)
	assert.Equal(t, FlagNullable|FlagCaseSensitive, got.Flags)
	assert.Equal(t, cs.Bytes(), got.Collation)

	got, err = cols[2].Raw()
	assert.Nil(t, err)
	assert.Equal(t, FlagNullable|FlagSparse, got.Flags)
	assert.Equal(t, []byte{'x', 0}, got.Default)

	again, err := DecodeMetadata([]RawColumn{got})
	assert.Nil(t, err)
	assert.Equal(t, "x", *again[0].Default.AsText())

	got, err = cols[3].Raw()
	assert.Nil(t, err)
	assert.Equal(t, FlagNullable|FlagColumnSet, got.Flags)
	assert.Nil(t, got.Collation)
}
