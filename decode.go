package resultset

import (
	"encoding/binary"
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var (
	dateEpoch     = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	dateTimeEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeRow decodes one row against the schema of its result set. The row
// must carry exactly one cell per column.
func DecodeRow(schema *Schema, cells []RawCell) ([]Value, error) {
	if len(cells) != len(schema.columns) {
		return nil, metadataErrorf(-1, "", "row has %d cells, result set has %d columns", len(cells), len(schema.columns))
	}

	values := make([]Value, len(cells))
	for i := range cells {
		v, err := DecodeValue(&schema.columns[i], cells[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// DecodeValue decodes a single cell under its column descriptor.
func DecodeValue(col *ColumnDescriptor, cell RawCell) (Value, error) {
	if cell.Absent {
		if !col.Sparse {
			return Value{}, metadataErrorf(col.Ordinal, col.Name, "value omitted for a column that is not sparse")
		}
		if col.Default != nil {
			return *col.Default, nil
		}
		return Null(), nil
	}

	if cell.Null {
		if !col.Nullable {
			return Value{}, metadataErrorf(col.Ordinal, col.Name, "NULL received for a NOT NULL column")
		}
		return Null(), nil
	}

	data := cell.Data
	info := typeInfos[col.Type]

	switch info.class {
	case fixedClass, intNClass, bitNClass, floatNClass:
		if uint32(len(data)) != col.MaxLength {
			return Value{}, decodeErrorf(col, "%s cell is %d bytes, want %d", col.DatabaseTypeName(), len(data), col.MaxLength)
		}
		switch info.kind {
		case IntKind:
			return Int(decodeInt(data)), nil
		case BoolKind:
			return Bool(data[0] != 0), nil
		case FloatKind:
			if len(data) == 4 {
				return Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))), nil
			}
			return Float(math.Float64frombits(binary.LittleEndian.Uint64(data))), nil
		}
	case decimalClass:
		return decodeDecimal(col, data)
	case dateClass:
		if len(data) != 3 {
			return Value{}, decodeErrorf(col, "date cell is %d bytes, want 3", len(data))
		}
		return Time(dateEpoch.AddDate(0, 0, int(uint24(data)))), nil
	case dateTimeNClass:
		return decodeDateTime(col, data)
	case dateTime2Class:
		return decodeDateTime2(col, data)
	case charClass:
		if err := checkLength(col, data); err != nil {
			return Value{}, err
		}
		return decodeChar(col, data)
	case ncharClass, xmlClass:
		if err := checkLength(col, data); err != nil {
			return Value{}, err
		}
		if len(data)%2 != 0 {
			return Value{}, decodeErrorf(col, "odd byte count %d in UTF-16 data", len(data))
		}
		s, err := utf16LE.NewDecoder().Bytes(data)
		if err != nil {
			return Value{}, decodeErrorf(col, "invalid UTF-16: %v", err)
		}
		return Text(string(s)), nil
	case binaryClass:
		if err := checkLength(col, data); err != nil {
			return Value{}, err
		}
		return Binary(append([]byte{}, data...)), nil
	}

	return Value{}, decodeErrorf(col, "no decoder for %s", col.Type)
}

func checkLength(col *ColumnDescriptor, data []byte) error {
	if col.MaxLength != MaxLength && uint32(len(data)) > col.MaxLength {
		return decodeErrorf(col, "%d bytes exceed declared length %d", len(data), col.MaxLength)
	}
	return nil
}

func decodeInt(data []byte) int64 {
	switch len(data) {
	case 1:
		return int64(data[0])
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(data)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(data)))
	default:
		return int64(binary.LittleEndian.Uint64(data))
	}
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// decodeChar decodes single-byte character data with the code page of the
// column collation. Unknown collations fail rather than guess.
func decodeChar(col *ColumnDescriptor, data []byte) (Value, error) {
	enc, ok := col.Collation.encoding()
	if !ok {
		return Value{}, decodeErrorf(col, "unsupported collation %s", col.Collation)
	}
	if enc == nil {
		if !utf8.Valid(data) {
			return Value{}, decodeErrorf(col, "invalid UTF-8 under collation %s", col.Collation)
		}
		return Text(string(data)), nil
	}

	s, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return Value{}, decodeErrorf(col, "cannot decode under collation %s: %v", col.Collation, err)
	}
	return Text(string(s)), nil
}

func decodeDecimal(col *ColumnDescriptor, data []byte) (Value, error) {
	if uint32(len(data)) != col.MaxLength {
		return Value{}, decodeErrorf(col, "decimal cell is %d bytes, want %d", len(data), col.MaxLength)
	}

	sign := data[0]
	if sign > 1 {
		return Value{}, decodeErrorf(col, "invalid decimal sign byte %d", sign)
	}

	magnitude := make([]byte, len(data)-1)
	for i, b := range data[1:] {
		magnitude[len(magnitude)-1-i] = b
	}
	unscaled := new(big.Int).SetBytes(magnitude)
	if len(unscaled.String()) > int(col.Precision) {
		return Value{}, decodeErrorf(col, "value %s exceeds precision %d", unscaled, col.Precision)
	}
	if sign == 0 {
		unscaled.Neg(unscaled)
	}
	return DecimalValue(Decimal{unscaled: unscaled, scale: col.Scale}), nil
}

func decodeDateTime(col *ColumnDescriptor, data []byte) (Value, error) {
	switch len(data) {
	case 4:
		days := binary.LittleEndian.Uint16(data)
		minutes := binary.LittleEndian.Uint16(data[2:])
		if minutes >= 24*60 {
			return Value{}, decodeErrorf(col, "smalldatetime minutes %d out of range", minutes)
		}
		return Time(dateTimeEpoch.AddDate(0, 0, int(days)).Add(time.Duration(minutes) * time.Minute)), nil
	case 8:
		days := int32(binary.LittleEndian.Uint32(data))
		ticks := binary.LittleEndian.Uint32(data[4:])
		if ticks >= 300*86400 {
			return Value{}, decodeErrorf(col, "datetime ticks %d out of range", ticks)
		}
		ns := int64(ticks) * int64(time.Second) / 300
		return Time(dateTimeEpoch.AddDate(0, 0, int(days)).Add(time.Duration(ns))), nil
	}
	return Value{}, decodeErrorf(col, "datetime cell is %d bytes, want 4 or 8", len(data))
}

func decodeDateTime2(col *ColumnDescriptor, data []byte) (Value, error) {
	timeLen := timeLength(col.Scale)
	if uint32(len(data)) != timeLen+3 {
		return Value{}, decodeErrorf(col, "datetime2 cell is %d bytes, want %d", len(data), timeLen+3)
	}

	var units uint64
	for i := int(timeLen) - 1; i >= 0; i-- {
		units = units<<8 | uint64(data[i])
	}
	unit := uint64(math.Pow10(9 - int(col.Scale)))
	ns := units * unit
	if ns >= uint64(24*time.Hour) {
		return Value{}, decodeErrorf(col, "datetime2 time of day out of range")
	}

	days := uint24(data[timeLen:])
	return Time(dateEpoch.AddDate(0, 0, int(days)).Add(time.Duration(ns))), nil
}
