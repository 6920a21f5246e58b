package resultset

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Raw converts a descriptor back into the descriptor record a server sends.
func (c ColumnDescriptor) Raw() (RawColumn, error) {
	raw := RawColumn{
		Name:      c.Name,
		Type:      c.Type,
		Length:    c.MaxLength,
		Precision: c.Precision,
		Scale:     c.Scale,
	}
	if c.Nullable {
		raw.Flags |= FlagNullable
	}
	if c.Sparse {
		raw.Flags |= FlagSparse
	}
	if c.ColumnSet {
		raw.Flags |= FlagColumnSet
	}
	if c.Identity {
		raw.Flags |= FlagIdentity
	}
	if c.Computed {
		raw.Flags |= FlagComputed
	}
	if !c.Collation.IsZero() && !c.Collation.CaseInsensitive() {
		raw.Flags |= FlagCaseSensitive
	}

	switch typeInfos[c.Type].class {
	case charClass, ncharClass:
		raw.Collation = c.Collation.Bytes()
	}

	if c.Default != nil {
		cell, err := EncodeValue(&c, *c.Default)
		if err != nil {
			return RawColumn{}, err
		}
		raw.Default = cell.Data
	}
	return raw, nil
}

// EncodeValue produces the wire cell DecodeValue would turn back into v.
// A NULL in a sparse column is encoded as an absent cell.
func EncodeValue(col *ColumnDescriptor, v Value) (RawCell, error) {
	if v.IsNull() {
		if col.Sparse {
			return AbsentCell(), nil
		}
		if !col.Nullable {
			return RawCell{}, errors.Errorf("column %q does not allow NULL", col.Name)
		}
		return NullCell(), nil
	}

	data, err := encodeData(col, v)
	if err != nil {
		return RawCell{}, errors.Wrapf(err, "column %q", col.Name)
	}
	return Cell(data), nil
}

func encodeData(col *ColumnDescriptor, v Value) ([]byte, error) {
	info := typeInfos[col.Type]
	if v.Kind() != info.kind {
		return nil, errors.Errorf("cannot store %s in %s", v.Kind(), col.DatabaseTypeName())
	}

	switch info.class {
	case fixedClass, intNClass, bitNClass, floatNClass:
		b := make([]byte, col.MaxLength)
		switch info.kind {
		case IntKind:
			return encodeInt(b, *v.AsInt())
		case BoolKind:
			if *v.AsBool() {
				b[0] = 1
			}
			return b, nil
		case FloatKind:
			if len(b) == 4 {
				binary.LittleEndian.PutUint32(b, math.Float32bits(float32(*v.AsFloat())))
			} else {
				binary.LittleEndian.PutUint64(b, math.Float64bits(*v.AsFloat()))
			}
			return b, nil
		}
	case decimalClass:
		return encodeDecimal(col, *v.AsDecimal())
	case dateClass:
		days, err := daysSince(dateEpoch, *v.AsTime())
		if err != nil {
			return nil, err
		}
		return putUint24(nil, uint32(days)), nil
	case dateTimeNClass:
		return encodeDateTime(col, *v.AsTime())
	case dateTime2Class:
		return encodeDateTime2(col, *v.AsTime())
	case charClass:
		return encodeChar(col, *v.AsText())
	case ncharClass, xmlClass:
		b, err := utf16LE.NewEncoder().Bytes([]byte(*v.AsText()))
		if err != nil {
			return nil, err
		}
		return b, checkEncodedLength(col, b)
	case binaryClass:
		b := v.AsBinary()
		return b, checkEncodedLength(col, b)
	}
	return nil, errors.Errorf("no encoder for %s", col.Type)
}

func checkEncodedLength(col *ColumnDescriptor, b []byte) error {
	if col.MaxLength != MaxLength && uint32(len(b)) > col.MaxLength {
		return errors.Errorf("%d bytes exceed declared length %d", len(b), col.MaxLength)
	}
	return nil
}

func encodeInt(b []byte, i int64) ([]byte, error) {
	switch len(b) {
	case 1:
		if i < 0 || i > math.MaxUint8 {
			return nil, errors.Errorf("%d out of range for TINYINT", i)
		}
		b[0] = byte(i)
	case 2:
		if i < math.MinInt16 || i > math.MaxInt16 {
			return nil, errors.Errorf("%d out of range for SMALLINT", i)
		}
		binary.LittleEndian.PutUint16(b, uint16(i))
	case 4:
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, errors.Errorf("%d out of range for INT", i)
		}
		binary.LittleEndian.PutUint32(b, uint32(i))
	default:
		binary.LittleEndian.PutUint64(b, uint64(i))
	}
	return b, nil
}

func encodeChar(col *ColumnDescriptor, s string) ([]byte, error) {
	enc, ok := col.Collation.encoding()
	if !ok {
		return nil, errors.Errorf("unsupported collation %s", col.Collation)
	}

	var b []byte
	if enc == nil {
		if !utf8.ValidString(s) {
			return nil, errors.New("invalid UTF-8 text")
		}
		b = []byte(s)
	} else {
		var err error
		b, err = enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, errors.Wrapf(err, "text not representable in collation %s", col.Collation)
		}
	}
	return b, checkEncodedLength(col, b)
}

func encodeDecimal(col *ColumnDescriptor, d Decimal) ([]byte, error) {
	d, err := d.Rescale(col.Scale)
	if err != nil {
		return nil, err
	}

	u := d.Unscaled()
	b := make([]byte, col.MaxLength)
	b[0] = 1
	if u.Sign() < 0 {
		b[0] = 0
		u.Abs(u)
	}
	if len(u.String()) > int(col.Precision) {
		return nil, errors.Errorf("%s exceeds DECIMAL(%d,%d)", d, col.Precision, col.Scale)
	}

	magnitude := u.Bytes()
	for i, c := range magnitude {
		b[len(magnitude)-i] = c
	}
	return b, nil
}

func daysSince(epoch, t time.Time) (int, error) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days := int((day.Unix() - epoch.Unix()) / 86400)
	if day.Before(epoch) {
		return 0, errors.Errorf("%s is before %s", t.Format("2006-01-02"), epoch.Format("2006-01-02"))
	}
	return days, nil
}

func encodeDateTime(col *ColumnDescriptor, t time.Time) ([]byte, error) {
	days, err := daysSince(dateTimeEpoch, t)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	sinceMidnight := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())

	if col.MaxLength == 4 {
		if days > math.MaxUint16 {
			return nil, errors.Errorf("%s out of range for SMALLDATETIME", t)
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint16(b, uint16(days))
		binary.LittleEndian.PutUint16(b[2:], uint16(sinceMidnight/time.Minute))
		return b, nil
	}

	ticks := (int64(sinceMidnight)*300 + int64(time.Second)/2) / int64(time.Second)
	if ticks >= 300*86400 {
		ticks = 300*86400 - 1
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, uint32(int32(days)))
	binary.LittleEndian.PutUint32(b[4:], uint32(ticks))
	return b, nil
}

func encodeDateTime2(col *ColumnDescriptor, t time.Time) ([]byte, error) {
	days, err := daysSince(dateEpoch, t)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	sinceMidnight := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	units := uint64(sinceMidnight) / uint64(math.Pow10(9-int(col.Scale)))

	b := make([]byte, 0, col.MaxLength)
	for i := uint32(0); i < timeLength(col.Scale); i++ {
		b = append(b, byte(units>>(8*i)))
	}
	return putUint24(b, uint32(days)), nil
}

func putUint24(b []byte, n uint32) []byte {
	return append(b, byte(n), byte(n>>8), byte(n>>16))
}
