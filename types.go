package resultset

import "fmt"

// TypeID is the wire type tag of a column
type TypeID uint8

const (
	TypeDateN        TypeID = 0x28
	TypeDateTime2N   TypeID = 0x2A
	TypeInt1         TypeID = 0x30
	TypeBit          TypeID = 0x32
	TypeInt2         TypeID = 0x34
	TypeInt4         TypeID = 0x38
	TypeFloat4       TypeID = 0x3B
	TypeFloat8       TypeID = 0x3E
	TypeIntN         TypeID = 0x26
	TypeBitN         TypeID = 0x68
	TypeDecimalN     TypeID = 0x6A
	TypeNumericN     TypeID = 0x6C
	TypeFloatN       TypeID = 0x6D
	TypeDateTimeN    TypeID = 0x6F
	TypeInt8         TypeID = 0x7F
	TypeBigVarBinary TypeID = 0xA5
	TypeBigVarChar   TypeID = 0xA7
	TypeBigBinary    TypeID = 0xAD
	TypeBigChar      TypeID = 0xAF
	TypeNVarChar     TypeID = 0xE7
	TypeNChar        TypeID = 0xEF
	TypeXML          TypeID = 0xF1
)

// MaxLength marks a varchar(max), nvarchar(max) or varbinary(max) column.
const MaxLength uint32 = 0xFFFF

// maxDeclaredLength is the largest non-MAX length of a variable type.
const maxDeclaredLength uint32 = 8000

type typeClass uint8

const (
	fixedClass typeClass = iota
	intNClass
	bitNClass
	floatNClass
	decimalClass
	dateClass
	dateTimeNClass
	dateTime2Class
	charClass
	ncharClass
	binaryClass
	xmlClass
)

type typeInfo struct {
	name string
	// zero for anything but the fixed-width types
	width uint32
	kind  Kind
	class typeClass
}

var typeInfos = map[TypeID]typeInfo{
	TypeInt1:         {"TINYINT", 1, IntKind, fixedClass},
	TypeBit:          {"BIT", 1, BoolKind, fixedClass},
	TypeInt2:         {"SMALLINT", 2, IntKind, fixedClass},
	TypeInt4:         {"INT", 4, IntKind, fixedClass},
	TypeInt8:         {"BIGINT", 8, IntKind, fixedClass},
	TypeFloat4:       {"REAL", 4, FloatKind, fixedClass},
	TypeFloat8:       {"FLOAT", 8, FloatKind, fixedClass},
	TypeIntN:         {"INT", 0, IntKind, intNClass},
	TypeBitN:         {"BIT", 0, BoolKind, bitNClass},
	TypeFloatN:       {"FLOAT", 0, FloatKind, floatNClass},
	TypeDecimalN:     {"DECIMAL", 0, DecimalKind, decimalClass},
	TypeNumericN:     {"NUMERIC", 0, DecimalKind, decimalClass},
	TypeDateN:        {"DATE", 0, TimeKind, dateClass},
	TypeDateTimeN:    {"DATETIME", 0, TimeKind, dateTimeNClass},
	TypeDateTime2N:   {"DATETIME2", 0, TimeKind, dateTime2Class},
	TypeBigVarChar:   {"VARCHAR", 0, TextKind, charClass},
	TypeBigChar:      {"CHAR", 0, TextKind, charClass},
	TypeNVarChar:     {"NVARCHAR", 0, TextKind, ncharClass},
	TypeNChar:        {"NCHAR", 0, TextKind, ncharClass},
	TypeBigVarBinary: {"VARBINARY", 0, BinaryKind, binaryClass},
	TypeBigBinary:    {"BINARY", 0, BinaryKind, binaryClass},
	TypeXML:          {"XML", 0, TextKind, xmlClass},
}

func (t TypeID) String() string {
	if info, ok := typeInfos[t]; ok {
		return info.name
	}
	return fmt.Sprintf("TYPE(0x%02X)", uint8(t))
}

// Column flags as they appear in a raw column descriptor.
const (
	FlagNullable      uint16 = 0x0001
	FlagCaseSensitive uint16 = 0x0002
	FlagIdentity      uint16 = 0x0010
	FlagComputed      uint16 = 0x0020
	FlagSparse        uint16 = 0x0200
	FlagColumnSet     uint16 = 0x0400
)

// RawColumn is one column descriptor exactly as the transport delivers it.
type RawColumn struct {
	Name      string
	Type      TypeID
	Flags     uint16
	Length    uint32
	Precision uint8
	Scale     uint8
	// Collation is the 5 byte collation record of character columns
	Collation []byte
	// Default is the encoded default of a sparse column, nil when none
	Default []byte
}

// RawCell is one column value of a row as the transport delivers it.
// Absent marks a sparse value the server left out of the row.
type RawCell struct {
	Data   []byte
	Null   bool
	Absent bool
}

func Cell(data []byte) RawCell {
	return RawCell{Data: data}
}

func NullCell() RawCell {
	return RawCell{Null: true}
}

func AbsentCell() RawCell {
	return RawCell{Absent: true}
}

// ColumnDescriptor is the decoded, validated form of a RawColumn.
type ColumnDescriptor struct {
	Ordinal   int
	Name      string
	Type      TypeID
	Nullable  bool
	Collation Collation
	Sparse    bool
	ColumnSet bool
	Identity  bool
	Computed  bool
	// MaxLength is the declared byte length of variable-length types,
	// MaxLength for MAX types and zero otherwise
	MaxLength uint32
	Precision uint8
	Scale     uint8
	// Default replaces an absent sparse value, nil when the column has none
	Default *Value
}

func (c ColumnDescriptor) DatabaseTypeName() string {
	switch typeInfos[c.Type].class {
	case intNClass:
		switch c.MaxLength {
		case 1:
			return "TINYINT"
		case 2:
			return "SMALLINT"
		case 8:
			return "BIGINT"
		}
	case floatNClass:
		if c.MaxLength == 4 {
			return "REAL"
		}
	case dateTimeNClass:
		if c.MaxLength == 4 {
			return "SMALLDATETIME"
		}
	}
	return c.Type.String()
}

// Kind is the kind of value cells of this column decode to.
func (c ColumnDescriptor) Kind() Kind {
	return typeInfos[c.Type].kind
}

// Length reports the declared length of variable-length columns, in
// characters for the UTF-16 types.
func (c ColumnDescriptor) Length() (int64, bool) {
	switch typeInfos[c.Type].class {
	case charClass, binaryClass:
		return int64(c.MaxLength), true
	case ncharClass:
		if c.MaxLength == MaxLength {
			return int64(MaxLength), true
		}
		return int64(c.MaxLength / 2), true
	case xmlClass:
		return int64(MaxLength), true
	}
	return 0, false
}

func (c ColumnDescriptor) DecimalSize() (precision, scale int64, ok bool) {
	if typeInfos[c.Type].class != decimalClass {
		return 0, 0, false
	}
	return int64(c.Precision), int64(c.Scale), true
}
