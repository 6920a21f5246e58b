package resultset

import (
	"encoding/hex"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// resolveType maps a SQL type name onto a column descriptor. Nullable
// columns use the variable-width wire types, NOT NULL columns the fixed
// ones, the same split a server makes.
func resolveType(t *typeName, nullable bool) (ColumnDescriptor, error) {
	col := ColumnDescriptor{Nullable: nullable}
	name := strings.ToLower(t.name.value)

	arg := func(i int, def uint32) uint32 {
		if i < len(t.args) {
			return t.args[i]
		}
		return def
	}
	fixedOrN := func(fixed TypeID, n TypeID, length uint32) {
		col.MaxLength = length
		if nullable {
			col.Type = n
		} else {
			col.Type = fixed
		}
	}
	length := func(def, limit uint32) (uint32, error) {
		if t.max {
			return MaxLength, nil
		}
		n := arg(0, def)
		if n == 0 || n > limit {
			return 0, serverErrorf(errCodeInvalidLength, "The size (%d) given to the type '%s' exceeds the maximum allowed (%d).", n, name, limit)
		}
		return n, nil
	}

	if t.max && name != "varchar" && name != "nvarchar" && name != "varbinary" {
		return col, serverErrorf(errCodeUnknownType, "Cannot specify MAX for type '%s'.", name)
	}

	switch name {
	case "tinyint":
		fixedOrN(TypeInt1, TypeIntN, 1)
	case "smallint":
		fixedOrN(TypeInt2, TypeIntN, 2)
	case "int":
		fixedOrN(TypeInt4, TypeIntN, 4)
	case "bigint":
		fixedOrN(TypeInt8, TypeIntN, 8)
	case "bit":
		fixedOrN(TypeBit, TypeBitN, 1)
	case "real":
		fixedOrN(TypeFloat4, TypeFloatN, 4)
	case "float":
		if arg(0, 53) <= 24 {
			fixedOrN(TypeFloat4, TypeFloatN, 4)
		} else {
			fixedOrN(TypeFloat8, TypeFloatN, 8)
		}
	case "decimal", "numeric":
		p, s := arg(0, 18), arg(1, 0)
		if p < 1 || p > 38 {
			return col, serverErrorf(errCodePrecision, "Specified column precision %d is greater than the maximum precision of 38.", p)
		}
		if s > p {
			return col, serverErrorf(errCodePrecision, "The scale %d must be less than or equal to the precision %d.", s, p)
		}
		col.Type = TypeDecimalN
		if name == "numeric" {
			col.Type = TypeNumericN
		}
		col.Precision, col.Scale = uint8(p), uint8(s)
		col.MaxLength = decimalLength(col.Precision)
	case "date":
		col.Type, col.MaxLength = TypeDateN, 3
	case "datetime":
		col.Type, col.MaxLength = TypeDateTimeN, 8
	case "smalldatetime":
		col.Type, col.MaxLength = TypeDateTimeN, 4
	case "datetime2":
		s := arg(0, 7)
		if s > 7 {
			return col, serverErrorf(errCodePrecision, "Specified scale %d is invalid.", s)
		}
		col.Type, col.Scale = TypeDateTime2N, uint8(s)
		col.MaxLength = 3 + timeLength(col.Scale)
	case "char", "varchar":
		n, err := length(1, maxDeclaredLength)
		if err != nil {
			return col, err
		}
		col.Type, col.MaxLength = TypeBigVarChar, n
		if name == "char" {
			col.Type = TypeBigChar
		}
	case "nchar", "nvarchar":
		n, err := length(1, maxDeclaredLength/2)
		if err != nil {
			return col, err
		}
		col.Type, col.MaxLength = TypeNVarChar, n
		if n != MaxLength {
			col.MaxLength = n * 2
		}
		if name == "nchar" {
			col.Type = TypeNChar
		}
	case "binary", "varbinary":
		n, err := length(1, maxDeclaredLength)
		if err != nil {
			return col, err
		}
		col.Type, col.MaxLength = TypeBigVarBinary, n
		if name == "binary" {
			col.Type = TypeBigBinary
		}
	case "xml":
		col.Type, col.MaxLength = TypeXML, MaxLength
	default:
		return col, serverErrorf(errCodeUnknownType, "Cannot find data type %s.", t.name.value)
	}

	return col, nil
}

func isCharType(col *ColumnDescriptor) bool {
	switch typeInfos[col.Type].class {
	case charClass, ncharClass:
		return true
	}
	return false
}

// evalLiteral evaluates a constant expression to its value and the column
// it would produce in a result set.
func evalLiteral(exp *expression, collation Collation) (Value, ColumnDescriptor, error) {
	switch exp.kind {
	case columnKind:
		return Value{}, ColumnDescriptor{}, serverErrorf(errCodeInvalidColumn, "Invalid column name '%s'.", exp.literal.value)
	case castKind:
		inner, _, err := evalLiteral(exp.cast.exp, collation)
		if err != nil {
			return Value{}, ColumnDescriptor{}, err
		}
		col, err := resolveType(exp.cast.typ, inner.IsNull())
		if err != nil {
			return Value{}, ColumnDescriptor{}, err
		}
		if isCharType(&col) {
			col.Collation = collation
		}
		v, err := coerce(inner, &col)
		return v, col, err
	}

	lit := exp.literal
	switch lit.kind {
	case nullKind:
		return Null(), ColumnDescriptor{Type: TypeIntN, MaxLength: 4, Nullable: true}, nil
	case stringKind:
		return Text(lit.value), ColumnDescriptor{Type: TypeBigVarChar, MaxLength: textLength(len(lit.value), 1), Collation: collation}, nil
	case nstringKind:
		units := len(utf16.Encode([]rune(lit.value)))
		return Text(lit.value), ColumnDescriptor{Type: TypeNVarChar, MaxLength: textLength(units*2, 2), Collation: collation}, nil
	case hexKind:
		digits := lit.value
		if len(digits)%2 != 0 {
			digits = "0" + digits
		}
		b, err := hex.DecodeString(digits)
		if err != nil {
			return Value{}, ColumnDescriptor{}, serverErrorf(errCodeSyntax, "Incorrect syntax near '0x%s'.", lit.value)
		}
		return Binary(b), ColumnDescriptor{Type: TypeBigVarBinary, MaxLength: textLength(len(b), 1)}, nil
	case numericKind:
		return evalNumeric(lit.value)
	}

	return Value{}, ColumnDescriptor{}, serverErrorf(errCodeSyntax, "Incorrect syntax near '%s'.", lit.value)
}

func textLength(n, unit int) uint32 {
	if n < unit {
		return uint32(unit)
	}
	if n > int(maxDeclaredLength) {
		return MaxLength
	}
	return uint32(n)
}

func evalNumeric(s string) (Value, ColumnDescriptor, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, ColumnDescriptor{}, serverErrorf(errCodeConversion, "Conversion failed when converting '%s' to float.", s)
		}
		return Float(f), ColumnDescriptor{Type: TypeFloat8, MaxLength: 8}, nil
	}

	if !strings.Contains(s, ".") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return Int(i), ColumnDescriptor{Type: TypeInt4, MaxLength: 4}, nil
			}
			return Int(i), ColumnDescriptor{Type: TypeInt8, MaxLength: 8}, nil
		}
	}

	d, err := ParseDecimal(s)
	if err != nil {
		return Value{}, ColumnDescriptor{}, serverErrorf(errCodeConversion, "Conversion failed when converting '%s' to numeric.", s)
	}
	digits := len(new(big.Int).Abs(d.Unscaled()).String())
	precision := digits
	if int(d.Scale()) >= precision {
		precision = int(d.Scale()) + 1
	}
	if precision > 38 {
		return Value{}, ColumnDescriptor{}, serverErrorf(errCodeOverflow, "Arithmetic overflow error converting '%s' to data type numeric.", s)
	}
	col := ColumnDescriptor{
		Type:      TypeNumericN,
		Precision: uint8(precision),
		Scale:     d.Scale(),
		MaxLength: decimalLength(uint8(precision)),
	}
	return DecimalValue(d), col, nil
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
}

// coerce converts v to the kind the column stores. It does not check
// ranges or lengths; EncodeValue does.
func coerce(v Value, col *ColumnDescriptor) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	target := col.Kind()
	fail := func() (Value, error) {
		return Value{}, serverErrorf(errCodeConversion, "Conversion failed when converting the value '%s' to data type %s.", v, col.DatabaseTypeName())
	}

	switch target {
	case IntKind:
		switch v.Kind() {
		case IntKind:
			return v, nil
		case BoolKind:
			if *v.AsBool() {
				return Int(1), nil
			}
			return Int(0), nil
		case FloatKind:
			return Int(int64(*v.AsFloat())), nil
		case DecimalKind:
			d, err := roundDecimal(*v.AsDecimal(), 0)
			if err != nil || !d.Unscaled().IsInt64() {
				return fail()
			}
			return Int(d.Unscaled().Int64()), nil
		case TextKind:
			i, err := strconv.ParseInt(strings.TrimSpace(*v.AsText()), 10, 64)
			if err != nil {
				return fail()
			}
			return Int(i), nil
		}
	case FloatKind:
		switch v.Kind() {
		case FloatKind:
			return v, nil
		case IntKind:
			return Float(float64(*v.AsInt())), nil
		case DecimalKind, TextKind:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
			if err != nil {
				return fail()
			}
			return Float(f), nil
		}
	case BoolKind:
		switch v.Kind() {
		case BoolKind:
			return v, nil
		case IntKind:
			return Bool(*v.AsInt() != 0), nil
		case TextKind:
			switch strings.ToLower(strings.TrimSpace(*v.AsText())) {
			case "1", "true":
				return Bool(true), nil
			case "0", "false":
				return Bool(false), nil
			}
		}
	case DecimalKind:
		var d Decimal
		switch v.Kind() {
		case DecimalKind:
			d = *v.AsDecimal()
		case IntKind:
			d = NewDecimal(big.NewInt(*v.AsInt()), 0)
		case FloatKind:
			var err error
			if d, err = ParseDecimal(strconv.FormatFloat(*v.AsFloat(), 'f', -1, 64)); err != nil {
				return fail()
			}
		case TextKind:
			var err error
			if d, err = ParseDecimal(*v.AsText()); err != nil {
				return fail()
			}
		default:
			return fail()
		}
		d, err := roundDecimal(d, col.Scale)
		if err != nil {
			return fail()
		}
		return DecimalValue(d), nil
	case TimeKind:
		switch v.Kind() {
		case TimeKind:
			return v, nil
		case TextKind:
			s := strings.TrimSpace(*v.AsText())
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return Time(t.UTC()), nil
				}
			}
		}
	case TextKind:
		switch v.Kind() {
		case BinaryKind:
			return Text(string(v.AsBinary())), nil
		default:
			return Text(v.String()), nil
		}
	case BinaryKind:
		switch v.Kind() {
		case BinaryKind:
			return v, nil
		case TextKind:
			return Binary([]byte(*v.AsText())), nil
		}
	}

	return fail()
}

// roundDecimal rescales d, rounding half away from zero when digits are
// dropped.
func roundDecimal(d Decimal, scale uint8) (Decimal, error) {
	if scale >= d.Scale() {
		return d.Rescale(scale)
	}

	u := d.Unscaled()
	neg := u.Sign() < 0
	u.Abs(u)

	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale()-scale)), nil)
	q, r := new(big.Int).QuoRem(u, div, new(big.Int))
	if r.Mul(r, big.NewInt(2)).Cmp(div) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if neg {
		q.Neg(q)
	}
	return NewDecimal(q, scale), nil
}

func valuesEqual(a, b Value) bool {
	return a.Kind() == b.Kind() && a.String() == b.String()
}
