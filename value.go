package resultset

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies which member of a Value is set
type Kind uint8

const (
	NullKind Kind = iota
	IntKind
	FloatKind
	TextKind
	BinaryKind
	BoolKind
	DecimalKind
	TimeKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "NullKind"
	case IntKind:
		return "IntKind"
	case FloatKind:
		return "FloatKind"
	case TextKind:
		return "TextKind"
	case BinaryKind:
		return "BinaryKind"
	case BoolKind:
		return "BoolKind"
	case DecimalKind:
		return "DecimalKind"
	case TimeKind:
		return "TimeKind"
	default:
		return "Error"
	}
}

// Value is a decoded cell. The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	d    Decimal
	t    time.Time
}

func Null() Value { return Value{} }
func Int(i int64) Value { return Value{kind: IntKind, i: i} }
func Float(f float64) Value { return Value{kind: FloatKind, f: f} }
func Text(s string) Value { return Value{kind: TextKind, s: s} }
func Binary(b []byte) Value { return Value{kind: BinaryKind, b: b} }
func Time(t time.Time) Value { return Value{kind: TimeKind, t: t} }
func DecimalValue(d Decimal) Value { return Value{kind: DecimalKind, d: d} }

func Bool(b bool) Value {
	v := Value{kind: BoolKind}
	if b {
		v.i = 1
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == NullKind }

// The As accessors return nil when the value is NULL or of another kind.

func (v Value) AsInt() *int64 {
	if v.kind != IntKind {
		return nil
	}
	i := v.i
	return &i
}

func (v Value) AsFloat() *float64 {
	if v.kind != FloatKind {
		return nil
	}
	f := v.f
	return &f
}

func (v Value) AsText() *string {
	if v.kind != TextKind {
		return nil
	}
	s := v.s
	return &s
}

func (v Value) AsBinary() []byte {
	if v.kind != BinaryKind {
		return nil
	}
	return append([]byte{}, v.b...)
}

func (v Value) AsBool() *bool {
	if v.kind != BoolKind {
		return nil
	}
	b := v.i != 0
	return &b
}

func (v Value) AsDecimal() *Decimal {
	if v.kind != DecimalKind {
		return nil
	}
	d := v.d
	return &d
}

func (v Value) AsTime() *time.Time {
	if v.kind != TimeKind {
		return nil
	}
	t := v.t
	return &t
}

// Interface returns the value as one of the types database/sql drivers
// may produce. Decimals are returned in their string form.
func (v Value) Interface() interface{} {
	switch v.kind {
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case TextKind:
		return v.s
	case BinaryKind:
		return append([]byte{}, v.b...)
	case BoolKind:
		return v.i != 0
	case DecimalKind:
		return v.d.String()
	case TimeKind:
		return v.t
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TextKind:
		return v.s
	case BinaryKind:
		return "0x" + strings.ToUpper(hex.EncodeToString(v.b))
	case BoolKind:
		if v.i != 0 {
			return "1"
		}
		return "0"
	case DecimalKind:
		return v.d.String()
	case TimeKind:
		return v.t.Format("2006-01-02 15:04:05.9999999")
	}
	return "NULL"
}

// Decimal is an exact fixed-point number: unscaled * 10^-scale.
type Decimal struct {
	unscaled *big.Int
	scale    uint8
}

func NewDecimal(unscaled *big.Int, scale uint8) Decimal {
	return Decimal{unscaled: new(big.Int).Set(unscaled), scale: scale}
}

// ParseDecimal reads a plain decimal literal such as "-12.50".
func ParseDecimal(s string) (Decimal, error) {
	digits := strings.TrimSpace(s)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimLeft(digits, "+-")
	intPart, fracPart, _ := strings.Cut(digits, ".")
	if intPart == "" && fracPart == "" {
		return Decimal{}, errors.Errorf("invalid decimal %q", s)
	}
	if len(fracPart) > 38 {
		return Decimal{}, errors.Errorf("decimal %q has too many fractional digits", s)
	}

	unscaled, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return Decimal{}, errors.Errorf("invalid decimal %q", s)
	}
	if neg {
		unscaled.Neg(unscaled)
	}
	return Decimal{unscaled: unscaled, scale: uint8(len(fracPart))}, nil
}

func (d Decimal) Scale() uint8 { return d.scale }

func (d Decimal) Unscaled() *big.Int {
	if d.unscaled == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.unscaled)
}

// Rescale returns d with the given scale. Digits are never dropped: a
// smaller scale that would lose precision fails.
func (d Decimal) Rescale(scale uint8) (Decimal, error) {
	u := d.Unscaled()
	if scale >= d.scale {
		u.Mul(u, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale-d.scale)), nil))
		return Decimal{unscaled: u, scale: scale}, nil
	}

	q, r := new(big.Int).QuoRem(u, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.scale-scale)), nil), new(big.Int))
	if r.Sign() != 0 {
		return Decimal{}, errors.Errorf("decimal %s does not fit scale %d", d, scale)
	}
	return Decimal{unscaled: q, scale: scale}, nil
}

func (d Decimal) String() string {
	u := d.Unscaled()
	neg := u.Sign() < 0
	digits := u.Abs(u).String()
	if d.scale > 0 {
		if len(digits) <= int(d.scale) {
			digits = strings.Repeat("0", int(d.scale)-len(digits)+1) + digits
		}
		cut := len(digits) - int(d.scale)
		digits = digits[:cut] + "." + digits[cut:]
	}
	if neg {
		return "-" + digits
	}
	return digits
}
