package resultset

import "github.com/pkg/errors"

// RowBuffer holds the decoded values of the current row. It is overwritten
// by every advance, so callers that keep a row must copy it with Values.
type RowBuffer struct {
	values []Value
	loaded bool
}

func newRowBuffer(columns int) *RowBuffer {
	return &RowBuffer{values: make([]Value, columns)}
}

func (r *RowBuffer) load(values []Value) {
	copy(r.values, values)
	r.loaded = true
}

func (r *RowBuffer) reset() {
	for i := range r.values {
		r.values[i] = Value{}
	}
	r.loaded = false
}

func (r *RowBuffer) Len() int {
	return len(r.values)
}

func (r *RowBuffer) Value(ordinal int) (Value, error) {
	if ordinal < 0 || ordinal >= len(r.values) {
		return Value{}, errors.Wrapf(ErrOrdinalOutOfRange, "ordinal %d, %d columns", ordinal, len(r.values))
	}
	if !r.loaded {
		return Value{}, ErrNoCurrentRow
	}
	return r.values[ordinal], nil
}

// Values returns a copy of the current row.
func (r *RowBuffer) Values() ([]Value, error) {
	if !r.loaded {
		return nil, ErrNoCurrentRow
	}
	return append([]Value{}, r.values...), nil
}
