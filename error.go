package resultset

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMetadata is matched by every *MetadataError
	ErrMetadata = errors.New("malformed column metadata")
	// ErrDecode is matched by every *DecodeError
	ErrDecode = errors.New("cannot decode column value")
	// ErrProtocol is returned when the event stream reports a server error
	// or delivers events in an order the cursor cannot follow
	ErrProtocol = errors.New("protocol error")

	// ErrNoActiveResult is returned when schema or row data is requested
	// while no result set is current
	ErrNoActiveResult = errors.New("no active result set")
	// ErrNoMoreRows is returned by value access once the current result
	// set has been read to the end
	ErrNoMoreRows = errors.New("no more rows")
	// ErrNoCurrentRow is returned by value access before the first Read of
	// a result set
	ErrNoCurrentRow = errors.New("no current row")
	ErrOrdinalOutOfRange   = errors.New("ordinal out of range")
	ErrColumnNotFound      = errors.New("column not found")
	ErrAmbiguousColumnName = errors.New("ambiguous column name")

	// ErrState is matched by every *StateError
	ErrState              = errors.New("cursor is faulted")
	ErrOperationCancelled = errors.New("operation cancelled")
)

// MetadataError describes a malformed or contradictory column descriptor.
// Ordinal is -1 when the problem concerns the result set as a whole.
type MetadataError struct {
	Ordinal int
	Column  string
	Reason  string
}

func metadataErrorf(ordinal int, column string, format string, args ...interface{}) *MetadataError {
	return &MetadataError{Ordinal: ordinal, Column: column, Reason: fmt.Sprintf(format, args...)}
}

func (e *MetadataError) Error() string {
	if e.Ordinal < 0 {
		return fmt.Sprintf("%s: %s", ErrMetadata, e.Reason)
	}
	return fmt.Sprintf("%s: column %d (%q): %s", ErrMetadata, e.Ordinal, e.Column, e.Reason)
}

func (e *MetadataError) Is(target error) bool {
	return target == ErrMetadata
}

// DecodeError describes a single cell that cannot be decoded under its
// declared type or collation.
type DecodeError struct {
	Ordinal int
	Column  string
	Reason  string
}

func decodeErrorf(col *ColumnDescriptor, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Ordinal: col.Ordinal, Column: col.Name, Reason: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: column %d (%q): %s", ErrDecode, e.Ordinal, e.Column, e.Reason)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// ProtocolError carries an error reported by the server inside the batch.
type ProtocolError struct {
	Code    int32
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: msg %d: %s", ErrProtocol, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrProtocol, e.Message)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// StateError is returned by every operation on a faulted cursor. It
// matches both ErrState and the fault that poisoned the batch. Schema and
// row accessors also match ErrNoActiveResult.
type StateError struct {
	Fault error

	noActiveResult bool
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v", ErrState, e.Fault)
}

func (e *StateError) Unwrap() []error {
	if e.noActiveResult {
		return []error{ErrState, ErrNoActiveResult, e.Fault}
	}
	return []error{ErrState, e.Fault}
}
