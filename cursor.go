package resultset

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is the position of a Cursor within its batch.
type State uint8

const (
	Idle State = iota
	BeforeFirstResult
	InResult
	BetweenResults
	Ended
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case BeforeFirstResult:
		return "BeforeFirstResult"
	case InResult:
		return "InResult"
	case BetweenResults:
		return "BetweenResults"
	case Ended:
		return "Ended"
	case Faulted:
		return "Faulted"
	default:
		return "Error"
	}
}

// Cursor walks the result sets of one batch. Only the current result set
// is held: its schema and the row most recently read. A Cursor is not safe
// for concurrent use.
//
// A caller that stops before the batch ends must either Drain the cursor
// or Close it, otherwise the rest of the batch stays queued at the source.
type Cursor struct {
	src  EventSource
	opts Options
	log  *zap.Logger

	state  State
	closed bool
	fault  error

	schema    *Schema
	row       *RowBuffer
	pending   *Event
	exhausted bool

	resultIndex int
	rowIndex    int
	completed   []*Schema
}

// NewCursor returns an Idle cursor over src.
func NewCursor(src EventSource, options ...Option) *Cursor {
	opts := DefaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Cursor{
		src:         src,
		opts:        opts,
		log:         opts.Logger,
		state:       Idle,
		resultIndex: -1,
		rowIndex:    -1,
	}
}

// BeginBatch starts reading a batch and returns a cursor positioned before
// its first result set.
func BeginBatch(ctx context.Context, src EventSource, options ...Option) (*Cursor, error) {
	c := NewCursor(src, options...)
	if err := c.Begin(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// Begin consumes the BatchStart event.
func (c *Cursor) Begin(ctx context.Context) error {
	if c.state == Faulted {
		return c.stateError()
	}
	if c.closed || c.state != Idle {
		return errors.Errorf("cannot begin a batch in state %s", c.state)
	}

	e, err := c.next(ctx)
	if err != nil {
		return err
	}
	if e.Kind != BatchStartEvent {
		return c.fail(&ProtocolError{Message: fmt.Sprintf("batch opened with %s, want BatchStart", e.Kind)})
	}

	c.transition(BeforeFirstResult)
	return nil
}

// NextResult discards the current result set, reading past any rows left
// in it, and moves to the next one. It returns false once the batch has
// ended.
func (c *Cursor) NextResult(ctx context.Context) (bool, error) {
	switch c.state {
	case Faulted:
		return false, c.stateError()
	case Idle:
		return false, errors.Wrap(ErrNoActiveResult, "batch has not begun")
	case Ended:
		return false, nil
	case InResult:
		if err := c.skipRows(ctx); err != nil {
			return false, err
		}
		c.completed = append(c.completed, c.schema)
		c.schema = nil
		c.row = nil
		c.transition(BetweenResults)
	}

	e, err := c.take(ctx)
	if err != nil {
		return false, err
	}

	switch e.Kind {
	case ResultBoundaryEvent:
		return true, c.openResult(e.Columns)
	case BatchEndEvent:
		c.transition(Ended)
		c.log.Debug("batch ended", zap.Int("results", c.resultIndex+1))
		return false, nil
	default:
		return false, c.fail(&ProtocolError{Message: fmt.Sprintf("unexpected %s event in state %s", e.Kind, c.state)})
	}
}

func (c *Cursor) openResult(raw []RawColumn) error {
	columns, err := DecodeMetadata(raw)
	if err != nil {
		return c.fail(err)
	}
	schema, err := BuildSchema(columns, c.opts.CaseInsensitiveNames)
	if err != nil {
		return c.fail(err)
	}

	c.schema = schema
	c.row = newRowBuffer(schema.Len())
	c.exhausted = false
	c.resultIndex++
	c.rowIndex = -1
	c.transition(InResult)

	setIndex, _ := schema.ColumnSetIndex()
	c.log.Debug("result set opened",
		zap.Int("result", c.resultIndex),
		zap.Int("columns", schema.Len()),
		zap.Int("sparse", len(schema.sparse)),
		zap.Int("column_set", setIndex))
	return nil
}

// skipRows reads the unread rows of the current result set. They are still
// decoded so a corrupt row faults the batch instead of being passed over.
func (c *Cursor) skipRows(ctx context.Context) error {
	skipped := 0
	for !c.exhausted {
		ok, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if ok {
			skipped++
		}
	}
	if skipped > 0 {
		c.log.Debug("skipped unread rows", zap.Int("result", c.resultIndex), zap.Int("rows", skipped))
	}
	return nil
}

// HasNextResult reports whether another result set follows the current
// one. Unread rows of the current result set are read past first; the
// cursor stays on the current result set.
func (c *Cursor) HasNextResult(ctx context.Context) (bool, error) {
	switch c.state {
	case Faulted:
		return false, c.stateError()
	case Idle:
		return false, errors.Wrap(ErrNoActiveResult, "batch has not begun")
	case Ended:
		return false, nil
	case InResult:
		if err := c.skipRows(ctx); err != nil {
			return false, err
		}
	}

	e, err := c.peek(ctx)
	if err != nil {
		return false, err
	}
	return e.Kind == ResultBoundaryEvent, nil
}

// CurrentSchema returns the schema of the current result set. Repeated
// calls without advancing return the same snapshot.
func (c *Cursor) CurrentSchema() (*Schema, error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	return c.schema, nil
}

// Read advances to the next row of the current result set. It returns
// false, with a nil error, when the result set has no more rows.
func (c *Cursor) Read(ctx context.Context) (bool, error) {
	if err := c.checkActive(); err != nil {
		return false, err
	}
	if c.exhausted {
		return false, nil
	}

	schema := c.schema
	e, err := c.peek(ctx)
	if err != nil {
		c.row.reset()
		// A server error or a truncated stream between rows ends the
		// result set; every row before it was delivered.
		if errors.Is(err, ErrProtocol) {
			c.completed = append(c.completed, schema)
		}
		return false, err
	}

	switch e.Kind {
	case RowDataEvent:
		c.pending = nil
		values, err := DecodeRow(c.schema, e.Cells)
		if err != nil {
			c.row.reset()
			return false, c.fail(err)
		}
		c.row.load(values)
		c.rowIndex++
		return true, nil
	case ResultBoundaryEvent, BatchEndEvent:
		c.exhausted = true
		c.row.reset()
		return false, nil
	default:
		c.row.reset()
		return false, c.fail(&ProtocolError{Message: fmt.Sprintf("unexpected %s event inside a result set", e.Kind)})
	}
}

// Value returns the value at ordinal in the current row.
func (c *Cursor) Value(ordinal int) (Value, error) {
	if err := c.checkActive(); err != nil {
		return Value{}, err
	}
	if ordinal < 0 || ordinal >= c.row.Len() {
		return Value{}, errors.Wrapf(ErrOrdinalOutOfRange, "ordinal %d, %d columns", ordinal, c.row.Len())
	}
	if c.exhausted {
		return Value{}, ErrNoMoreRows
	}
	return c.row.Value(ordinal)
}

func (c *Cursor) ValueByName(name string) (Value, error) {
	if err := c.checkActive(); err != nil {
		return Value{}, err
	}
	ordinal, err := c.schema.Ordinal(name)
	if err != nil {
		return Value{}, err
	}
	return c.Value(ordinal)
}

// Row returns a copy of the current row that stays valid after the cursor
// advances.
func (c *Cursor) Row() ([]Value, error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	if c.exhausted {
		return nil, ErrNoMoreRows
	}
	return c.row.Values()
}

// Drain reads the batch to its end.
func (c *Cursor) Drain(ctx context.Context) error {
	for {
		ok, err := c.NextResult(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Close abandons the batch. A source that implements io.Closer is closed so
// the producer stops sending.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	if c.state != Ended && c.state != Faulted && c.state != Idle {
		c.log.Debug("abandoning batch", zap.Stringer("state", c.state), zap.Int("result", c.resultIndex))
	}
	c.closed = true
	c.schema = nil
	c.row = nil
	c.pending = nil
	if c.state != Faulted {
		c.state = Idle
	}

	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cursor) State() State {
	return c.state
}

// ResultIndex is the zero-based index of the current result set, -1 before
// the first one.
func (c *Cursor) ResultIndex() int {
	return c.resultIndex
}

// RowIndex is the zero-based index of the current row within its result
// set, -1 before the first Read.
func (c *Cursor) RowIndex() int {
	return c.rowIndex
}

// CompletedSchemas returns the schemas of the result sets that were read to
// the end. They remain available after the cursor faults.
func (c *Cursor) CompletedSchemas() []*Schema {
	return append([]*Schema{}, c.completed...)
}

// Err returns the error that faulted the cursor, if any.
func (c *Cursor) Err() error {
	return c.fault
}

func (c *Cursor) checkActive() error {
	if c.state == Faulted {
		return &StateError{Fault: c.fault, noActiveResult: true}
	}
	if c.state != InResult {
		return errors.Wrapf(ErrNoActiveResult, "cursor is %s", c.state)
	}
	return nil
}

func (c *Cursor) stateError() error {
	return &StateError{Fault: c.fault}
}

func (c *Cursor) transition(to State) {
	c.log.Debug("cursor transition", zap.Stringer("from", c.state), zap.Stringer("to", to))
	c.state = to
}

// fail poisons the batch. The error is returned to the caller that hit it;
// later calls get a StateError wrapping it.
func (c *Cursor) fail(err error) error {
	c.log.Warn("batch faulted",
		zap.Stringer("state", c.state),
		zap.Int("result", c.resultIndex),
		zap.Int("row", c.rowIndex),
		zap.Error(err))
	c.fault = err
	c.state = Faulted
	c.pending = nil
	c.schema = nil
	return err
}

func (c *Cursor) peek(ctx context.Context) (Event, error) {
	if c.pending != nil {
		return *c.pending, nil
	}
	e, err := c.next(ctx)
	if err != nil {
		return Event{}, err
	}
	c.pending = &e
	return e, nil
}

func (c *Cursor) take(ctx context.Context) (Event, error) {
	e, err := c.peek(ctx)
	c.pending = nil
	return e, err
}

// next pulls one event from the source. Cancellation, a source failure and
// a server error all fault the batch.
func (c *Cursor) next(ctx context.Context) (Event, error) {
	if c.closed {
		return Event{}, errors.New("cursor is closed")
	}
	if err := ctx.Err(); err != nil {
		return Event{}, c.fail(errors.Wrapf(ErrOperationCancelled, "%v", err))
	}

	e, err := c.src.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Event{}, c.fail(errors.Wrapf(ErrOperationCancelled, "%v", ctx.Err()))
		}
		if err == io.EOF {
			return Event{}, c.fail(&ProtocolError{Message: "event stream ended before BatchEnd"})
		}
		return Event{}, c.fail(errors.Wrap(err, "reading batch events"))
	}

	if e.Kind == ProtocolErrorEvent {
		return Event{}, c.fail(&ProtocolError{Code: e.Code, Message: e.Message})
	}
	return e, nil
}
