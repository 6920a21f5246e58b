package resultset

import (
	"context"
	"io"
	"sync"
)

// EventKind identifies what an Event carries.
type EventKind uint8

const (
	BatchStartEvent EventKind = iota
	ResultBoundaryEvent
	RowDataEvent
	BatchEndEvent
	ProtocolErrorEvent
)

func (k EventKind) String() string {
	switch k {
	case BatchStartEvent:
		return "BatchStart"
	case ResultBoundaryEvent:
		return "ResultBoundary"
	case RowDataEvent:
		return "RowData"
	case BatchEndEvent:
		return "BatchEnd"
	case ProtocolErrorEvent:
		return "ProtocolError"
	default:
		return "Error"
	}
}

// Event is one unit of the ordered stream a server produces for a batch.
// Columns is set on ResultBoundary events, Cells on RowData events and Code
// and Message on ProtocolError events.
type Event struct {
	Kind    EventKind
	Columns []RawColumn
	Cells   []RawCell
	Code    int32
	Message string
}

func BatchStart() Event {
	return Event{Kind: BatchStartEvent}
}

func ResultBoundary(columns ...RawColumn) Event {
	return Event{Kind: ResultBoundaryEvent, Columns: columns}
}

func RowData(cells ...RawCell) Event {
	return Event{Kind: RowDataEvent, Cells: cells}
}

func BatchEnd() Event {
	return Event{Kind: BatchEndEvent}
}

func ServerError(code int32, message string) Event {
	return Event{Kind: ProtocolErrorEvent, Code: code, Message: message}
}

// EventSource delivers the events of one batch in order. Next blocks until
// an event is available and returns io.EOF once the stream is finished.
type EventSource interface {
	Next(ctx context.Context) (Event, error)
}

// SliceSource replays an already materialized batch.
type SliceSource struct {
	events []Event
	pos    int
}

func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// Remaining reports how many events have not been delivered yet.
func (s *SliceSource) Remaining() int {
	return len(s.events) - s.pos
}

// ChanSource adapts a producer goroutine that pushes events. The producer
// closes the channel after the last event; Close tells it to stop early.
type ChanSource struct {
	events <-chan Event
	done   chan struct{}
	once   sync.Once
}

func NewChanSource(events <-chan Event) *ChanSource {
	return &ChanSource{events: events, done: make(chan struct{})}
}

func (s *ChanSource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case e, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return e, nil
	}
}

// Done is closed once the consumer has abandoned the stream.
func (s *ChanSource) Done() <-chan struct{} {
	return s.done
}

func (s *ChanSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
