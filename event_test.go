package resultset

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSliceSource(t *testing.T) {
	ctx := context.Background()
	src := NewSliceSource(BatchStart(), BatchEnd())
	assert.Equal(t, 2, src.Remaining())

	e, err := src.Next(ctx)
	assert.Nil(t, err)
	assert.Equal(t, BatchStartEvent, e.Kind)

	e, err = src.Next(ctx)
	assert.Nil(t, err)
	assert.Equal(t, BatchEndEvent, e.Kind)
	assert.Equal(t, 0, src.Remaining())

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewSliceSource(BatchStart()).Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChanSource(t *testing.T) {
	ctx := context.Background()
	events := make(chan Event, 2)
	src := NewChanSource(events)

	events <- RowData(Cell([]byte{1}))
	close(events)

	e, err := src.Next(ctx)
	assert.Nil(t, err)
	assert.Equal(t, RowDataEvent, e.Kind)
	assert.Len(t, e.Cells, 1)

	_, err = src.Next(ctx)
	assert.Equal(t, io.EOF, err)

	assert.Nil(t, src.Close())
	assert.Nil(t, src.Close())
	select {
	case <-src.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestChanSource_cancel(t *testing.T) {
	src := NewChanSource(make(chan Event))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "ResultBoundary", ResultBoundaryEvent.String())
	assert.Equal(t, "ProtocolError", ServerError(1, "x").Kind.String())
	assert.Equal(t, "Error", EventKind(99).String())
}
