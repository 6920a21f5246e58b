package resultset

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func beginBatch(t *testing.T, mb *MemoryBackend, source string) *Cursor {
	t.Helper()
	cursor, err := BeginBatch(context.Background(), mb.Execute(context.Background(), source), WithLogger(zaptest.NewLogger(t)))
	assert.Nil(t, err)
	assert.Equal(t, BeforeFirstResult, cursor.State())
	return cursor
}

func mustNextResult(t *testing.T, cursor *Cursor) *Schema {
	t.Helper()
	ok, err := cursor.NextResult(context.Background())
	assert.Nil(t, err)
	assert.True(t, ok)
	schema, err := cursor.CurrentSchema()
	assert.Nil(t, err)
	return schema
}

func mustRead(t *testing.T, cursor *Cursor) []Value {
	t.Helper()
	ok, err := cursor.Read(context.Background())
	assert.Nil(t, err)
	assert.True(t, ok)
	row, err := cursor.Row()
	assert.Nil(t, err)
	return row
}

func assertExhausted(t *testing.T, cursor *Cursor) {
	t.Helper()
	ok, err := cursor.Read(context.Background())
	assert.Nil(t, err)
	assert.False(t, ok)
}

func TestCursor_multipleResults(t *testing.T) {
	ctx := context.Background()
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS ColInteger; SELECT 'STRING' AS ColString")
	defer cursor.Close()

	schema := mustNextResult(t, cursor)
	assert.Equal(t, []string{"ColInteger"}, schema.Names())
	assert.Equal(t, 0, cursor.ResultIndex())
	assert.Equal(t, -1, cursor.RowIndex())

	row := mustRead(t, cursor)
	assert.Equal(t, int64(1), *row[0].AsInt())
	assert.Equal(t, 0, cursor.RowIndex())

	v, err := cursor.ValueByName("colinteger")
	assert.Nil(t, err)
	assert.Equal(t, int64(1), *v.AsInt())
	assertExhausted(t, cursor)

	schema = mustNextResult(t, cursor)
	assert.Equal(t, []string{"ColString"}, schema.Names())
	assert.Equal(t, 1, cursor.ResultIndex())
	col, err := schema.Column(0)
	assert.Nil(t, err)
	assert.Equal(t, "VARCHAR", col.DatabaseTypeName())

	row = mustRead(t, cursor)
	assert.Equal(t, "STRING", *row[0].AsText())

	ok, err := cursor.NextResult(ctx)
	assert.Nil(t, err)
	assert.False(t, ok)
	assert.Equal(t, Ended, cursor.State())

	// The end of the batch is reported once and then stays put.
	ok, err = cursor.NextResult(ctx)
	assert.Nil(t, err)
	assert.False(t, ok)

	_, err = cursor.CurrentSchema()
	assert.ErrorIs(t, err, ErrNoActiveResult)

	completed := cursor.CompletedSchemas()
	assert.Len(t, completed, 2)
	assert.Equal(t, []string{"ColInteger"}, completed[0].Names())
}

func TestCursor_manyResults(t *testing.T) {
	ctx := context.Background()
	const k = 5
	source := ""
	for i := 0; i < k; i++ {
		source += fmt.Sprintf("SELECT %d AS n;", i)
	}
	cursor := beginBatch(t, NewMemoryBackend(), source)

	seen := 0
	for {
		ok, err := cursor.NextResult(ctx)
		assert.Nil(t, err)
		if !ok {
			break
		}
		row := mustRead(t, cursor)
		assert.Equal(t, int64(seen), *row[0].AsInt())
		seen++
	}
	assert.Equal(t, k, seen)
}

func TestCursor_sparseColumns(t *testing.T) {
	mb := NewMemoryBackend()
	cursor := beginBatch(t, mb, `
CREATE TABLE t (
	id INT NOT NULL,
	one INT SPARSE NULL,
	two NVARCHAR(10) SPARSE NULL,
	three INT SPARSE NULL,
	four INT SPARSE NULL,
	cs XML COLUMN_SET FOR ALL_SPARSE_COLUMNS
);
INSERT INTO t (id, three, four) VALUES (1, 3, 4);
INSERT INTO t (id, two) VALUES (2, N'zwei');
SELECT id, one, two, three, four, cs FROM t;
SELECT * FROM t;`)

	schema := mustNextResult(t, cursor)
	assert.Equal(t, []int{1, 2, 3, 4}, schema.SparseColumnIndices())
	index, ok := schema.ColumnSetIndex()
	assert.True(t, ok)
	assert.Equal(t, 5, index)

	row := mustRead(t, cursor)
	assert.Equal(t, int64(1), *row[0].AsInt())
	assert.True(t, row[1].IsNull())
	assert.True(t, row[2].IsNull())
	assert.Equal(t, int64(3), *row[3].AsInt())
	assert.Equal(t, int64(4), *row[4].AsInt())
	assert.Equal(t, "<three>3</three><four>4</four>", *row[5].AsText())

	row = mustRead(t, cursor)
	assert.Equal(t, "zwei", *row[2].AsText())
	assert.True(t, row[3].IsNull())
	assert.Equal(t, "<two>zwei</two>", *row[5].AsText())
	assertExhausted(t, cursor)

	// * returns the column set instead of the sparse columns.
	schema = mustNextResult(t, cursor)
	assert.Equal(t, []string{"id", "cs"}, schema.Names())
	assert.Empty(t, schema.SparseColumnIndices())
	index, ok = schema.ColumnSetIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, index)

	assert.Nil(t, cursor.Drain(context.Background()))
	assert.Equal(t, Ended, cursor.State())
}

func TestCursor_sparseDefaults(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), `
CREATE TABLE d (id INT NOT NULL, s INT SPARSE NULL DEFAULT 7);
INSERT INTO d (id) VALUES (1);
INSERT INTO d (id, s) VALUES (2, NULL), (3, 9), (4, 7);
SELECT id, s FROM d`)

	schema := mustNextResult(t, cursor)
	col, err := schema.ColumnByName("s")
	assert.Nil(t, err)
	assert.Equal(t, int64(7), *col.Default.AsInt())

	want := []*int64{}
	for _, n := range []int64{7, -1, 9, 7} {
		n := n
		if n < 0 {
			want = append(want, nil)
		} else {
			want = append(want, &n)
		}
	}

	for i, w := range want {
		row := mustRead(t, cursor)
		assert.Equal(t, int64(i+1), *row[0].AsInt())
		assert.Equal(t, w, row[1].AsInt(), "row %d", i)
	}
	assertExhausted(t, cursor)
}

func TestCursor_currentSchemaIsStable(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a, 2 AS b")
	first := mustNextResult(t, cursor)

	again, err := cursor.CurrentSchema()
	assert.Nil(t, err)
	assert.Same(t, first, again)

	mustRead(t, cursor)
	again, err = cursor.CurrentSchema()
	assert.Nil(t, err)
	assert.Same(t, first, again)
}

func TestCursor_noActiveResult(t *testing.T) {
	ctx := context.Background()
	cursor := NewCursor(NewSliceSource(BatchStart(), BatchEnd()))
	assert.Equal(t, Idle, cursor.State())

	_, err := cursor.NextResult(ctx)
	assert.ErrorIs(t, err, ErrNoActiveResult)
	_, err = cursor.CurrentSchema()
	assert.ErrorIs(t, err, ErrNoActiveResult)

	assert.Nil(t, cursor.Begin(ctx))
	assert.NotNil(t, cursor.Begin(ctx))

	_, err = cursor.CurrentSchema()
	assert.ErrorIs(t, err, ErrNoActiveResult)
	_, err = cursor.Read(ctx)
	assert.ErrorIs(t, err, ErrNoActiveResult)
	_, err = cursor.Value(0)
	assert.ErrorIs(t, err, ErrNoActiveResult)

	ok, err := cursor.NextResult(ctx)
	assert.Nil(t, err)
	assert.False(t, ok)
	assert.Empty(t, cursor.CompletedSchemas())
}

func TestCursor_rowAccess(t *testing.T) {
	ctx := context.Background()
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a, NULL AS b")
	mustNextResult(t, cursor)

	_, err := cursor.Value(0)
	assert.ErrorIs(t, err, ErrNoCurrentRow)
	_, err = cursor.Value(2)
	assert.ErrorIs(t, err, ErrOrdinalOutOfRange)
	_, err = cursor.Value(-1)
	assert.ErrorIs(t, err, ErrOrdinalOutOfRange)
	_, err = cursor.ValueByName("c")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	mustRead(t, cursor)
	v, err := cursor.Value(1)
	assert.Nil(t, err)
	assert.True(t, v.IsNull())

	ok, err := cursor.Read(ctx)
	assert.Nil(t, err)
	assert.False(t, ok)

	_, err = cursor.Value(0)
	assert.ErrorIs(t, err, ErrNoMoreRows)
	_, err = cursor.Row()
	assert.ErrorIs(t, err, ErrNoMoreRows)
	_, err = cursor.Value(2)
	assert.ErrorIs(t, err, ErrOrdinalOutOfRange)
}

func TestCursor_hasNextResult(t *testing.T) {
	ctx := context.Background()
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a; SELECT 2 AS b")
	mustNextResult(t, cursor)

	more, err := cursor.HasNextResult(ctx)
	assert.Nil(t, err)
	assert.True(t, more)
	assert.Equal(t, 0, cursor.ResultIndex())
	assertExhausted(t, cursor)

	mustNextResult(t, cursor)
	row := mustRead(t, cursor)
	assert.Equal(t, int64(2), *row[0].AsInt())

	more, err = cursor.HasNextResult(ctx)
	assert.Nil(t, err)
	assert.False(t, more)
}

func TestCursor_unreadRowsAreSkipped(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), `
CREATE TABLE r (n INT NOT NULL);
INSERT INTO r VALUES (1), (2), (3);
SELECT n FROM r;
SELECT 'after' AS s`)

	mustNextResult(t, cursor)
	mustRead(t, cursor)

	schema := mustNextResult(t, cursor)
	assert.Equal(t, []string{"s"}, schema.Names())
	row := mustRead(t, cursor)
	assert.Equal(t, "after", *row[0].AsText())
}

func TestCursor_wideSparseResult(t *testing.T) {
	const sparse = 4095
	raw := make([]RawColumn, 0, sparse+1)
	cells := make([]RawCell, 0, sparse+1)
	for i := 0; i < sparse; i++ {
		raw = append(raw, intNColumn(fmt.Sprintf("c%d", i), FlagSparse))
		if i == 10 {
			cells = append(cells, Cell(le32(10)))
		} else {
			cells = append(cells, AbsentCell())
		}
	}
	raw = append(raw, columnSetColumn("cs"))
	cells = append(cells, Cell([]byte{'<', 0, 'c', 0, '/', 0, '>', 0}))

	cursor, err := BeginBatch(context.Background(), NewSliceSource(
		BatchStart(),
		ResultBoundary(raw...),
		RowData(cells...),
		BatchEnd(),
	))
	assert.Nil(t, err)

	schema := mustNextResult(t, cursor)
	assert.Equal(t, sparse+1, schema.Len())
	assert.Len(t, schema.SparseColumnIndices(), sparse)
	index, ok := schema.ColumnSetIndex()
	assert.True(t, ok)
	assert.Equal(t, sparse, index)

	row := mustRead(t, cursor)
	assert.Equal(t, int64(10), *row[10].AsInt())
	assert.True(t, row[0].IsNull())
	assert.True(t, row[sparse-1].IsNull())

	v, err := cursor.ValueByName("C4094")
	assert.Nil(t, err)
	assert.True(t, v.IsNull())
}

func TestCursor_cancellation(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a; SELECT 2 AS b")
	mustNextResult(t, cursor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cursor.Read(ctx)
	assert.ErrorIs(t, err, ErrOperationCancelled)
	assert.Equal(t, Faulted, cursor.State())

	_, err = cursor.NextResult(context.Background())
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, err, ErrOperationCancelled)

	_, err = cursor.CurrentSchema()
	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, cursor.Err(), ErrOperationCancelled)

	// Rows may still be queued behind a cancellation.
	assert.Empty(t, cursor.CompletedSchemas())
}

func TestCursor_faultKeepsCompletedSchemas(t *testing.T) {
	ctx := context.Background()
	cursor, err := BeginBatch(ctx, NewSliceSource(
		BatchStart(),
		ResultBoundary(intNColumn("a", 0)),
		RowData(Cell(le32(1))),
		ResultBoundary(intNColumn("b", 0), intNColumn("c", 0)),
		RowData(Cell(le32(2))),
		BatchEnd(),
	))
	assert.Nil(t, err)

	mustNextResult(t, cursor)
	mustNextResult(t, cursor)

	_, err = cursor.Read(ctx)
	assert.ErrorIs(t, err, ErrMetadata)
	assert.Equal(t, Faulted, cursor.State())
	assert.ErrorIs(t, cursor.Err(), ErrMetadata)

	_, err = cursor.Read(ctx)
	var se *StateError
	assert.True(t, errors.As(err, &se))
	assert.ErrorIs(t, se.Fault, ErrMetadata)

	completed := cursor.CompletedSchemas()
	assert.Len(t, completed, 1)
	assert.Equal(t, []string{"a"}, completed[0].Names())
}

func TestCursor_serverError(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a; SELECT * FROM missing")
	mustNextResult(t, cursor)
	mustRead(t, cursor)

	_, err := cursor.NextResult(context.Background())
	assert.ErrorIs(t, err, ErrProtocol)
	var pe *ProtocolError
	if assert.True(t, errors.As(err, &pe)) {
		assert.Equal(t, int32(208), pe.Code)
		assert.Equal(t, "Invalid object name 'missing'.", pe.Message)
	}
	assert.Equal(t, Faulted, cursor.State())

	completed := cursor.CompletedSchemas()
	if assert.Len(t, completed, 1) {
		assert.Equal(t, []string{"a"}, completed[0].Names())
	}
}

func TestCursor_faultAfterLastRow(t *testing.T) {
	stream := func(tail ...Event) []Event {
		return append([]Event{
			BatchStart(),
			ResultBoundary(intNColumn("a", 0)),
			RowData(Cell(le32(1))),
			RowData(Cell(le32(2))),
		}, tail...)
	}

	tests := []struct {
		name    string
		events  []Event
		advance func(ctx context.Context, c *Cursor) error
	}{
		{
			"read until server error",
			stream(ServerError(208, "Invalid object name 'missing'.")),
			func(ctx context.Context, c *Cursor) error {
				for {
					ok, err := c.Read(ctx)
					if err != nil || !ok {
						return err
					}
				}
			},
		},
		{
			"read until stream ends",
			stream(),
			func(ctx context.Context, c *Cursor) error {
				for {
					ok, err := c.Read(ctx)
					if err != nil || !ok {
						return err
					}
				}
			},
		},
		{
			"has next result",
			stream(ServerError(208, "Invalid object name 'missing'.")),
			func(ctx context.Context, c *Cursor) error {
				_, err := c.HasNextResult(ctx)
				return err
			},
		},
		{
			"next result",
			stream(ServerError(208, "Invalid object name 'missing'.")),
			func(ctx context.Context, c *Cursor) error {
				_, err := c.NextResult(ctx)
				return err
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := context.Background()
			cursor, err := BeginBatch(ctx, NewSliceSource(test.events...))
			assert.Nil(t, err)
			mustNextResult(t, cursor)

			err = test.advance(ctx, cursor)
			assert.ErrorIs(t, err, ErrProtocol)
			assert.Equal(t, Faulted, cursor.State())

			completed := cursor.CompletedSchemas()
			if assert.Len(t, completed, 1) {
				assert.Equal(t, []string{"a"}, completed[0].Names())
			}
		})
	}
}

func TestCursor_faultAfterLastRowMemory(t *testing.T) {
	ctx := context.Background()
	cursor := beginBatch(t, NewMemoryBackend(), "SELECT 1 AS a; SELECT * FROM missing")
	mustNextResult(t, cursor)

	var err error
	for rows := 0; ; rows++ {
		var ok bool
		ok, err = cursor.Read(ctx)
		if err != nil || !ok {
			assert.Equal(t, 1, rows)
			break
		}
	}
	assert.ErrorIs(t, err, ErrProtocol)

	completed := cursor.CompletedSchemas()
	if assert.Len(t, completed, 1) {
		assert.Equal(t, []string{"a"}, completed[0].Names())
	}
}

func TestCursor_faultedAccessors(t *testing.T) {
	ctx := context.Background()
	cursor, err := BeginBatch(ctx, NewSliceSource(
		BatchStart(),
		ResultBoundary(intNColumn("a", 0)),
		ServerError(208, "Invalid object name 'missing'."),
	))
	assert.Nil(t, err)
	mustNextResult(t, cursor)
	_, err = cursor.Read(ctx)
	assert.ErrorIs(t, err, ErrProtocol)

	accessors := map[string]func() error{
		"CurrentSchema": func() error { _, err := cursor.CurrentSchema(); return err },
		"Read":          func() error { _, err := cursor.Read(ctx); return err },
		"Value":         func() error { _, err := cursor.Value(0); return err },
		"ValueByName":   func() error { _, err := cursor.ValueByName("a"); return err },
		"Row":           func() error { _, err := cursor.Row(); return err },
	}
	for name, access := range accessors {
		err := access()
		assert.ErrorIs(t, err, ErrState, name)
		assert.ErrorIs(t, err, ErrNoActiveResult, name)
		assert.ErrorIs(t, err, ErrProtocol, name)
	}

	_, err = cursor.NextResult(ctx)
	assert.ErrorIs(t, err, ErrState)
	assert.NotErrorIs(t, err, ErrNoActiveResult)
}

func TestCursor_protocolViolations(t *testing.T) {
	ctx := context.Background()

	_, err := BeginBatch(ctx, NewSliceSource(ResultBoundary()))
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = BeginBatch(ctx, NewSliceSource())
	assert.ErrorIs(t, err, ErrProtocol)

	cursor, err := BeginBatch(ctx, NewSliceSource(BatchStart(), ResultBoundary(intNColumn("a", 0))))
	assert.Nil(t, err)
	mustNextResult(t, cursor)
	_, err = cursor.Read(ctx)
	assert.ErrorIs(t, err, ErrProtocol)

	cursor, err = BeginBatch(ctx, NewSliceSource(BatchStart(), RowData(Cell(le32(1))), BatchEnd()))
	assert.Nil(t, err)
	_, err = cursor.NextResult(ctx)
	assert.ErrorIs(t, err, ErrProtocol)

	cursor, err = BeginBatch(ctx, NewSliceSource(BatchStart(), ResultBoundary(
		columnSetColumn("x"),
		columnSetColumn("y"),
	)))
	assert.Nil(t, err)
	_, err = cursor.NextResult(ctx)
	assert.ErrorIs(t, err, ErrMetadata)
	assert.Equal(t, Faulted, cursor.State())
}

func TestCursor_emptyResult(t *testing.T) {
	cursor := beginBatch(t, NewMemoryBackend(), "CREATE TABLE e (a INT); SELECT a FROM e")
	schema := mustNextResult(t, cursor)
	assert.Equal(t, 1, schema.Len())
	assertExhausted(t, cursor)

	_, err := cursor.Value(0)
	assert.ErrorIs(t, err, ErrNoMoreRows)
}

func TestCursor_stream(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBackend()

	cursor, err := BeginBatch(ctx, mb.Stream(ctx, "SELECT 1 AS a; SELECT 2 AS b"))
	assert.Nil(t, err)
	mustNextResult(t, cursor)
	row := mustRead(t, cursor)
	assert.Equal(t, int64(1), *row[0].AsInt())
	assert.Nil(t, cursor.Drain(ctx))
	assert.Equal(t, Ended, cursor.State())
	assert.Nil(t, cursor.Close())
}

func TestCursor_close(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryBackend().Stream(ctx, "SELECT 1 AS a; SELECT 2 AS b; SELECT 3 AS c")

	cursor, err := BeginBatch(ctx, src)
	assert.Nil(t, err)
	mustNextResult(t, cursor)

	assert.Nil(t, cursor.Close())
	assert.Nil(t, cursor.Close())
	assert.Equal(t, Idle, cursor.State())

	select {
	case <-src.Done():
	default:
		t.Fatal("source not closed")
	}

	_, err = cursor.NextResult(ctx)
	assert.ErrorIs(t, err, ErrNoActiveResult)
	assert.NotNil(t, cursor.Begin(ctx))
}
