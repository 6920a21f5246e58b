package resultset

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DriverName is the name the driver registers with database/sql.
const DriverName = "resultset"

var backends = struct {
	sync.Mutex
	m map[string]Backend
}{m: map[string]Backend{}}

// RegisterBackend makes b the backend of every connection opened with dsn.
// Unregistered DSNs get a fresh MemoryBackend on first use, shared by all
// later connections to the same DSN.
func RegisterBackend(dsn string, b Backend) {
	backends.Lock()
	defer backends.Unlock()
	backends.m[dsn] = b
}

func backendFor(dsn string) Backend {
	backends.Lock()
	defer backends.Unlock()

	b, ok := backends.m[dsn]
	if !ok {
		b = NewMemoryBackend()
		backends.m[dsn] = b
	}
	return b
}

// Rows exposes a Cursor through database/sql, result set by result set.
type Rows struct {
	ctx    context.Context
	cursor *Cursor
	schema *Schema
}

func (r *Rows) Columns() []string {
	if r.schema == nil {
		return []string{}
	}
	return r.schema.Names()
}

func (r *Rows) Close() error {
	return r.cursor.Close()
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.schema == nil {
		return io.EOF
	}

	ok, err := r.cursor.Read(r.ctx)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}

	for i := range dest {
		v, err := r.cursor.Value(i)
		if err != nil {
			return err
		}
		dest[i] = v.Interface()
	}
	return nil
}

func (r *Rows) HasNextResultSet() bool {
	if r.schema == nil {
		return false
	}
	ok, err := r.cursor.HasNextResult(r.ctx)
	return err == nil && ok
}

func (r *Rows) NextResultSet() error {
	ok, err := r.cursor.NextResult(r.ctx)
	if err != nil {
		return err
	}
	if !ok {
		r.schema = nil
		return io.EOF
	}
	r.schema, err = r.cursor.CurrentSchema()
	return err
}

func (r *Rows) column(index int) ColumnDescriptor {
	col, _ := r.schema.Column(index)
	return col
}

func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.column(index).DatabaseTypeName()
}

func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	return r.column(index).Nullable, true
}

func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	return r.column(index).Length()
}

func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	return r.column(index).DecimalSize()
}

var (
	scanTypes = map[Kind]reflect.Type{
		IntKind:     reflect.TypeOf(int64(0)),
		FloatKind:   reflect.TypeOf(float64(0)),
		TextKind:    reflect.TypeOf(""),
		BinaryKind:  reflect.TypeOf([]byte(nil)),
		BoolKind:    reflect.TypeOf(false),
		DecimalKind: reflect.TypeOf(""),
		TimeKind:    reflect.TypeOf(time.Time{}),
	}
	nullableScanTypes = map[Kind]reflect.Type{
		IntKind:     reflect.TypeOf(sql.NullInt64{}),
		FloatKind:   reflect.TypeOf(sql.NullFloat64{}),
		TextKind:    reflect.TypeOf(sql.NullString{}),
		BinaryKind:  reflect.TypeOf([]byte(nil)),
		BoolKind:    reflect.TypeOf(sql.NullBool{}),
		DecimalKind: reflect.TypeOf(sql.NullString{}),
		TimeKind:    reflect.TypeOf(sql.NullTime{}),
	}
)

func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	col := r.column(index)
	if col.Nullable {
		return nullableScanTypes[col.Kind()]
	}
	return scanTypes[col.Kind()]
}

type Conn struct {
	bkd Backend
}

// QueryContext runs the batch and positions the rows on its first result
// set. Batches without result sets give rows with no columns.
func (dc *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, errors.New("parameterized queries are not supported")
	}

	cursor, err := BeginBatch(ctx, dc.bkd.Execute(ctx, query))
	if err != nil {
		return nil, err
	}

	rows := &Rows{ctx: ctx, cursor: cursor}
	if err := rows.NextResultSet(); err != nil && err != io.EOF {
		cursor.Close()
		return nil, err
	}
	return rows, nil
}

// ExecContext runs the batch to its end, discarding any rows.
func (dc *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if len(args) > 0 {
		return nil, errors.New("parameterized queries are not supported")
	}

	cursor, err := BeginBatch(ctx, dc.bkd.Execute(ctx, query))
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	if err := cursor.Drain(ctx); err != nil {
		return nil, err
	}
	return driver.ResultNoRows, nil
}

func (dc *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: dc, query: query}, nil
}

func (dc *Conn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions are not supported")
}

func (dc *Conn) Close() error {
	return nil
}

// Stmt defers to the connection; batches are parsed when they run.
type Stmt struct {
	conn  *Conn
	query string
}

func (s *Stmt) Close() error {
	return nil
}

func (s *Stmt) NumInput() int {
	return 0
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.conn.ExecContext(context.Background(), s.query, nil)
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.conn.QueryContext(context.Background(), s.query, nil)
}

type Driver struct{}

func (d *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{bkd: backendFor(name)}, nil
}

func init() {
	sql.Register(DriverName, &Driver{})
}
