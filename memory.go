package resultset

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/petar/GoLLRB/llrb"
	"go.uber.org/zap"
)

// Server error numbers reported in ProtocolError events.
const (
	errCodeSyntax        = 102
	errCodeInvalidLength = 131
	errCodeInvalidColumn = 207
	errCodeInvalidObject = 208
	errCodeColumnCount   = 213
	errCodeConversion    = 245
	errCodeNoTable       = 263
	errCodeNotModifiable = 271
	errCodeInvalidCollat = 448
	errCodeNotNull       = 515
	errCodeSparse        = 1731
	errCodeColumnSet     = 1734
	errCodeDuplicateCol  = 2705
	errCodeObjectExists  = 2714
	errCodeUnknownType   = 2715
	errCodePrecision     = 2750
	errCodeCannotDrop    = 3701
	errCodeOverflow      = 8115
	errCodeTruncation    = 8152
)

func serverErrorf(code int32, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type memoryColumn struct {
	desc ColumnDescriptor
	// value stored when an INSERT leaves the column out
	insertDefault *Value
}

type rowItem struct {
	id     uint64
	values []Value
}

func (r rowItem) Less(than llrb.Item) bool {
	return r.id < than.(rowItem).id
}

type table struct {
	name      string
	columns   []memoryColumn
	columnSet int
	rows      *llrb.LLRB
	nextID    uint64
}

func (t *table) column(name string) (int, bool) {
	for i, c := range t.columns {
		if strings.EqualFold(c.desc.Name, name) {
			return i, true
		}
	}
	return -1, false
}

func (t *table) metadata() TableMetadata {
	md := TableMetadata{Name: t.name, Rows: t.rows.Len()}
	for _, c := range t.columns {
		md.Columns = append(md.Columns, c.desc)
	}
	return md
}

// MemoryBackend is an in-process server. It executes T-SQL batches against
// tables held in memory and answers with the event stream a network server
// would produce, sparse columns and column sets included.
type MemoryBackend struct {
	mu        sync.RWMutex
	tables    map[string]*table
	collation Collation
	log       *zap.Logger
}

type MemoryOption func(*MemoryBackend)

func WithBackendLogger(logger *zap.Logger) MemoryOption {
	return func(mb *MemoryBackend) {
		if logger != nil {
			mb.log = logger
		}
	}
}

// WithServerCollation sets the collation of character columns and literals
// that do not name one.
func WithServerCollation(c Collation) MemoryOption {
	return func(mb *MemoryBackend) {
		mb.collation = c
	}
}

func NewMemoryBackend(options ...MemoryOption) *MemoryBackend {
	mb := &MemoryBackend{
		tables:    map[string]*table{},
		collation: DefaultCollation,
		log:       zap.NewNop(),
	}
	for _, o := range options {
		o(mb)
	}
	return mb
}

// Execute runs a batch to completion and returns its events.
func (mb *MemoryBackend) Execute(ctx context.Context, source string) EventSource {
	var events []Event
	mb.execute(ctx, source, func(e Event) bool {
		events = append(events, e)
		return true
	})
	return NewSliceSource(events...)
}

// Stream runs a batch in its own goroutine, handing events over as they are
// produced. Closing the returned source stops the batch.
func (mb *MemoryBackend) Stream(ctx context.Context, source string) *ChanSource {
	ch := make(chan Event)
	src := NewChanSource(ch)

	go func() {
		defer close(ch)
		mb.execute(ctx, source, func(e Event) bool {
			select {
			case ch <- e:
				return true
			case <-src.Done():
				return false
			case <-ctx.Done():
				return false
			}
		})
	}()

	return src
}

// execute stops at the first failing statement, as a batch-aborting error
// does on a real server.
func (mb *MemoryBackend) execute(ctx context.Context, source string, emit func(Event) bool) {
	if !emit(BatchStart()) {
		return
	}

	ast, err := Parse(source)
	if err != nil {
		mb.log.Debug("batch rejected", zap.Error(err))
		near := ""
		if se, ok := err.(*SyntaxError); ok {
			near = se.Near
		}
		emit(ServerError(errCodeSyntax, fmt.Sprintf("Incorrect syntax near '%s'. %s", near, err)))
		return
	}

	for _, stmt := range ast.Statements {
		if ctx.Err() != nil {
			return
		}
		mb.log.Debug("executing statement", zap.String("sql", stmt.GenerateCode()))

		var events []Event
		switch stmt.Kind {
		case CreateTableKind:
			err = mb.createTable(stmt.CreateTableStatement)
		case InsertKind:
			err = mb.insert(stmt.InsertStatement)
		case DropTableKind:
			err = mb.dropTable(stmt.DropTableStatement)
		case SelectKind:
			events, err = mb.selectRows(stmt.SelectStatement)
		}

		if err != nil {
			mb.log.Debug("statement failed", zap.Error(err))
			code, msg := int32(0), err.Error()
			if pe, ok := err.(*ProtocolError); ok {
				code, msg = pe.Code, pe.Message
			}
			emit(ServerError(code, msg))
			return
		}

		for _, e := range events {
			if !emit(e) {
				return
			}
		}
	}

	emit(BatchEnd())
}

func (mb *MemoryBackend) table(name string) (*table, error) {
	t, ok := mb.tables[strings.ToLower(name)]
	if !ok {
		return nil, serverErrorf(errCodeInvalidObject, "Invalid object name '%s'.", name)
	}
	return t, nil
}

func (mb *MemoryBackend) createTable(crt *CreateTableStatement) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	name := crt.name.value
	if _, ok := mb.tables[strings.ToLower(name)]; ok {
		return serverErrorf(errCodeObjectExists, "There is already an object named '%s' in the database.", name)
	}

	t := &table{name: name, columnSet: -1, rows: llrb.New()}
	for i, cd := range *crt.cols {
		if _, dup := t.column(cd.name.value); dup {
			return serverErrorf(errCodeDuplicateCol, "Column names in each table must be unique. Column name '%s' in table '%s' is specified more than once.", cd.name.value, name)
		}

		col, err := mb.defineColumn(t, i, cd)
		if err != nil {
			return err
		}
		t.columns = append(t.columns, col)
	}

	raw := make([]RawColumn, len(t.columns))
	for i, c := range t.columns {
		r, err := c.desc.Raw()
		if err != nil {
			return serverErrorf(errCodeConversion, "%s", err)
		}
		raw[i] = r
	}
	if _, err := DecodeMetadata(raw); err != nil {
		return serverErrorf(errCodeSparse, "%s", err)
	}

	mb.tables[strings.ToLower(name)] = t
	mb.log.Debug("table created", zap.String("table", name), zap.Int("columns", len(t.columns)))
	return nil
}

func (mb *MemoryBackend) defineColumn(t *table, ordinal int, cd *columnDefinition) (memoryColumn, error) {
	nullable := cd.nullable == nil || *cd.nullable
	name := cd.name.value

	if cd.sparse && !nullable {
		return memoryColumn{}, serverErrorf(errCodeSparse, "Cannot create the sparse column '%s' in the table '%s' because an option or data type specified is not valid. A sparse column must be nullable.", name, t.name)
	}

	desc, err := resolveType(&cd.typ, nullable)
	if err != nil {
		return memoryColumn{}, err
	}
	desc.Ordinal = ordinal
	desc.Name = name
	desc.Sparse = cd.sparse

	if cd.columnSet {
		switch {
		case desc.Type != TypeXML:
			return memoryColumn{}, serverErrorf(errCodeColumnSet, "The column set '%s' must be of type xml.", name)
		case cd.sparse:
			return memoryColumn{}, serverErrorf(errCodeColumnSet, "The column set '%s' cannot be sparse.", name)
		case !nullable:
			return memoryColumn{}, serverErrorf(errCodeColumnSet, "The column set '%s' must be nullable.", name)
		case t.columnSet >= 0:
			return memoryColumn{}, serverErrorf(errCodeColumnSet, "Cannot add the column set '%s' to table '%s' because a table can only have one column set.", name, t.name)
		}
		desc.ColumnSet = true
		t.columnSet = ordinal
	}

	if isCharType(&desc) {
		desc.Collation = mb.collation
	}
	if cd.collation != nil {
		if !isCharType(&desc) {
			return memoryColumn{}, serverErrorf(errCodeInvalidCollat, "Expression type %s is invalid for COLLATE clause.", desc.DatabaseTypeName())
		}
		c, ok := LookupCollation(cd.collation.value)
		if !ok {
			return memoryColumn{}, serverErrorf(errCodeInvalidCollat, "Invalid collation '%s'.", cd.collation.value)
		}
		desc.Collation = c
	}

	col := memoryColumn{desc: desc}
	if cd.def != nil {
		v, _, err := evalLiteral(cd.def, mb.collation)
		if err != nil {
			return memoryColumn{}, err
		}
		if v, err = mb.store(&desc, v); err != nil {
			return memoryColumn{}, err
		}
		if v.IsNull() {
			return col, nil
		}
		col.insertDefault = &v
		if desc.Sparse {
			col.desc.Default = &v
		}
	}

	return col, nil
}

// store coerces v for the column and checks it fits.
func (mb *MemoryBackend) store(col *ColumnDescriptor, v Value) (Value, error) {
	v, err := coerce(v, col)
	if err != nil {
		return Value{}, err
	}
	if v.IsNull() {
		return v, nil
	}
	if _, err := encodeData(col, v); err != nil {
		switch col.Kind() {
		case TextKind, BinaryKind:
			return Value{}, serverErrorf(errCodeTruncation, "String or binary data would be truncated in column '%s'.", col.Name)
		default:
			return Value{}, serverErrorf(errCodeOverflow, "Arithmetic overflow error converting %s to data type %s.", v, col.DatabaseTypeName())
		}
	}
	return v, nil
}

func (mb *MemoryBackend) insert(inst *InsertStatement) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	t, err := mb.table(inst.table.value)
	if err != nil {
		return err
	}

	var targets []int
	if inst.cols == nil {
		for i, c := range t.columns {
			if !c.desc.ColumnSet {
				targets = append(targets, i)
			}
		}
	} else {
		for _, id := range *inst.cols {
			i, ok := t.column(id.value)
			if !ok {
				return serverErrorf(errCodeInvalidColumn, "Invalid column name '%s'.", id.value)
			}
			if t.columns[i].desc.ColumnSet {
				return serverErrorf(errCodeNotModifiable, "The column \"%s\" cannot be modified because it is a column set.", id.value)
			}
			targets = append(targets, i)
		}
	}

	rows := make([][]Value, 0, len(inst.values))
	for _, exps := range inst.values {
		if len(*exps) != len(targets) {
			return serverErrorf(errCodeColumnCount, "Column name or number of supplied values does not match table definition.")
		}

		row := make([]Value, len(t.columns))
		for i, c := range t.columns {
			if c.insertDefault != nil {
				row[i] = *c.insertDefault
			}
		}

		for j, exp := range *exps {
			col := &t.columns[targets[j]].desc
			v, _, err := evalLiteral(exp, mb.collation)
			if err != nil {
				return err
			}
			if row[targets[j]], err = mb.store(col, v); err != nil {
				return err
			}
		}

		for i, c := range t.columns {
			if row[i].IsNull() && !c.desc.Nullable {
				return serverErrorf(errCodeNotNull, "Cannot insert the value NULL into column '%s', table '%s'; column does not allow nulls. INSERT fails.", c.desc.Name, t.name)
			}
		}
		rows = append(rows, row)
	}

	for _, row := range rows {
		t.nextID++
		t.rows.ReplaceOrInsert(rowItem{id: t.nextID, values: row})
	}
	return nil
}

func (mb *MemoryBackend) dropTable(dt *DropTableStatement) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	key := strings.ToLower(dt.name.value)
	if _, ok := mb.tables[key]; !ok {
		return serverErrorf(errCodeCannotDrop, "Cannot drop the table '%s', because it does not exist or you do not have permission.", dt.name.value)
	}
	delete(mb.tables, key)
	return nil
}

// selectColumn is one column of a result set and where its values come
// from: a table column, the column set, or a constant.
type selectColumn struct {
	desc     ColumnDescriptor
	source   int
	constant Value
}

func (mb *MemoryBackend) selectRows(slct *SelectStatement) ([]Event, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var t *table
	if slct.from != nil {
		var err error
		if t, err = mb.table(slct.from.table.value); err != nil {
			return nil, err
		}
	}

	var cols []selectColumn
	for _, item := range *slct.item {
		switch {
		case item.asterisk:
			if t == nil {
				return nil, serverErrorf(errCodeNoTable, "Must specify table to select from.")
			}
			// With a column set, * returns the set in place of the
			// individual sparse columns.
			for i, c := range t.columns {
				if c.desc.Sparse && t.columnSet >= 0 {
					continue
				}
				cols = append(cols, selectColumn{desc: c.desc, source: i})
			}
			continue
		case item.exp.kind == columnKind && t != nil:
			i, ok := t.column(item.exp.literal.value)
			if !ok {
				return nil, serverErrorf(errCodeInvalidColumn, "Invalid column name '%s'.", item.exp.literal.value)
			}
			cols = append(cols, selectColumn{desc: t.columns[i].desc, source: i})
		default:
			v, desc, err := evalLiteral(item.exp, mb.collation)
			if err != nil {
				return nil, err
			}
			cols = append(cols, selectColumn{desc: desc, source: -1, constant: v})
		}

		if item.as != nil {
			cols[len(cols)-1].desc.Name = item.as.value
		}
	}

	raw := make([]RawColumn, len(cols))
	seenColumnSet := false
	for i := range cols {
		desc := &cols[i].desc
		desc.Ordinal = i
		if desc.ColumnSet {
			if seenColumnSet {
				desc.ColumnSet = false
			}
			seenColumnSet = true
		}
		r, err := desc.Raw()
		if err != nil {
			return nil, serverErrorf(errCodeConversion, "%s", err)
		}
		raw[i] = r
	}

	events := []Event{ResultBoundary(raw...)}

	emitRow := func(values []Value) error {
		cells := make([]RawCell, len(cols))
		for i, c := range cols {
			v := c.constant
			if c.source >= 0 {
				v = values[c.source]
				if t.columns[c.source].desc.ColumnSet {
					v = columnSetXML(t, values)
				}
			}
			cell, err := wireCell(&c.desc, v)
			if err != nil {
				return serverErrorf(errCodeConversion, "%s", err)
			}
			cells[i] = cell
		}
		events = append(events, RowData(cells...))
		return nil
	}

	if t == nil {
		if err := emitRow(nil); err != nil {
			return nil, err
		}
		return events, nil
	}

	var err error
	t.rows.AscendGreaterOrEqual(rowItem{id: 0}, func(i llrb.Item) bool {
		err = emitRow(i.(rowItem).values)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	mb.log.Debug("rows selected", zap.String("table", t.name), zap.Int("rows", len(events)-1))
	return events, nil
}

// wireCell encodes a value the way it travels in a row. A sparse value
// equal to the column default is left out, as is a NULL in a sparse column
// without a default.
func wireCell(col *ColumnDescriptor, v Value) (RawCell, error) {
	if col.Sparse && col.Default != nil {
		if v.IsNull() {
			return NullCell(), nil
		}
		if valuesEqual(v, *col.Default) {
			return AbsentCell(), nil
		}
	}
	return EncodeValue(col, v)
}

// columnSetXML renders the non-NULL sparse values of a row as the column
// set does: one element per column, NULL when there are none.
func columnSetXML(t *table, values []Value) Value {
	var b strings.Builder
	for i, c := range t.columns {
		if !c.desc.Sparse || values[i].IsNull() {
			continue
		}
		name := xmlName(c.desc.Name)
		b.WriteString("<" + name + ">")
		if err := xml.EscapeText(&b, []byte(values[i].String())); err != nil {
			return Null()
		}
		b.WriteString("</" + name + ">")
	}
	if b.Len() == 0 {
		return Null()
	}
	return Text(b.String())
}

// xmlName maps a column name to an XML element name. Characters that
// cannot appear in the name are written as _xHHHH_, as FOR XML does.
func xmlName(name string) string {
	var b strings.Builder
	for i, r := range name {
		valid := r == '_' || unicode.IsLetter(r)
		if i > 0 {
			valid = valid || r == '-' || r == '.' || unicode.IsDigit(r)
		}
		if !valid {
			fmt.Fprintf(&b, "_x%04X_", r)
			continue
		}
		b.WriteRune(r)
	}
	if len(name) >= 3 && strings.EqualFold(name[:3], "xml") {
		return fmt.Sprintf("_x%04X_", name[0]) + b.String()[1:]
	}
	return b.String()
}

func (mb *MemoryBackend) GetTables() []TableMetadata {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	tms := []TableMetadata{}
	for _, t := range mb.tables {
		tms = append(tms, t.metadata())
	}
	sort.Slice(tms, func(i, j int) bool {
		return tms[i].Name < tms[j].Name
	})
	return tms
}
