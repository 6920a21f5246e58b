package resultset

import (
	"fmt"
	"strings"
)

type expressionKind uint

const (
	literalKind expressionKind = iota
	columnKind
	castKind
)

type castExpression struct {
	exp *expression
	typ *typeName
}

type expression struct {
	literal *token
	cast    *castExpression
	kind    expressionKind
}

func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (e expression) generateCode() string {
	switch e.kind {
	case literalKind:
		switch e.literal.kind {
		case stringKind:
			return "'" + strings.ReplaceAll(e.literal.value, "'", "''") + "'"
		case nstringKind:
			return "N'" + strings.ReplaceAll(e.literal.value, "'", "''") + "'"
		case hexKind:
			return "0x" + strings.ToUpper(e.literal.value)
		case nullKind:
			return "NULL"
		default:
			return e.literal.value
		}
	case columnKind:
		return quoteIdentifier(e.literal.value)
	case castKind:
		return fmt.Sprintf("CAST(%s AS %s)", e.cast.exp.generateCode(), e.cast.typ.generateCode())
	}

	return ""
}

// typeName is a type as written in SQL, such as DECIMAL(10, 2) or
// NVARCHAR(MAX).
type typeName struct {
	name token
	args []uint32
	max  bool
}

func (t typeName) generateCode() string {
	name := strings.ToUpper(t.name.value)
	if t.max {
		return name + "(MAX)"
	}
	if len(t.args) == 0 {
		return name
	}
	args := make([]string, len(t.args))
	for i, a := range t.args {
		args[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

type selectItem struct {
	exp      *expression
	asterisk bool
	as       *token
}

type fromItem struct {
	table *token
}

type SelectStatement struct {
	item *[]*selectItem
	from *fromItem
}

func (ss SelectStatement) GenerateCode() string {
	item := []string{}
	for _, i := range *ss.item {
		s := "\t*"
		if !i.asterisk {
			s = "\t" + i.exp.generateCode()

			if i.as != nil {
				s = fmt.Sprintf("%s AS %s", s, quoteIdentifier(i.as.value))
			}
		}
		item = append(item, s)
	}

	from := ""
	if ss.from != nil {
		from = fmt.Sprintf("\nFROM\n\t%s", quoteIdentifier(ss.from.table.value))
	}

	return fmt.Sprintf("SELECT\n%s%s;", strings.Join(item, ",\n"), from)
}

type columnDefinition struct {
	name token
	typ  typeName
	// nil unless NULL or NOT NULL was written
	nullable  *bool
	sparse    bool
	columnSet bool
	collation *token
	def       *expression
}

type CreateTableStatement struct {
	name token
	cols *[]*columnDefinition
}

func (cts CreateTableStatement) GenerateCode() string {
	cols := []string{}
	for _, col := range *cts.cols {
		line := fmt.Sprintf("\t%s %s", quoteIdentifier(col.name.value), col.typ.generateCode())
		if col.collation != nil {
			line += " COLLATE " + col.collation.value
		}
		if col.sparse {
			line += " SPARSE"
		}
		if col.columnSet {
			line += " COLUMN_SET FOR ALL_SPARSE_COLUMNS"
		}
		if col.nullable != nil {
			if *col.nullable {
				line += " NULL"
			} else {
				line += " NOT NULL"
			}
		}
		if col.def != nil {
			line += " DEFAULT " + col.def.generateCode()
		}
		cols = append(cols, line)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", quoteIdentifier(cts.name.value), strings.Join(cols, ",\n"))
}

type DropTableStatement struct {
	name token
}

func (dts DropTableStatement) GenerateCode() string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdentifier(dts.name.value))
}

type InsertStatement struct {
	table token
	// nil when no column list was written
	cols   *[]*token
	values []*[]*expression
}

func (is InsertStatement) GenerateCode() string {
	cols := ""
	if is.cols != nil {
		names := []string{}
		for _, c := range *is.cols {
			names = append(names, quoteIdentifier(c.value))
		}
		cols = fmt.Sprintf(" (%s)", strings.Join(names, ", "))
	}

	rows := []string{}
	for _, row := range is.values {
		values := []string{}
		for _, exp := range *row {
			values = append(values, exp.generateCode())
		}
		rows = append(rows, fmt.Sprintf("(%s)", strings.Join(values, ", ")))
	}
	return fmt.Sprintf("INSERT INTO %s%s VALUES %s;", quoteIdentifier(is.table.value), cols, strings.Join(rows, ", "))
}

type AstKind uint

const (
	SelectKind AstKind = iota
	CreateTableKind
	DropTableKind
	InsertKind
)

type Statement struct {
	SelectStatement      *SelectStatement
	CreateTableStatement *CreateTableStatement
	DropTableStatement   *DropTableStatement
	InsertStatement      *InsertStatement
	Kind                 AstKind
}

func (s Statement) GenerateCode() string {
	switch s.Kind {
	case SelectKind:
		return s.SelectStatement.GenerateCode()
	case CreateTableKind:
		return s.CreateTableStatement.GenerateCode()
	case DropTableKind:
		return s.DropTableStatement.GenerateCode()
	case InsertKind:
		return s.InsertStatement.GenerateCode()
	}

	return "?unknown?"
}

type Ast struct {
	Statements []*Statement
}
