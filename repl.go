package resultset

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
)

// ReplConfig configures RunRepl.
type ReplConfig struct {
	Prompt      string
	HistoryFile string
	// ShowSchema prints each result set's columns before its rows
	ShowSchema bool
	Options    []Option
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	return table
}

func columnFlags(c ColumnDescriptor) string {
	flags := []string{}
	if c.Nullable {
		flags = append(flags, "null")
	} else {
		flags = append(flags, "not null")
	}
	if c.Sparse {
		flags = append(flags, "sparse")
	}
	if c.ColumnSet {
		flags = append(flags, "column set")
	}
	if c.Default != nil {
		flags = append(flags, "default "+c.Default.String())
	}
	return strings.Join(flags, ", ")
}

func typeString(c ColumnDescriptor) string {
	name := c.DatabaseTypeName()
	if p, s, ok := c.DecimalSize(); ok {
		return fmt.Sprintf("%s(%d,%d)", name, p, s)
	}
	if c.Type == TypeXML {
		return name
	}
	if n, ok := c.Length(); ok {
		if n == int64(MaxLength) {
			return name + "(max)"
		}
		return fmt.Sprintf("%s(%d)", name, n)
	}
	if c.Type == TypeDateTime2N {
		return fmt.Sprintf("%s(%d)", name, c.Scale)
	}
	return name
}

func collationString(c ColumnDescriptor) string {
	if c.Collation.IsZero() {
		return ""
	}
	return c.Collation.String()
}

func printSchema(out io.Writer, schema *Schema) {
	table := newTable(out, []string{"#", "Column", "Type", "Collation", "Attributes"})
	rows := [][]string{}
	for _, c := range schema.Columns() {
		rows = append(rows, []string{fmt.Sprint(c.Ordinal), c.Name, typeString(c), collationString(c), columnFlags(c)})
	}
	table.AppendBulk(rows)
	table.Render()
}

// PrintBatch runs a batch on b and renders every result set it produces
// as a table on out.
func PrintBatch(ctx context.Context, b Backend, out io.Writer, source string, showSchema bool, options ...Option) error {
	cursor, err := BeginBatch(ctx, b.Execute(ctx, source), options...)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for {
		ok, err := cursor.NextResult(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		schema, err := cursor.CurrentSchema()
		if err != nil {
			return err
		}
		if showSchema {
			printSchema(out, schema)
		}

		rows := [][]string{}
		for {
			ok, err := cursor.Read(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}

			values, err := cursor.Row()
			if err != nil {
				return err
			}
			row := make([]string, len(values))
			for i, v := range values {
				row[i] = v.String()
			}
			rows = append(rows, row)
		}

		table := newTable(out, schema.Names())
		table.AppendBulk(rows)
		table.Render()

		if len(rows) == 1 {
			fmt.Fprintln(out, "(1 row)")
		} else {
			fmt.Fprintf(out, "(%d rows)\n", len(rows))
		}
	}

	if cursor.ResultIndex() < 0 {
		fmt.Fprintln(out, "ok")
	}
	return nil
}

func debugTable(out io.Writer, b Backend, name string) {
	// psql behavior is to display all if no name is specified.
	if name == "" {
		debugTables(out, b)
		return
	}

	var tm *TableMetadata
	for _, t := range b.GetTables() {
		if strings.EqualFold(t.Name, name) {
			t := t
			tm = &t
		}
	}

	if tm == nil {
		fmt.Fprintf(out, "Did not find any relation named \"%s\".\n", name)
		return
	}

	fmt.Fprintf(out, "Table \"%s\"\n", tm.Name)

	table := newTable(out, []string{"Column", "Type", "Collation", "Attributes"})
	rows := [][]string{}
	for _, c := range tm.Columns {
		rows = append(rows, []string{c.Name, typeString(c), collationString(c), columnFlags(c)})
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintln(out, "")
}

func debugTables(out io.Writer, b Backend) {
	tables := b.GetTables()
	if len(tables) == 0 {
		fmt.Fprintln(out, "Did not find any relations.")
		return
	}

	fmt.Fprintln(out, "List of relations")

	table := newTable(out, []string{"Name", "Type", "Rows"})
	rows := [][]string{}
	for _, t := range tables {
		rows = append(rows, []string{t.Name, "table", fmt.Sprint(t.Rows)})
	}
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintln(out, "")
}

func RunRepl(b Backend, cfg ReplConfig) error {
	if cfg.Prompt == "" {
		cfg.Prompt = "# "
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer l.Close()

	out := l.Stdout()
	showSchema := cfg.ShowSchema

	fmt.Fprintln(out, "Welcome to resultset.")
repl:
	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue repl
			}
		} else if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(out, "Error while reading line:", err)
			continue repl
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue repl
		case trimmed == "quit" || trimmed == "exit" || trimmed == "\\q":
			break repl
		case trimmed == "\\dt":
			debugTables(out, b)
			continue repl
		case trimmed == "\\schema":
			showSchema = !showSchema
			fmt.Fprintf(out, "Schema display is %s.\n", map[bool]string{true: "on", false: "off"}[showSchema])
			continue repl
		case strings.HasPrefix(trimmed, "\\d"):
			debugTable(out, b, strings.TrimSpace(trimmed[len("\\d"):]))
			continue repl
		case strings.HasPrefix(trimmed, "\\p"):
			ast, err := Parse(strings.TrimSpace(trimmed[len("\\p"):]))
			if err != nil {
				fmt.Fprintln(out, "Error while parsing:", err)
				continue repl
			}
			for _, stmt := range ast.Statements {
				fmt.Fprintln(out, stmt.GenerateCode())
			}
			continue repl
		}

		if err := PrintBatch(context.Background(), b, out, line, showSchema, cfg.Options...); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}

	return nil
}
