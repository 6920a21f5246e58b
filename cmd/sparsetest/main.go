package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/eatonphil/resultset"
)

var inserts = 1000
var columns = 1024
var withColumnSet = false

func execute(b resultset.Backend, source string) *resultset.Cursor {
	ctx := context.Background()
	cursor, err := resultset.BeginBatch(ctx, b.Execute(ctx, source))
	if err != nil {
		panic(err)
	}
	return cursor
}

func doCreate(b resultset.Backend) {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE wide (id INT NOT NULL")
	for i := 0; i < columns; i++ {
		fmt.Fprintf(&sb, ", c%d INT SPARSE NULL", i)
	}
	if withColumnSet {
		sb.WriteString(", cs XML COLUMN_SET FOR ALL_SPARSE_COLUMNS")
	}
	sb.WriteString(")")

	cursor := execute(b, sb.String())
	defer cursor.Close()
	if err := cursor.Drain(context.Background()); err != nil {
		panic(err)
	}
}

func doInsert(b resultset.Backend) {
	source := rand.NewSource(time.Now().UnixNano())
	r := rand.New(source)
	for i := 0; i < inserts; i++ {
		cursor := execute(b, fmt.Sprintf("INSERT INTO wide (id, c%d) VALUES (%d, %d)", r.Intn(columns), i, i))
		if err := cursor.Drain(context.Background()); err != nil {
			panic(err)
		}
		cursor.Close()
	}
}

func doSelect(b resultset.Backend) {
	ctx := context.Background()
	cursor := execute(b, "SELECT * FROM wide")
	defer cursor.Close()

	ok, err := cursor.NextResult(ctx)
	if err != nil || !ok {
		panic(fmt.Sprintf("Expected a result set, got: %v", err))
	}

	schema, err := cursor.CurrentSchema()
	if err != nil {
		panic(err)
	}
	if _, ok := schema.ColumnSetIndex(); ok != withColumnSet {
		panic(fmt.Sprintf("Bad column set presence: %t", ok))
	}

	rows := 0
	for {
		ok, err := cursor.Read(ctx)
		if err != nil {
			panic(err)
		}
		if !ok {
			break
		}

		id, err := cursor.Value(0)
		if err != nil {
			panic(err)
		}
		if int(*id.AsInt()) != rows {
			panic(fmt.Sprintf("Bad row, got: %s", id))
		}
		rows++
	}

	if rows != inserts {
		panic(fmt.Sprintf("Expected %d rows, got %d", inserts, rows))
	}
}

func perf(name string, b resultset.Backend, cb func(b resultset.Backend)) {
	start := time.Now()
	fmt.Println("Starting", name)
	cb(b)
	fmt.Printf("Finished %s: %f seconds\n", name, time.Since(start).Seconds())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("Alloc = %d MiB\n\n", m.Alloc/1024/1024)
}

func main() {
	mb := resultset.NewMemoryBackend()

	for i, arg := range os.Args {
		if arg == "--with-column-set" {
			withColumnSet = true
		}

		if arg == "--inserts" && i+1 < len(os.Args) {
			inserts, _ = strconv.Atoi(os.Args[i+1])
		}

		if arg == "--columns" && i+1 < len(os.Args) {
			columns, _ = strconv.Atoi(os.Args[i+1])
		}
	}

	columnSetString := " and a column set"
	if !withColumnSet {
		columnSetString = ""
	}
	fmt.Printf("Inserting %d rows into %d sparse columns%s\n", inserts, columns, columnSetString)

	perf("CREATE TABLE", mb, doCreate)
	perf("INSERT", mb, doInsert)
	perf("SELECT", mb, doSelect)
}
