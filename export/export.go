// Package export writes every result set of a batch to a file format.
package export

import (
	"context"
	"io"
	"strings"

	"github.com/eatonphil/resultset"
	"github.com/pkg/errors"
)

// Codec writes the result sets a cursor has not consumed yet.
type Codec interface {
	Write(ctx context.Context, cursor *resultset.Cursor, w io.Writer) error
}

var Formats = []string{"csv", "json", "xlsx"}

// ForFormat returns the codec for a format name such as "csv" or ".json".
func ForFormat(format string) (Codec, error) {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "csv":
		return CSV(), nil
	case "json":
		return JSON(), nil
	case "xlsx":
		return Excel(), nil
	}
	return nil, errors.Errorf("output format %q is not one of %v", format, Formats)
}

// eachResult calls fn once per remaining result set with its schema.
func eachResult(ctx context.Context, cursor *resultset.Cursor, fn func(index int, schema *resultset.Schema) error) error {
	for {
		ok, err := cursor.NextResult(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		schema, err := cursor.CurrentSchema()
		if err != nil {
			return err
		}
		if err := fn(cursor.ResultIndex(), schema); err != nil {
			return err
		}
	}
}

// eachRow calls fn with a copy of every remaining row of the current
// result set.
func eachRow(ctx context.Context, cursor *resultset.Cursor, fn func(row []resultset.Value) error) error {
	for {
		ok, err := cursor.Read(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		row, err := cursor.Row()
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
