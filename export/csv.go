package export

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/eatonphil/resultset"
	"github.com/pkg/errors"
)

type csvCodec struct {
	delimiter   rune
	useCRLF     bool
	writeHeader bool
	nullValue   string
}

type CSVOption func(*csvCodec)

func CSV(opts ...CSVOption) *csvCodec {
	c := &csvCodec{
		delimiter:   ',',
		writeHeader: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithDelimiter(delimiter rune) CSVOption {
	return func(c *csvCodec) {
		c.delimiter = delimiter
	}
}

func WithCRLF(useCRLF bool) CSVOption {
	return func(c *csvCodec) {
		c.useCRLF = useCRLF
	}
}

func WithHeader(writeHeader bool) CSVOption {
	return func(c *csvCodec) {
		c.writeHeader = writeHeader
	}
}

func WithNullValue(nullValue string) CSVOption {
	return func(c *csvCodec) {
		c.nullValue = nullValue
	}
}

// Write emits each result set as its own CSV table; tables are separated
// by an empty line.
func (c *csvCodec) Write(ctx context.Context, cursor *resultset.Cursor, w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = c.delimiter
	writer.UseCRLF = c.useCRLF
	defer writer.Flush()

	return eachResult(ctx, cursor, func(index int, schema *resultset.Schema) error {
		if index > 0 {
			writer.Flush()
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}

		if c.writeHeader {
			if err := writer.Write(schema.Names()); err != nil {
				return errors.Wrap(err, "failed to write headers")
			}
		}

		return eachRow(ctx, cursor, func(row []resultset.Value) error {
			record := make([]string, len(row))
			for i, v := range row {
				if v.IsNull() {
					record[i] = c.nullValue
				} else {
					record[i] = v.String()
				}
			}
			return writer.Write(record)
		})
	})
}
