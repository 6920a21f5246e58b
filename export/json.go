package export

import (
	"context"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/eatonphil/resultset"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonCodec struct {
	newlineDelimited bool
}

type JSONOption func(*jsonCodec)

func JSON(opts ...JSONOption) *jsonCodec {
	c := &jsonCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithNewlineDelimited writes one object per row, tagged with the index of
// its result set, instead of one document for the batch.
func WithNewlineDelimited(isNewlineDelimited bool) JSONOption {
	return func(c *jsonCodec) {
		c.newlineDelimited = isNewlineDelimited
	}
}

type jsonColumn struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Sparse    bool   `json:"sparse,omitempty"`
	ColumnSet bool   `json:"column_set,omitempty"`
}

type jsonResult struct {
	Columns []jsonColumn     `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type jsonLine struct {
	Result int            `json:"result"`
	Row    map[string]any `json:"row"`
}

func jsonValue(v resultset.Value) any {
	if t := v.AsTime(); t != nil {
		return t.Format(time.RFC3339Nano)
	}
	return v.Interface()
}

func rowObject(names []string, row []resultset.Value) map[string]any {
	obj := make(map[string]any, len(row))
	for i, v := range row {
		obj[names[i]] = jsonValue(v)
	}
	return obj
}

func (c *jsonCodec) Write(ctx context.Context, cursor *resultset.Cursor, w io.Writer) error {
	results := []jsonResult{}
	stream := json.NewEncoder(w)

	err := eachResult(ctx, cursor, func(index int, schema *resultset.Schema) error {
		names := schema.Names()
		result := jsonResult{Rows: []map[string]any{}}
		for _, col := range schema.Columns() {
			result.Columns = append(result.Columns, jsonColumn{
				Name:      col.Name,
				Type:      col.DatabaseTypeName(),
				Nullable:  col.Nullable,
				Sparse:    col.Sparse,
				ColumnSet: col.ColumnSet,
			})
		}

		err := eachRow(ctx, cursor, func(row []resultset.Value) error {
			if c.newlineDelimited {
				return stream.Encode(jsonLine{Result: index, Row: rowObject(names, row)})
			}
			result.Rows = append(result.Rows, rowObject(names, row))
			return nil
		})
		results = append(results, result)
		return err
	})
	if err != nil || c.newlineDelimited {
		return err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
