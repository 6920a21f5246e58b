package export

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/eatonphil/resultset"
)

// Styles are int because excelize.File.NewStyle() returns style index
type Styles struct {
	Number   int
	Decimal  int
	DateTime int
}

func NewStyles(f *excelize.File) (*Styles, error) {
	dateStyle, err := f.NewStyle(&excelize.Style{
		NumFmt: 22,
	})
	if err != nil {
		return nil, err
	}

	numberStyle, err := f.NewStyle(&excelize.Style{
		NumFmt: 1,
	})
	if err != nil {
		return nil, err
	}

	decimalPlaces := 2
	decimalStyle, err := f.NewStyle(&excelize.Style{
		NumFmt:        2,
		DecimalPlaces: &decimalPlaces,
	})
	if err != nil {
		return nil, err
	}

	return &Styles{
		Number:   numberStyle,
		Decimal:  decimalStyle,
		DateTime: dateStyle,
	}, nil
}

type excelCodec struct {
	sheetPrefix string
	tables      bool
}

type ExcelOption func(*excelCodec)

// Excel writes a workbook with one sheet per result set.
func Excel(opts ...ExcelOption) *excelCodec {
	c := &excelCodec{
		sheetPrefix: "Result",
		tables:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithSheetPrefix(prefix string) ExcelOption {
	return func(c *excelCodec) {
		c.sheetPrefix = prefix
	}
}

// WithTables formats each sheet's data range as an Excel table.
func WithTables(enabled bool) ExcelOption {
	return func(c *excelCodec) {
		c.tables = enabled
	}
}

func (c *excelCodec) Write(ctx context.Context, cursor *resultset.Cursor, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := NewStyles(f)
	if err != nil {
		return err
	}

	sheets := 0
	err = eachResult(ctx, cursor, func(index int, schema *resultset.Schema) error {
		sheetName := fmt.Sprintf("%s%d", c.sheetPrefix, index+1)
		if _, err := f.NewSheet(sheetName); err != nil {
			return err
		}
		sheets++

		colsWidth, rows, err := c.writeSheet(ctx, f, sheetName, cursor, schema, styles)
		if err != nil {
			return err
		}

		for i, colWidth := range colsWidth {
			colName, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheetName, colName, colName, min(colWidth+2, 80)); err != nil {
				return err
			}
		}
		if rows > 0 {
			return freezeHeader(f, sheetName)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// A workbook needs at least one sheet, so the default one stays when
	// the batch had no result sets.
	if sheets > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return err
		}
		f.SetActiveSheet(0)
	}

	_, err = f.WriteTo(w)
	return err
}

func (c *excelCodec) writeSheet(
	ctx context.Context, f *excelize.File, sheetName string,
	cursor *resultset.Cursor, schema *resultset.Schema, styles *Styles,
) (map[int]float64, int, error) {
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, 0, err
	}

	columns := schema.Columns()
	headers := make([]any, len(columns))
	colsWidth := make(map[int]float64, len(columns))
	for k, v := range columns {
		headers[k] = v.Name
		colsWidth[k] = float64(len(v.Name))
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return nil, 0, err
	}

	colStyles := make(map[int]int, len(columns))
	for k, v := range columns {
		switch v.Kind() {
		case resultset.IntKind:
			colStyles[k] = styles.Number
		case resultset.FloatKind, resultset.DecimalKind:
			colStyles[k] = styles.Decimal
		case resultset.TimeKind:
			colStyles[k] = styles.DateTime
		}
	}

	rows := 0
	err = eachRow(ctx, cursor, func(row []resultset.Value) error {
		rowData := make([]any, len(row))
		for j, v := range row {
			val := cellValue(v)
			if styleID, ok := colStyles[j]; ok && val != nil {
				rowData[j] = excelize.Cell{
					Value:   val,
					StyleID: styleID,
				}
			} else {
				rowData[j] = val
			}

			if !v.IsNull() {
				colsWidth[j] = max(colsWidth[j], float64(len(v.String())))
			}
		}

		rows++
		cell, _ := excelize.CoordinatesToCellName(1, rows+1)
		return sw.SetRow(cell, rowData)
	})
	if err != nil {
		return nil, 0, err
	}

	if c.tables && rows > 0 && tableHeaders(columns) {
		lastCell, _ := excelize.CoordinatesToCellName(len(columns), rows+1)
		enabled := true
		err = sw.AddTable(&excelize.Table{
			Range:          fmt.Sprintf("A1:%s", lastCell),
			Name:           fmt.Sprintf("Table_%s", sheetName),
			StyleName:      "TableStyleMedium2",
			ShowRowStripes: &enabled,
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return colsWidth, rows, sw.Flush()
}

// tableHeaders reports whether the column names can head an Excel table,
// which needs them non-empty and distinct regardless of case.
func tableHeaders(columns []resultset.ColumnDescriptor) bool {
	seen := map[string]bool{}
	for _, c := range columns {
		key := strings.ToLower(c.Name)
		if c.Name == "" || seen[key] {
			return false
		}
		seen[key] = true
	}
	return true
}

func cellValue(v resultset.Value) any {
	switch v.Kind() {
	case resultset.NullKind:
		return nil
	case resultset.DecimalKind:
		// Spreadsheets hold doubles; text keeps wide decimals exact.
		d := v.AsDecimal()
		if d.Unscaled().BitLen() > 53 {
			return d.String()
		}
		f, _ := new(big.Float).SetInt(d.Unscaled()).Float64()
		return f / math.Pow10(int(d.Scale()))
	case resultset.BinaryKind:
		return v.String()
	}
	return v.Interface()
}

func freezeHeader(f *excelize.File, sheetName string) error {
	return f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
