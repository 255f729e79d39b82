package report

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/ndireport/internal/model"
)

// Spreadsheet layout.
const (
	// SheetName is the name of the single worksheet.
	SheetName = "Endpoints"

	// HeaderRowHeight is the height of the header row in points.
	HeaderRowHeight = 30

	// MaxColumnWidth caps the width of a column in characters.
	MaxColumnWidth = 50

	// ColumnPadding is added to the longest cell of a column.
	ColumnPadding = 3

	headerFill   = "366092"
	headerFont   = "FFFFFF"
	borderColor  = "D9D9D9"
	stripeFill   = "F2F2F2"
	headerSize   = 11
	dataFontSize = 10
)

// XLSXWriter renders the table as a styled spreadsheet with a frozen
// header row and alternating row shading.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer, opts ...Option) *XLSXWriter {
	return &XLSXWriter{
		baseWriter: newBaseWriter(output, opts),
	}
}

// xlsxStyles holds the style IDs registered in a workbook.
type xlsxStyles struct {
	header int
	data   int
	stripe int
}

// Write renders the table as a workbook with one sheet.
func (w *XLSXWriter) Write(table *model.Table) (int, error) {
	if table == nil {
		table = model.BuildTable(nil)
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook, nothing to flush

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	styles, err := registerStyles(f)
	if err != nil {
		return 0, err
	}

	if err := writeHeader(f, table, styles); err != nil {
		return 0, err
	}
	if err := writeRows(f, table, styles); err != nil {
		return 0, err
	}
	if err := setColumnWidths(f, table); err != nil {
		return 0, err
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("freeze header row: %w", err)
	}

	n, err := f.WriteTo(w.output)
	return int(n), err
}

// registerStyles adds the header, data and striped data styles to the workbook.
func registerStyles(f *excelize.File) (xlsxStyles, error) {
	var styles xlsxStyles
	var err error

	styles.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerFont, Size: headerSize},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: cellBorder(),
	})
	if err != nil {
		return styles, fmt.Errorf("header style: %w", err)
	}

	data := excelize.Style{
		Font: &excelize.Font{Size: dataFontSize},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
			WrapText:   true,
		},
		Border: cellBorder(),
	}
	styles.data, err = f.NewStyle(&data)
	if err != nil {
		return styles, fmt.Errorf("data style: %w", err)
	}

	data.Fill = excelize.Fill{Type: "pattern", Color: []string{stripeFill}, Pattern: 1}
	styles.stripe, err = f.NewStyle(&data)
	if err != nil {
		return styles, fmt.Errorf("striped data style: %w", err)
	}

	return styles, nil
}

func cellBorder() []excelize.Border {
	sides := []string{"left", "top", "right", "bottom"}
	borders := make([]excelize.Border, 0, len(sides))
	for _, side := range sides {
		borders = append(borders, excelize.Border{Type: side, Color: borderColor, Style: 1})
	}
	return borders
}

// writeHeader writes the title-cased column names into row 1.
func writeHeader(f *excelize.File, table *model.Table, styles xlsxStyles) error {
	if err := f.SetRowHeight(SheetName, 1, HeaderRowHeight); err != nil {
		return fmt.Errorf("header row height: %w", err)
	}

	headers := table.Headers()
	for i, title := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, title); err != nil {
			return fmt.Errorf("header %s: %w", cell, err)
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return styleRow(f, 1, len(headers), styles.header)
}

// writeRows writes the data rows starting at row 2. Every second data row
// is shaded.
func writeRows(f *excelize.File, table *model.Table, styles xlsxStyles) error {
	columns := table.ColumnCount()
	for i, row := range table.Rows {
		sheetRow := i + 2
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, sheetRow)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(SheetName, cell, value); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
		if columns == 0 {
			continue
		}

		style := styles.data
		if (i+1)%2 == 0 {
			style = styles.stripe
		}
		if err := styleRow(f, sheetRow, columns, style); err != nil {
			return err
		}
	}
	return nil
}

// styleRow applies style to the first columns cells of row.
func styleRow(f *excelize.File, row, columns, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, row)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, first, last, style); err != nil {
		return fmt.Errorf("style row %d: %w", row, err)
	}
	return nil
}

// setColumnWidths sizes each column to its longest cell or header.
func setColumnWidths(f *excelize.File, table *model.Table) error {
	headers := table.Headers()
	for i := range table.Columns {
		values := make([]string, 0, len(table.Rows)+1)
		values = append(values, headers[i])
		for _, row := range table.Rows {
			values = append(values, row[i])
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, ColumnWidth(values)); err != nil {
			return fmt.Errorf("width of column %s: %w", name, err)
		}
	}
	return nil
}

// ColumnWidth returns the display width for a column holding values:
// the longest value in characters plus padding, capped at MaxColumnWidth.
func ColumnWidth(values []string) float64 {
	longest := 0
	for _, v := range values {
		if n := utf8.RuneCountInString(v); n > longest {
			longest = n
		}
	}
	return float64(min(longest+ColumnPadding, MaxColumnWidth))
}
