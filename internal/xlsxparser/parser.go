// =============================================================================
// Donation Importer - Workbook Parser
// =============================================================================
//
// This module reads the first worksheet of an Excel workbook into a cell
// grid. Two container formats are supported:
//   - .xlsx (Office Open XML), read with excelize
//   - .xls  (BIFF8 legacy workbooks), read with extrame/xls
//
// CELL TYPES (xlsx):
//   Values are read raw, without number formatting, and the OOXML cell type
//   decides the cell kind:
//
//   | OOXML type           | Cell kind |
//   |----------------------|-----------|
//   | n / unset            | number    |
//   | b                    | boolean   |
//   | s, inlineStr, str, e | string    |
//   | d (ISO 8601 text)    | string    |
//
//   Date-formatted numbers stay numbers; they are date serials and the
//   transformer converts them using the workbook's date system.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// =============================================================================
// XLSX
// =============================================================================

// ParseXLSX reads the first worksheet of an xlsx workbook.
//
// PARAMETERS:
//   - ctx: Checked between rows so a cancelled decode stops early.
//   - data: The raw file content.
//
// RETURNS:
//   - The cell grid of the first sheet and the workbook's date system.
//   - An error if the workbook cannot be opened or has no sheets.
func ParseXLSX(ctx context.Context, data []byte) (*types.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheetName := sheets[0]

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	sheet := &types.Sheet{Rows: make([][]types.Cell, 0, len(rows))}

	props, err := f.GetWorkbookProps()
	if err == nil && props.Date1904 != nil {
		sheet.Date1904 = *props.Date1904
	}

	for rowIndex, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells := make([]types.Cell, len(row))
		for colIndex, value := range row {
			if value == "" {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(colIndex+1, rowIndex+1)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheetName, cellName)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", cellName, err)
			}
			cells[colIndex] = typedCell(cellType, value)
		}
		sheet.Rows = append(sheet.Rows, cells)
	}

	return sheet, nil
}

// typedCell converts a raw xlsx value into a Cell according to its type.
func typedCell(cellType excelize.CellType, value string) types.Cell {
	switch cellType {
	case excelize.CellTypeBool:
		return types.BoolCell(value == "1" || strings.EqualFold(value, "true"))
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return types.NumberCell(n)
		}
		return types.StringCell(value)
	default:
		return types.StringCell(value)
	}
}
