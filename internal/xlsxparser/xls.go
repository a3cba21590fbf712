package xlsxparser

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// ParseXLS reads the first worksheet of a legacy BIFF workbook.
//
// The legacy reader only exposes formatted text, so a value that parses as
// a number becomes a number cell and everything else a string cell. A panic
// inside the reader, which happens on some corrupt files, is returned as an
// error.
func ParseXLS(ctx context.Context, data []byte) (sheet *types.Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheet, err = nil, fmt.Errorf("corrupt xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet = &types.Sheet{}
	for i := 0; i <= int(ws.MaxRow); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := sheetRow(ws, i)
		if row == nil {
			sheet.Rows = append(sheet.Rows, nil)
			continue
		}

		last := row.LastCol()
		cells := make([]types.Cell, 0, last)
		for col := 0; col < last; col++ {
			if col < row.FirstCol() {
				cells = append(cells, types.EmptyCell())
				continue
			}
			cells = append(cells, legacyCell(row.Col(col)))
		}
		sheet.Rows = append(sheet.Rows, cells)
	}

	return sheet, nil
}

// sheetRow returns row i, or nil for a row the file never wrote.
// WorkSheet.Row panics on those.
func sheetRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

func legacyCell(value string) types.Cell {
	value = strings.TrimSpace(value)
	if value == "" {
		return types.EmptyCell()
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return types.NumberCell(n)
	}
	return types.StringCell(value)
}
