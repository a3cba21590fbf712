// =============================================================================
// Donation Importer - Spreadsheet Decoder
// =============================================================================
//
// The decoder turns one uploaded file into a RawTable:
//   1. Check the extension (.xlsx, .xls, .csv) and the size limit
//   2. Sniff the content so a renamed file is not handed to the wrong reader
//   3. Read the first sheet into a cell grid (csvparser / xlsxparser)
//   4. Take row 1 as headers, clean them and key every data row by them
//   5. Drop fully blank rows and fail when no data row is left
//
// Every failure is an AppError with code DECODE_ERROR or EMPTY_DATA.
//
// =============================================================================

package decoder

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/csvparser"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/xlsxparser"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatCSV  = "csv"
)

// Container MIME types checked by sniffing.
const (
	mimeZip = "application/zip"
	mimeOLE = "application/x-ole-storage"
)

// DefaultMaxFileSize is the upload limit used when none is configured.
const DefaultMaxFileSize int64 = 50 << 20

// Decoder reads uploaded spreadsheets into RawTables.
type Decoder struct {
	maxFileSize int64
	csv         csvparser.Options
	logger      *zap.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMaxFileSize sets the size limit in bytes.
func WithMaxFileSize(n int64) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// WithCSV sets the CSV delimiter and encoding.
func WithCSV(opts csvparser.Options) Option {
	return func(d *Decoder) { d.csv = opts }
}

// New returns a Decoder with the given options.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		maxFileSize: DefaultMaxFileSize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromConfig builds a Decoder from the decode settings.
func FromConfig(cfg config.DecodeSettings, logger *zap.Logger) *Decoder {
	return New(
		WithLogger(logger),
		WithMaxFileSize(cfg.MaxFileSize),
		WithCSV(csvparser.Options{Delimiter: cfg.CSVDelimiter, Encoding: cfg.CSVEncoding}),
	)
}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	case ".csv":
		return FormatCSV, true
	}
	return "", false
}

// Decode reads the first sheet of the named file content.
//
// PARAMETERS:
//   - ctx: Cancels a long decode. A cancelled decode returns DECODE_ERROR.
//   - name: The uploaded file name; its extension selects the reader.
//   - data: The file content.
//
// RETURNS:
//   - The RawTable with cleaned headers and non-blank data rows.
//   - DECODE_ERROR for unsupported, oversize, mislabelled or corrupt files,
//     EMPTY_DATA when there is no data row after the header.
func (d *Decoder) Decode(ctx context.Context, name string, data []byte) (*types.RawTable, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, apperrors.Decode(nil, "unsupported file type %q: use .xlsx, .xls or .csv", filepath.Ext(name))
	}
	if int64(len(data)) > d.maxFileSize {
		return nil, apperrors.Decode(nil, "file is larger than the %d MB limit", d.maxFileSize>>20)
	}
	if err := checkContent(format, data); err != nil {
		return nil, err
	}

	var (
		sheet *types.Sheet
		err   error
	)
	switch format {
	case FormatXLSX:
		sheet, err = xlsxparser.ParseXLSX(ctx, data)
	case FormatXLS:
		sheet, err = xlsxparser.ParseXLS(ctx, data)
	default:
		sheet, err = csvparser.Parse(ctx, data, d.csv)
	}
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return nil, apperrors.Decode(err, "reading the file took too long")
		}
		return nil, apperrors.Decode(err, "the file could not be read as %s", strings.ToUpper(format))
	}

	table, err := buildTable(ctx, sheet)
	if err != nil {
		return nil, err
	}
	table.Source = filepath.Base(name)
	table.Format = format

	d.logger.Debug("decoded spreadsheet",
		zap.String("file", table.Source),
		zap.String("format", format),
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)),
		zap.Bool("date1904", table.Date1904),
	)
	return table, nil
}

// checkContent compares the sniffed container with the extension.
func checkContent(format string, data []byte) error {
	detected := mimetype.Detect(data)

	switch format {
	case FormatXLSX:
		if !descendsFrom(detected, mimeZip) {
			return apperrors.Decode(nil, "file has a .xlsx extension but contains %s", detected.String())
		}
	case FormatXLS:
		if !descendsFrom(detected, mimeOLE) {
			return apperrors.Decode(nil, "file has a .xls extension but contains %s", detected.String())
		}
	case FormatCSV:
		if descendsFrom(detected, mimeZip) || descendsFrom(detected, mimeOLE) {
			return apperrors.Decode(nil, "file has a .csv extension but contains a binary workbook")
		}
	}
	return nil
}

func descendsFrom(m *mimetype.MIME, want string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(want) {
			return true
		}
	}
	return false
}

// =============================================================================
// TABLE CONSTRUCTION
// =============================================================================

// buildTable resolves the header row and keys the data rows by it.
func buildTable(ctx context.Context, sheet *types.Sheet) (*types.RawTable, error) {
	if len(sheet.Rows) == 0 || isRowEmpty(sheet.Rows[0]) {
		return nil, apperrors.Decode(nil, "the first row must contain the column headers")
	}

	headers := cleanHeaders(sheet.Rows[0])
	table := &types.RawTable{
		Headers:  headers,
		Date1904: sheet.Date1904,
	}

	for i := 1; i < len(sheet.Rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Decode(err, "reading the file took too long")
		}

		raw := sheet.Rows[i]
		if len(raw) > len(headers) {
			raw = raw[:len(headers)]
		}
		if isRowEmpty(raw) {
			continue
		}

		cells := make(map[string]types.Cell, len(headers))
		for col, header := range headers {
			if col < len(raw) {
				cells[header] = raw[col]
			} else {
				cells[header] = types.EmptyCell()
			}
		}
		table.Rows = append(table.Rows, types.Row{Number: i + 1, Cells: cells})
	}

	if len(table.Rows) == 0 {
		return nil, apperrors.EmptyData()
	}
	return table, nil
}

// cleanHeaders trims header text, names empty headers after their column
// and makes duplicates unique with a " (n)" suffix.
func cleanHeaders(row []types.Cell) []string {
	// Trailing blank header cells do not make columns.
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1].String()) == "" {
		n--
	}

	cleaned := make([]string, n)
	seen := make(map[string]int, n)
	for i := 0; i < n; i++ {
		header := strings.TrimSpace(row[i].String())
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}

		base := header
		for seen[header] > 0 {
			seen[base]++
			header = fmt.Sprintf("%s (%d)", base, seen[base])
		}
		seen[header]++
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []types.Cell) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}
