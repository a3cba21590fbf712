// =============================================================================
// Donation Importer - Shared Types
// =============================================================================
//
// This package contains the types shared by the decoder, the column mapper,
// the row transformer, the review editor and the collector client. Keeping
// them here avoids import cycles between those packages.
//
// =============================================================================

package types

import (
	"encoding/json"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CELLS
// =============================================================================

// CellKind is the dynamic type of a spreadsheet cell.
type CellKind int

const (
	// CellEmpty is a missing or blank cell.
	CellEmpty CellKind = iota
	// CellString holds text.
	CellString
	// CellNumber holds a numeric value. Date-formatted cells in binary
	// workbooks arrive as numbers (date serials).
	CellNumber
	// CellBool holds a boolean.
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "boolean"
	default:
		return "empty"
	}
}

// Cell is one untyped value read from a spreadsheet.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
}

// EmptyCell returns a blank cell.
func EmptyCell() Cell { return Cell{} }

// StringCell returns a text cell.
func StringCell(s string) Cell { return Cell{Kind: CellString, Text: s} }

// NumberCell returns a numeric cell.
func NumberCell(n float64) Cell { return Cell{Kind: CellNumber, Number: n} }

// BoolCell returns a boolean cell.
func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty || (c.Kind == CellString && c.Text == "")
}

// String coerces the cell to text the way a spreadsheet does: numbers use
// their shortest decimal form and blanks become "".
func (c Cell) String() string {
	switch c.Kind {
	case CellString:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}

// =============================================================================
// RAW TABLE
// =============================================================================

// Sheet is the cell grid of a worksheet as read by a parser, before the
// header row is resolved. Rows[i] is sheet row i+1; rows may be ragged.
type Sheet struct {
	Rows     [][]Cell
	Date1904 bool
}

// Row is one data row of a RawTable.
type Row struct {
	// Number is the 1-based row number in the source sheet. The header is
	// row 1, so the first data row is row 2.
	Number int

	// Cells maps every header of the table to the cell found under it.
	Cells map[string]Cell
}

// Get returns the cell under header, or an empty cell.
func (r Row) Get(header string) Cell {
	return r.Cells[header]
}

// RawTable is the decoded content of the first sheet of an uploaded file.
type RawTable struct {
	// Headers are the cleaned, unique column names from the header row.
	Headers []string

	// Rows are the non-blank data rows in sheet order.
	Rows []Row

	// Source is the uploaded file name.
	Source string

	// Format is "xlsx", "xls" or "csv".
	Format string

	// Date1904 is set when the workbook counts date serials from 1904.
	Date1904 bool
}

// HasHeader reports whether header is one of the table's columns.
func (t *RawTable) HasHeader(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// =============================================================================
// SEMANTIC FIELDS
// =============================================================================

// Field names a semantic column of an import record.
type Field string

const (
	FieldAmount      Field = "amount"
	FieldOccurredAt  Field = "occurred_at"
	FieldDescription Field = "description"
	FieldDonorName   Field = "donor_name"
)

// ParseField converts a user-supplied name into a Field. The collector's
// wire name "created_at" is accepted for occurred_at.
func ParseField(s string) (Field, bool) {
	switch s {
	case string(FieldAmount):
		return FieldAmount, true
	case string(FieldOccurredAt), "created_at", "date":
		return FieldOccurredAt, true
	case string(FieldDescription):
		return FieldDescription, true
	case string(FieldDonorName), "donor":
		return FieldDonorName, true
	}
	return "", false
}

// =============================================================================
// IMPORT RECORDS
// =============================================================================

// ImportRecord is one validated row, ready for submission.
type ImportRecord struct {
	Amount      decimal.Decimal
	OccurredAt  civil.Date
	Description string
	DonorName   string
}

// wireRecord is the JSON shape the donations collector expects.
type wireRecord struct {
	Amount      json.Number `json:"amount"`
	CreatedAt   string      `json:"created_at"`
	Description string      `json:"description,omitempty"`
	DonorName   string      `json:"donor_name,omitempty"`
}

// MarshalJSON encodes the record with a numeric amount and the
// occurred_at date under the collector's "created_at" key.
func (r ImportRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRecord{
		Amount:      json.Number(r.Amount.String()),
		CreatedAt:   r.OccurredAt.String(),
		Description: r.Description,
		DonorName:   r.DonorName,
	})
}

// ImportBatch is the ordered set of records pending submission.
type ImportBatch []ImportRecord

// Receipt is the donations service's answer to an accepted batch.
type Receipt struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}
