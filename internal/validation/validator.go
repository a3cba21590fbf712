// =============================================================================
// Donation Importer - Field Validation
// =============================================================================
//
// This module turns untyped spreadsheet cells into the typed values of an
// import record and reports the first problem it finds for a row.
//
// FIELDS:
//   - donor_name:  text, trimmed, must not be empty when required
//   - amount:      decimal, must be greater than zero
//   - occurred_at: spreadsheet date serial or date text, calendar date only
//   - description: text, trimmed, optional
//
// DATES:
//   Serials are converted with calendar arithmetic on civil.Date so the host
//   timezone never shifts a day. Text dates are parsed in UTC and the
//   calendar date is read from the UTC components.
//
// =============================================================================

package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// Reasons reported by ValidationError.
const (
	ReasonEmptyDonor    = "empty donor name"
	ReasonInvalidAmount = "invalid amount"
	ReasonInvalidDate   = "invalid date"
)

// ValidationError describes the first field of a row that failed.
type ValidationError struct {
	// Row is the 1-based sheet row number.
	Row int

	// Field is the semantic field that failed.
	Field types.Field

	// Value is the raw cell text.
	Value string

	// Reason is one of the Reason constants.
	Reason string
}

// Error renders the message shown to the user, e.g.
// "invalid amount at row 3: abc".
func (e *ValidationError) Error() string {
	if e.Field == types.FieldDonorName {
		return fmt.Sprintf("%s at row %d", e.Reason, e.Row)
	}
	return fmt.Sprintf("%s at row %d: %s", e.Reason, e.Row, e.Value)
}

// ErrorCode reports VALIDATION_ERROR.
func (e *ValidationError) ErrorCode() string {
	return apperrors.CodeValidation
}

// =============================================================================
// AMOUNTS
// =============================================================================

// ParseAmount converts a cell into a decimal amount.
//
// Number cells are used directly. Every other cell is coerced to text,
// trimmed and parsed as a decimal. The result may be zero or negative;
// ValidateAmount enforces positivity.
func ParseAmount(cell types.Cell) (decimal.Decimal, error) {
	if cell.Kind == types.CellNumber {
		if math.IsNaN(cell.Number) || math.IsInf(cell.Number, 0) {
			return decimal.Zero, fmt.Errorf("amount is not a finite number")
		}
		return decimal.NewFromFloat(cell.Number), nil
	}

	raw := strings.TrimSpace(cell.String())
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number: %w", raw, err)
	}
	return d, nil
}

// ValidateAmount parses cell and requires a value greater than zero.
func ValidateAmount(cell types.Cell, row int) (decimal.Decimal, error) {
	d, err := ParseAmount(cell)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, &ValidationError{
			Row:    row,
			Field:  types.FieldAmount,
			Value:  cell.String(),
			Reason: ReasonInvalidAmount,
		}
	}
	return d, nil
}

// =============================================================================
// DATES
// =============================================================================

// Serial limits. 2958465 is 9999-12-31 in the 1900 system.
const (
	maxSerial1900 = 2958465
	maxSerial1904 = maxSerial1900 - 1462

	// leapBugSerial is the 1900-02-29 that never existed.
	leapBugSerial = 60
)

var (
	epoch1900 = civil.Date{Year: 1899, Month: time.December, Day: 30}
	epoch1904 = civil.Date{Year: 1904, Month: time.January, Day: 1}
)

// DateFromSerial converts a spreadsheet date serial into a calendar date.
//
// PARAMETERS:
//   - serial: The day count. Any fraction (time of day) is discarded.
//   - date1904: True when the workbook uses the 1904 date system.
//
// RETURNS:
//   - The calendar date.
//   - An error for serials outside the representable range and for the
//     phantom 1900-02-29 (serial 60).
func DateFromSerial(serial float64, date1904 bool) (civil.Date, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return civil.Date{}, fmt.Errorf("serial is not a finite number")
	}
	days := int(math.Floor(serial))

	if date1904 {
		if days < 0 || days > maxSerial1904 {
			return civil.Date{}, fmt.Errorf("serial %d out of range", days)
		}
		return epoch1904.AddDays(days), nil
	}

	switch {
	case days < 1 || days > maxSerial1900:
		return civil.Date{}, fmt.Errorf("serial %d out of range", days)
	case days == leapBugSerial:
		return civil.Date{}, fmt.Errorf("serial %d is 1900-02-29, which does not exist", days)
	case days < leapBugSerial:
		// The 1900 system counts a leap day that never happened, so
		// serials before it are one day behind the epoch arithmetic.
		return epoch1900.AddDays(days + 1), nil
	default:
		return epoch1900.AddDays(days), nil
	}
}

// SerialFromDate is the inverse of DateFromSerial for the 1900 system.
func SerialFromDate(d civil.Date) float64 {
	days := d.DaysSince(epoch1900)
	if days <= leapBugSerial {
		days--
	}
	return float64(days)
}

// ParseDateString parses free-form date text and returns its calendar date.
//
// The text is interpreted in UTC; strings that carry their own offset are
// converted to UTC before the date is taken. Ambiguous numeric dates such as
// 03/04/2024 follow monthFirst, and are retried with day and month swapped
// when the first reading is impossible.
func ParseDateString(s string, monthFirst bool) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("date is empty")
	}

	t, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(monthFirst),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t.UTC()), nil
}

// serialText matches a bare day count as it appears in CSV exports of a
// date column. Eight digits and more are left to the text parser (20240315).
var serialText = regexp.MustCompile(`^[0-9]{1,7}(\.[0-9]+)?$`)

// ParseDate converts a cell into a calendar date. Number cells are date
// serials, and so is string text that is a bare number; other string cells
// are parsed as date text. Anything else is rejected.
func ParseDate(cell types.Cell, date1904, monthFirst bool) (civil.Date, error) {
	switch cell.Kind {
	case types.CellNumber:
		return DateFromSerial(cell.Number, date1904)
	case types.CellString:
		text := strings.TrimSpace(cell.Text)
		if serialText.MatchString(text) {
			serial, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return civil.Date{}, err
			}
			return DateFromSerial(serial, date1904)
		}
		return ParseDateString(text, monthFirst)
	default:
		return civil.Date{}, fmt.Errorf("cell of kind %s is not a date", cell.Kind)
	}
}

// ValidateDate wraps ParseDate failures in a ValidationError for row.
func ValidateDate(cell types.Cell, row int, date1904, monthFirst bool) (civil.Date, error) {
	d, err := ParseDate(cell, date1904, monthFirst)
	if err != nil {
		return civil.Date{}, &ValidationError{
			Row:    row,
			Field:  types.FieldOccurredAt,
			Value:  cell.String(),
			Reason: ReasonInvalidDate,
		}
	}
	return d, nil
}

// =============================================================================
// TEXT FIELDS
// =============================================================================

// ValidateDonorName trims the cell text and rejects an empty name.
func ValidateDonorName(cell types.Cell, row int) (string, error) {
	name := strings.TrimSpace(cell.String())
	if name == "" {
		return "", &ValidationError{
			Row:    row,
			Field:  types.FieldDonorName,
			Value:  cell.String(),
			Reason: ReasonEmptyDonor,
		}
	}
	return name, nil
}

// Text returns the trimmed text of cell.
func Text(cell types.Cell) string {
	return strings.TrimSpace(cell.String())
}
