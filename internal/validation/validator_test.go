package validation

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		cell    types.Cell
		want    string
		wantErr bool
	}{
		{"number cell", types.NumberCell(50000), "50000", false},
		{"fractional number", types.NumberCell(12.5), "12.5", false},
		{"numeric text", types.StringCell(" 50000 "), "50000", false},
		{"decimal text", types.StringCell("1250.75"), "1250.75", false},
		{"negative text", types.StringCell("-5"), "-5", false},
		{"letters", types.StringCell("abc"), "", true},
		{"trailing letters", types.StringCell("12abc"), "", true},
		{"empty", types.EmptyCell(), "", true},
		{"boolean", types.BoolCell(true), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.cell)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestValidateAmountRejectsNonPositive(t *testing.T) {
	for _, raw := range []string{"0", "-5", "-0.01", "abc", ""} {
		_, err := ValidateAmount(types.StringCell(raw), 4)
		require.Error(t, err, raw)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, types.FieldAmount, vErr.Field)
		assert.Equal(t, 4, vErr.Row)
		assert.Equal(t, "invalid amount at row 4: "+raw, vErr.Error())
		assert.Equal(t, apperrors.CodeValidation, apperrors.GetCode(err))
	}
}

func TestDateFromSerial(t *testing.T) {
	tests := []struct {
		serial   float64
		date1904 bool
		want     string
		wantErr  bool
	}{
		{serial: 45292, want: "2024-01-01"},
		{serial: 45292.75, want: "2024-01-01"},
		{serial: 1, want: "1900-01-01"},
		{serial: 59, want: "1900-02-28"},
		{serial: 60, wantErr: true},
		{serial: 61, want: "1900-03-01"},
		{serial: 25569, want: "1970-01-01"},
		{serial: 2958465, want: "9999-12-31"},
		{serial: 2958466, wantErr: true},
		{serial: 0, wantErr: true},
		{serial: -3, wantErr: true},
		{serial: 0, date1904: true, want: "1904-01-01"},
		{serial: 43830, date1904: true, want: "2024-01-01"},
	}

	for _, tt := range tests {
		got, err := DateFromSerial(tt.serial, tt.date1904)
		if tt.wantErr {
			assert.Error(t, err, "serial %v", tt.serial)
			continue
		}
		require.NoError(t, err, "serial %v", tt.serial)
		assert.Equal(t, tt.want, got.String(), "serial %v", tt.serial)
	}
}

func TestParseDateString(t *testing.T) {
	tests := []struct {
		in         string
		monthFirst bool
		want       string
	}{
		{"2024-03-15", true, "2024-03-15"},
		{" 2024-03-15 ", true, "2024-03-15"},
		{"2024-03-15T23:30:00Z", true, "2024-03-15"},
		{"2024-03-15T23:30:00-05:00", true, "2024-03-16"},
		{"03/04/2024", true, "2024-03-04"},
		{"03/04/2024", false, "2024-04-03"},
		{"25/12/2024", true, "2024-12-25"},
		{"March 15, 2024", true, "2024-03-15"},
	}

	for _, tt := range tests {
		got, err := ParseDateString(tt.in, tt.monthFirst)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"", "not a date", "2024-13-45"} {
		_, err := ParseDateString(bad, true)
		assert.Error(t, err, bad)
	}
}

func TestParseDateSerialText(t *testing.T) {
	tests := []struct {
		in       string
		date1904 bool
		want     string
	}{
		{"45292", false, "2024-01-01"},
		{" 45292 ", false, "2024-01-01"},
		{"45292.5", false, "2024-01-01"},
		{"1", false, "1900-01-01"},
		{"43830", true, "2024-01-01"},
		{"20240315", false, "2024-03-15"},
	}
	for _, tt := range tests {
		got, err := ParseDate(types.StringCell(tt.in), tt.date1904, true)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"0", "60", "2958466"} {
		_, err := ParseDate(types.StringCell(bad), false, true)
		assert.Error(t, err, bad)
	}
}

func TestParseDateRejectsOtherKinds(t *testing.T) {
	_, err := ParseDate(types.EmptyCell(), false, true)
	assert.Error(t, err)

	_, err = ParseDate(types.BoolCell(true), false, true)
	assert.Error(t, err)

	_, err = ValidateDate(types.StringCell("mañana"), 7, false, true)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invalid date at row 7: mañana", vErr.Error())
}

// Dates from 1970 through 2100 survive both the serial and the text path,
// whatever the local timezone is.
func TestDateRoundTripIgnoresLocalZone(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })

	for _, zone := range []*time.Location{
		time.FixedZone("east", 14*3600),
		time.FixedZone("west", -12*3600),
	} {
		time.Local = zone

		start := civil.Date{Year: 1970, Month: time.January, Day: 1}
		end := civil.Date{Year: 2100, Month: time.December, Day: 31}
		for d := start; !d.After(end); d = d.AddDays(17) {
			fromSerial, err := DateFromSerial(SerialFromDate(d), false)
			require.NoError(t, err)
			require.Equal(t, d, fromSerial, "serial path in %s", zone)

			fromText, err := ParseDateString(d.String(), true)
			require.NoError(t, err)
			require.Equal(t, d, fromText, "text path in %s", zone)
		}
	}
}

func TestSerialFromDateEarly1900(t *testing.T) {
	for _, serial := range []float64{1, 30, 59, 61, 62} {
		d, err := DateFromSerial(serial, false)
		require.NoError(t, err)
		assert.Equal(t, serial, SerialFromDate(d))
	}
}

func TestValidateDonorName(t *testing.T) {
	name, err := ValidateDonorName(types.StringCell("  Juan "), 2)
	require.NoError(t, err)
	assert.Equal(t, "Juan", name)

	_, err = ValidateDonorName(types.StringCell("   "), 5)
	require.Error(t, err)
	assert.Equal(t, "empty donor name at row 5", err.Error())
}
