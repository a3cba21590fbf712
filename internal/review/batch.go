// =============================================================================
// Donation Importer - Review Editor
// =============================================================================
//
// Batch holds the transformed records while the user reviews them. Every
// edit returns a new Batch and leaves the receiver untouched, so a view
// handed out earlier never changes under its reader.
//
// Edits only check that a value fits the record type. An amount of 0 is
// accepted here; the donations service is the one that rejects it.
//
// =============================================================================

package review

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// Batch is an immutable, index-addressed list of import records.
type Batch struct {
	records []types.ImportRecord
}

// NewBatch copies records into a Batch.
func NewBatch(records []types.ImportRecord) Batch {
	return Batch{records: append([]types.ImportRecord(nil), records...)}
}

// Len returns the number of records.
func (b Batch) Len() int {
	return len(b.records)
}

// At returns the record at index.
func (b Batch) At(index int) (types.ImportRecord, error) {
	if err := b.check(index); err != nil {
		return types.ImportRecord{}, err
	}
	return b.records[index], nil
}

// Records returns a copy of the records in order.
func (b Batch) Records() types.ImportBatch {
	return append(types.ImportBatch(nil), b.records...)
}

// Edit returns a copy of b with one field of one record replaced.
//
// PARAMETERS:
//   - index: Position of the record, 0-based.
//   - field: The field to replace.
//   - value: The new value. Amounts must parse as a decimal and dates as
//     YYYY-MM-DD; text fields are trimmed.
//
// RETURNS:
//   - The edited batch, or b itself together with an INVALID_INPUT error.
func (b Batch) Edit(index int, field types.Field, value string) (Batch, error) {
	if err := b.check(index); err != nil {
		return b, err
	}

	rec := b.records[index]
	value = strings.TrimSpace(value)

	switch field {
	case types.FieldAmount:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return b, apperrors.InvalidInput("%q is not a valid amount", value)
		}
		rec.Amount = d
	case types.FieldOccurredAt:
		d, err := civil.ParseDate(value)
		if err != nil {
			return b, apperrors.InvalidInput("%q is not a date in YYYY-MM-DD form", value)
		}
		rec.OccurredAt = d
	case types.FieldDescription:
		rec.Description = value
	case types.FieldDonorName:
		rec.DonorName = value
	default:
		return b, apperrors.InvalidInput("unknown field %q", field)
	}

	out := NewBatch(b.records)
	out.records[index] = rec
	return out, nil
}

// Remove returns a copy of b without the record at index. Later records
// move down by one and keep their relative order.
func (b Batch) Remove(index int) (Batch, error) {
	if err := b.check(index); err != nil {
		return b, err
	}
	out := make([]types.ImportRecord, 0, len(b.records)-1)
	out = append(out, b.records[:index]...)
	out = append(out, b.records[index+1:]...)
	return Batch{records: out}, nil
}

func (b Batch) check(index int) error {
	if index < 0 || index >= len(b.records) {
		return apperrors.InvalidInput("record %d does not exist (batch has %d records)", index, len(b.records))
	}
	return nil
}
