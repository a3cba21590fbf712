// =============================================================================
// Donation Importer - Row Transformer
// =============================================================================
//
// The transformer converts every data row of a RawTable into an
// ImportRecord under a completed ColumnMapping.
//
// FIELD ORDER (per row):
//   1. donor_name, when the schema has it
//   2. amount
//   3. occurred_at
//   4. description, when mapped
//
// MODES:
//   strict: the first failing row aborts the transform and no records are
//           returned.
//   skip:   failing rows are left out and reported next to the records.
//
// =============================================================================

package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/mapping"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/validation"
)

// Mode selects how the transformer treats a failing row.
type Mode int

const (
	// ModeStrict aborts on the first failing row.
	ModeStrict Mode = iota
	// ModeSkip drops failing rows and reports them.
	ModeSkip
)

func (m Mode) String() string {
	if m == ModeSkip {
		return config.ModeSkip
	}
	return config.ModeStrict
}

// ParseMode converts a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.ModeStrict:
		return ModeStrict, nil
	case config.ModeSkip:
		return ModeSkip, nil
	}
	return ModeStrict, apperrors.InvalidInput("unknown transform mode %q (expected strict or skip)", s)
}

// Transformer converts raw rows into import records.
type Transformer struct {
	mode       Mode
	monthFirst bool
	logger     *zap.Logger
}

// NewTransformer returns a transformer. A nil logger discards output.
func NewTransformer(mode Mode, monthFirst bool, logger *zap.Logger) *Transformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{mode: mode, monthFirst: monthFirst, logger: logger}
}

// Mode returns the transformer's mode.
func (t *Transformer) Mode() Mode {
	return t.mode
}

// TransformResult is the output of a transform.
type TransformResult struct {
	Records types.ImportBatch

	// Skipped lists the rows left out in skip mode, in row order.
	Skipped []*validation.ValidationError
}

// Transform converts every row of table.
//
// PARAMETERS:
//   - table: The decoded spreadsheet.
//   - m: A mapping for which IsComplete is true.
//
// RETURNS:
//   - The records in row order, and in skip mode the rejected rows.
//   - INVALID_INPUT when the mapping is incomplete. In strict mode, the
//     *validation.ValidationError of the first failing row.
func (t *Transformer) Transform(table *types.RawTable, m *mapping.ColumnMapping) (TransformResult, error) {
	if !m.IsComplete() {
		return TransformResult{}, MissingFieldsError(m.Missing())
	}

	var result TransformResult
	records := make(types.ImportBatch, 0, len(table.Rows))

	for _, row := range table.Rows {
		rec, err := t.transformRow(table, m, row)
		if err != nil {
			vErr, ok := err.(*validation.ValidationError)
			if !ok || t.mode == ModeStrict {
				return TransformResult{}, err
			}
			result.Skipped = append(result.Skipped, vErr)
			continue
		}
		records = append(records, rec)
	}

	result.Records = t.dropNonPositive(records)

	t.logger.Debug("transformed rows",
		zap.String("file", table.Source),
		zap.Int("rows", len(table.Rows)),
		zap.Int("records", len(result.Records)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Stringer("mode", t.mode),
	)
	return result, nil
}

// transformRow builds one record, stopping at the first failing field.
func (t *Transformer) transformRow(table *types.RawTable, m *mapping.ColumnMapping, row types.Row) (types.ImportRecord, error) {
	var rec types.ImportRecord
	schema := m.Schema()

	if schema.Has(types.FieldDonorName) {
		cell := cellFor(m, row, types.FieldDonorName)
		if schema.IsRequired(types.FieldDonorName) {
			name, err := validation.ValidateDonorName(cell, row.Number)
			if err != nil {
				return rec, err
			}
			rec.DonorName = name
		} else {
			rec.DonorName = validation.Text(cell)
		}
	}

	amount, err := validation.ValidateAmount(cellFor(m, row, types.FieldAmount), row.Number)
	if err != nil {
		return rec, err
	}
	rec.Amount = amount

	date, err := validation.ValidateDate(cellFor(m, row, types.FieldOccurredAt), row.Number, table.Date1904, t.monthFirst)
	if err != nil {
		return rec, err
	}
	rec.OccurredAt = date

	rec.Description = validation.Text(cellFor(m, row, types.FieldDescription))
	return rec, nil
}

// dropNonPositive is a second guard on the amount. ValidateAmount already
// rejects these, so anything removed here is logged, not reported.
func (t *Transformer) dropNonPositive(records types.ImportBatch) types.ImportBatch {
	kept := records[:0]
	for _, rec := range records {
		if !rec.Amount.IsPositive() {
			t.logger.Debug("dropping record with non-positive amount", zap.String("amount", rec.Amount.String()))
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// cellFor returns the cell mapped to field, or an empty cell when the field
// is not mapped.
func cellFor(m *mapping.ColumnMapping, row types.Row, field types.Field) types.Cell {
	header, ok := m.Header(field)
	if !ok {
		return types.EmptyCell()
	}
	return row.Get(header)
}

// MissingFieldsError reports the required fields that have no column.
func MissingFieldsError(missing []types.Field) error {
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	return apperrors.InvalidInput("select a column for every required field (missing: %s)", strings.Join(names, ", "))
}

// describeSkipped renders skipped rows for logs and the CLI.
func describeSkipped(skipped []*validation.ValidationError) []string {
	out := make([]string, len(skipped))
	for i, s := range skipped {
		out[i] = fmt.Sprint(s)
	}
	return out
}
