package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// PreviewRows is how many rows Preview returns.
const PreviewRows = 3

// ColumnMapping assigns table headers to the fields of a schema.
//
// A ColumnMapping is not safe for concurrent use; the pipeline session
// guards it with its own lock.
type ColumnMapping struct {
	schema   Schema
	headers  []string
	assigned map[types.Field]string
}

// New returns an empty mapping of schema onto headers.
func New(schema Schema, headers []string) *ColumnMapping {
	return &ColumnMapping{
		schema:   schema,
		headers:  append([]string(nil), headers...),
		assigned: make(map[types.Field]string),
	}
}

// Schema returns the schema being mapped.
func (m *ColumnMapping) Schema() Schema {
	return m.schema
}

// Set assigns header to field. An empty header unsets the field.
func (m *ColumnMapping) Set(field types.Field, header string) error {
	if !m.schema.Has(field) {
		return apperrors.InvalidInput("unknown field %q", field)
	}
	if header == "" {
		delete(m.assigned, field)
		return nil
	}
	if !m.hasHeader(header) {
		return apperrors.InvalidInput("the file has no column named %q", header)
	}
	m.assigned[field] = header
	return nil
}

// Header returns the header assigned to field.
func (m *ColumnMapping) Header(field types.Field) (string, bool) {
	h, ok := m.assigned[field]
	return h, ok
}

// IsComplete reports whether every required field has a header.
func (m *ColumnMapping) IsComplete() bool {
	return len(m.Missing()) == 0
}

// Missing lists the required fields still unassigned, in schema order.
func (m *ColumnMapping) Missing() []types.Field {
	var missing []types.Field
	for _, f := range m.schema.Required() {
		if _, ok := m.assigned[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// Assignments returns a copy of the current field to header assignments.
func (m *ColumnMapping) Assignments() map[types.Field]string {
	out := make(map[types.Field]string, len(m.assigned))
	for f, h := range m.assigned {
		out[f] = h
	}
	return out
}

// Clone returns an independent copy of m.
func (m *ColumnMapping) Clone() *ColumnMapping {
	c := New(m.schema, m.headers)
	for f, h := range m.assigned {
		c.assigned[f] = h
	}
	return c
}

// Suggest assigns every unset field whose aliases match a header. Headers
// and aliases are compared ignoring case, surrounding space, repeated inner
// space, underscores and accents. A header is never given to two fields.
// It returns the fields it assigned.
func (m *ColumnMapping) Suggest() []types.Field {
	taken := make(map[string]bool, len(m.assigned))
	for _, h := range m.assigned {
		taken[h] = true
	}

	normalized := make([]string, len(m.headers))
	for i, h := range m.headers {
		normalized[i] = Normalize(h)
	}

	var suggested []types.Field
	for _, spec := range m.schema.Fields {
		if _, ok := m.assigned[spec.Field]; ok {
			continue
		}
		if h, ok := m.match(spec, normalized, taken); ok {
			m.assigned[spec.Field] = h
			taken[h] = true
			suggested = append(suggested, spec.Field)
		}
	}
	return suggested
}

func (m *ColumnMapping) match(spec FieldSpec, normalized []string, taken map[string]bool) (string, bool) {
	candidates := append([]string{string(spec.Field)}, spec.Aliases...)
	for _, alias := range candidates {
		want := Normalize(alias)
		for i, h := range m.headers {
			if !taken[h] && normalized[i] == want {
				return h, true
			}
		}
	}
	return "", false
}

func (m *ColumnMapping) hasHeader(header string) bool {
	for _, h := range m.headers {
		if h == header {
			return true
		}
	}
	return false
}

// Preview returns up to PreviewRows rows of table. The rows are copies;
// calling Preview again without changing the table returns equal output.
func Preview(table *types.RawTable) []types.Row {
	if table == nil {
		return nil
	}
	n := len(table.Rows)
	if n > PreviewRows {
		n = PreviewRows
	}

	out := make([]types.Row, n)
	for i := 0; i < n; i++ {
		src := table.Rows[i]
		cells := make(map[string]types.Cell, len(table.Headers))
		for _, h := range table.Headers {
			cells[h] = src.Get(h)
		}
		out[i] = types.Row{Number: src.Number, Cells: cells}
	}
	return out
}

// Normalize folds s for header matching: accents removed, lower case,
// underscores and runs of white space collapsed to one space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(strings.ToLower(folded), "_", " ")
	return strings.Join(strings.Fields(folded), " ")
}
