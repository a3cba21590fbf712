package pipeline

import (
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/mapping"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// View is a snapshot of a session. It shares no memory with the session.
type View struct {
	ID     string `json:"id"`
	State  State  `json:"state"`
	Schema string `json:"schema"`
	Mode   string `json:"mode"`

	Source   string   `json:"source,omitempty"`
	Format   string   `json:"format,omitempty"`
	Headers  []string `json:"headers,omitempty"`
	RowCount int      `json:"row_count"`

	Fields  []FieldView            `json:"fields,omitempty"`
	Mapping map[types.Field]string `json:"mapping,omitempty"`
	Missing []types.Field          `json:"missing,omitempty"`
	Preview []PreviewRow           `json:"preview,omitempty"`

	Records types.ImportBatch `json:"records,omitempty"`
	Skipped []RowIssue        `json:"skipped,omitempty"`

	Receipt *types.Receipt `json:"receipt,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// FieldView describes one schema field for a column selector.
type FieldView struct {
	Field    types.Field `json:"field"`
	Label    string      `json:"label"`
	Required bool        `json:"required"`
}

// PreviewRow is one raw row shown before the mapping is confirmed.
type PreviewRow struct {
	Row    int               `json:"row"`
	Values map[string]string `json:"values"`
}

// RowIssue is a row left out in skip mode.
type RowIssue struct {
	Row     int         `json:"row"`
	Field   types.Field `json:"field"`
	Value   string      `json:"value"`
	Message string      `json:"message"`
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:     s.id,
		State:  s.state,
		Schema: s.schema.Name,
		Mode:   s.transformer.Mode().String(),
	}

	for _, spec := range s.schema.Fields {
		v.Fields = append(v.Fields, FieldView{Field: spec.Field, Label: spec.Label, Required: spec.Required})
	}

	if s.table != nil {
		v.Source = s.table.Source
		v.Format = s.table.Format
		v.Headers = append([]string(nil), s.table.Headers...)
		v.RowCount = len(s.table.Rows)
		for _, row := range mapping.Preview(s.table) {
			values := make(map[string]string, len(row.Cells))
			for h, c := range row.Cells {
				values[h] = c.String()
			}
			v.Preview = append(v.Preview, PreviewRow{Row: row.Number, Values: values})
		}
	}

	if s.mapping != nil {
		v.Mapping = s.mapping.Assignments()
		v.Missing = s.mapping.Missing()
	}

	if s.batch.Len() > 0 {
		v.Records = s.batch.Records()
	}
	for _, sk := range s.skipped {
		v.Skipped = append(v.Skipped, RowIssue{Row: sk.Row, Field: sk.Field, Value: sk.Value, Message: sk.Error()})
	}

	if s.receipt != nil {
		r := *s.receipt
		v.Receipt = &r
	}

	if s.lastErr != nil {
		v.Error = apperrors.Message(s.lastErr)
		v.ErrorCode = apperrors.GetCode(s.lastErr)
	}
	return v
}
