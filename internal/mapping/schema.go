// =============================================================================
// Donation Importer - Record Schemas
// =============================================================================
//
// A Schema lists the semantic fields an import produces, which of them must
// be mapped before the rows can be transformed, and the header names that
// are recognised automatically for each field.
//
// BUILT-IN SCHEMAS:
//   - donor:   donor_name, amount, occurred_at required; description optional
//   - shelter: amount, occurred_at required; description optional
//
// =============================================================================

package mapping

import (
	"fmt"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// FieldSpec describes one semantic field of a schema.
type FieldSpec struct {
	Field    types.Field
	Required bool

	// Label is the human-readable name shown next to the header selector.
	Label string

	// Aliases are header names recognised by Suggest.
	Aliases []string
}

// Schema is the ordered list of fields an import produces.
type Schema struct {
	Name   string
	Fields []FieldSpec
}

var (
	amountSpec = FieldSpec{
		Field:    types.FieldAmount,
		Required: true,
		Label:    "Amount",
		Aliases:  []string{"amount", "monto", "valor", "importe", "cantidad", "donation", "donacion"},
	}
	dateSpec = FieldSpec{
		Field:    types.FieldOccurredAt,
		Required: true,
		Label:    "Date",
		Aliases:  []string{"date", "fecha", "created_at", "occurred_at", "fecha de donacion", "dia"},
	}
	descriptionSpec = FieldSpec{
		Field:   types.FieldDescription,
		Label:   "Description",
		Aliases: []string{"description", "descripcion", "concepto", "detalle", "nota", "notas"},
	}
	donorSpec = FieldSpec{
		Field:    types.FieldDonorName,
		Required: true,
		Label:    "Donor name",
		Aliases:  []string{"donor", "donor_name", "donor name", "donante", "nombre", "nombre del donante"},
	}
)

// DonorSchema returns the schema of the donation import with donor names.
func DonorSchema() Schema {
	return Schema{
		Name:   "donor",
		Fields: cloneSpecs(donorSpec, amountSpec, dateSpec, descriptionSpec),
	}
}

// ShelterSchema returns the schema of the shelter import without donors.
func ShelterSchema() Schema {
	return Schema{
		Name:   "shelter",
		Fields: cloneSpecs(amountSpec, dateSpec, descriptionSpec),
	}
}

// SchemaFromConfig builds a schema from the configuration: the named
// built-in schema, an optional override of the required set and any extra
// aliases. The override decides donor_name and description only; amount and
// occurred_at stay required whatever it lists.
func SchemaFromConfig(cfg config.SchemaSettings) (Schema, error) {
	var s Schema
	switch cfg.Name {
	case "", "donor":
		s = DonorSchema()
	case "shelter":
		s = ShelterSchema()
	default:
		return Schema{}, fmt.Errorf("unknown schema %q", cfg.Name)
	}

	if len(cfg.Required) > 0 {
		required := make(map[types.Field]bool, len(cfg.Required))
		for _, name := range cfg.Required {
			f, ok := types.ParseField(name)
			if !ok || !s.Has(f) {
				return Schema{}, fmt.Errorf("schema %s has no field %q", s.Name, name)
			}
			required[f] = true
		}
		for i := range s.Fields {
			f := s.Fields[i].Field
			s.Fields[i].Required = required[f] || alwaysRequired(f)
		}
	}

	for name, aliases := range cfg.Aliases {
		f, ok := types.ParseField(name)
		if !ok || !s.Has(f) {
			return Schema{}, fmt.Errorf("schema %s has no field %q", s.Name, name)
		}
		for i := range s.Fields {
			if s.Fields[i].Field == f {
				s.Fields[i].Aliases = append(s.Fields[i].Aliases, aliases...)
			}
		}
	}

	return s, nil
}

// alwaysRequired reports whether f must be mapped in every schema. A record
// cannot be built without an amount and a date.
func alwaysRequired(f types.Field) bool {
	return f == types.FieldAmount || f == types.FieldOccurredAt
}

// Has reports whether f belongs to the schema.
func (s Schema) Has(f types.Field) bool {
	_, ok := s.Spec(f)
	return ok
}

// Spec returns the FieldSpec for f.
func (s Schema) Spec(f types.Field) (FieldSpec, bool) {
	for _, spec := range s.Fields {
		if spec.Field == f {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// IsRequired reports whether f must be mapped.
func (s Schema) IsRequired(f types.Field) bool {
	spec, ok := s.Spec(f)
	return ok && spec.Required
}

// Required lists the required fields in schema order.
func (s Schema) Required() []types.Field {
	var out []types.Field
	for _, spec := range s.Fields {
		if spec.Required {
			out = append(out, spec.Field)
		}
	}
	return out
}

func cloneSpecs(specs ...FieldSpec) []FieldSpec {
	out := make([]FieldSpec, len(specs))
	for i, spec := range specs {
		spec.Aliases = append([]string(nil), spec.Aliases...)
		out[i] = spec
	}
	return out
}
