package mapping

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

func sampleTable() *types.RawTable {
	headers := []string{"Donante", "Monto", "Fecha", "Descripción"}
	table := &types.RawTable{Headers: headers}
	for i, donor := range []string{"Juan", "Ana", "Luis", "Marta", "Pedro"} {
		table.Rows = append(table.Rows, types.Row{
			Number: i + 2,
			Cells: map[string]types.Cell{
				"Donante":     types.StringCell(donor),
				"Monto":       types.NumberCell(float64(1000 * (i + 1))),
				"Fecha":       types.StringCell("2024-03-15"),
				"Descripción": types.EmptyCell(),
			},
		})
	}
	return table
}

func TestSetAndCompleteness(t *testing.T) {
	table := sampleTable()
	m := New(DonorSchema(), table.Headers)

	assert.False(t, m.IsComplete())
	assert.Equal(t, []types.Field{types.FieldDonorName, types.FieldAmount, types.FieldOccurredAt}, m.Missing())

	require.NoError(t, m.Set(types.FieldAmount, "Monto"))
	require.NoError(t, m.Set(types.FieldOccurredAt, "Fecha"))
	assert.False(t, m.IsComplete())

	require.NoError(t, m.Set(types.FieldDonorName, "Donante"))
	assert.True(t, m.IsComplete())

	// Description stays optional.
	_, ok := m.Header(types.FieldDescription)
	assert.False(t, ok)

	require.NoError(t, m.Set(types.FieldAmount, ""))
	assert.False(t, m.IsComplete())
	assert.Equal(t, []types.Field{types.FieldAmount}, m.Missing())
}

func TestSetRejectsUnknowns(t *testing.T) {
	m := New(ShelterSchema(), []string{"Monto", "Fecha"})

	err := m.Set(types.FieldDonorName, "Monto")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	err = m.Set(types.FieldAmount, "Total")
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
}

func TestShelterSchemaDoesNotRequireDonor(t *testing.T) {
	m := New(ShelterSchema(), []string{"Monto", "Fecha"})
	require.NoError(t, m.Set(types.FieldAmount, "Monto"))
	require.NoError(t, m.Set(types.FieldOccurredAt, "Fecha"))
	assert.True(t, m.IsComplete())
}

func TestSuggest(t *testing.T) {
	m := New(DonorSchema(), []string{"  DONANTE ", "Monto", "fecha", "Descripcion"})
	got := m.Suggest()

	assert.ElementsMatch(t, []types.Field{
		types.FieldDonorName, types.FieldAmount, types.FieldOccurredAt, types.FieldDescription,
	}, got)
	h, _ := m.Header(types.FieldDescription)
	assert.Equal(t, "Descripcion", h)
	assert.True(t, m.IsComplete())
}

func TestSuggestKeepsManualChoices(t *testing.T) {
	m := New(DonorSchema(), []string{"Monto", "Valor", "Fecha"})
	require.NoError(t, m.Set(types.FieldAmount, "Valor"))

	m.Suggest()
	h, _ := m.Header(types.FieldAmount)
	assert.Equal(t, "Valor", h)
}

func TestSuggestDoesNotReuseHeaders(t *testing.T) {
	// "created_at" is an alias of occurred_at only, "nombre" of the donor.
	m := New(DonorSchema(), []string{"Nombre", "Created_At"})
	m.Suggest()

	h, ok := m.Header(types.FieldDonorName)
	require.True(t, ok)
	assert.Equal(t, "Nombre", h)
	h, ok = m.Header(types.FieldOccurredAt)
	require.True(t, ok)
	assert.Equal(t, "Created_At", h)
	_, ok = m.Header(types.FieldAmount)
	assert.False(t, ok)
}

func TestPreviewIsIdempotent(t *testing.T) {
	table := sampleTable()
	first := Preview(table)
	second := Preview(table)

	require.Len(t, first, PreviewRows)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("preview changed between calls (-first +second):\n%s", diff)
	}
	assert.Equal(t, 2, first[0].Number)

	// Mutating the copy leaves the table alone.
	first[0].Cells["Donante"] = types.StringCell("changed")
	assert.Equal(t, "Juan", table.Rows[0].Get("Donante").Text)
}

func TestPreviewShortTable(t *testing.T) {
	table := sampleTable()
	table.Rows = table.Rows[:1]
	assert.Len(t, Preview(table), 1)
	assert.Nil(t, Preview(nil))
}

func TestSchemaFromConfig(t *testing.T) {
	s, err := SchemaFromConfig(config.SchemaSettings{
		Name:     "donor",
		Required: []string{"amount", "created_at"},
		Aliases:  map[string][]string{"amount": {"aporte"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Field{types.FieldAmount, types.FieldOccurredAt}, s.Required())
	assert.False(t, s.IsRequired(types.FieldDonorName))

	m := New(s, []string{"Aporte"})
	m.Suggest()
	h, _ := m.Header(types.FieldAmount)
	assert.Equal(t, "Aporte", h)

	// Built-ins are not modified by overrides.
	assert.True(t, DonorSchema().IsRequired(types.FieldDonorName))

	// amount and occurred_at cannot be made optional.
	s, err = SchemaFromConfig(config.SchemaSettings{Name: "shelter", Required: []string{"description"}})
	require.NoError(t, err)
	assert.Equal(t, []types.Field{types.FieldAmount, types.FieldOccurredAt, types.FieldDescription}, s.Required())
	m = New(s, []string{"Concepto"})
	require.NoError(t, m.Set(types.FieldDescription, "Concepto"))
	assert.False(t, m.IsComplete())
	assert.Equal(t, []types.Field{types.FieldAmount, types.FieldOccurredAt}, m.Missing())

	_, err = SchemaFromConfig(config.SchemaSettings{Name: "shelter", Required: []string{"donor_name"}})
	assert.Error(t, err)
	_, err = SchemaFromConfig(config.SchemaSettings{Name: "other"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "descripcion", Normalize("  Descripción "))
	assert.Equal(t, "nombre del donante", Normalize("Nombre   del_Donante"))
}
