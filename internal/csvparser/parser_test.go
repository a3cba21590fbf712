package csvparser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

func texts(row []types.Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.String()
	}
	return out
}

func TestParseComma(t *testing.T) {
	data := []byte("Donante,Monto,Fecha\nJuan,50000,2024-03-15\n")

	sheet, err := Parse(context.Background(), data, Options{})
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, []string{"Donante", "Monto", "Fecha"}, texts(sheet.Rows[0]))
	assert.Equal(t, []string{"Juan", "50000", "2024-03-15"}, texts(sheet.Rows[1]))

	// CSV cells are always strings, even when they look numeric.
	assert.Equal(t, types.CellString, sheet.Rows[1][1].Kind)
}

func TestParseStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Monto;Fecha\n10;2024-01-01\n")...)

	sheet, err := Parse(context.Background(), data, Options{Delimiter: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "Monto", sheet.Rows[0][0].Text)
	assert.Equal(t, []string{"10", "2024-01-01"}, texts(sheet.Rows[1]))
}

func TestParseWindows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Descripción,Monto\nAlimentación,5\n"))
	require.NoError(t, err)

	sheet, err := Parse(context.Background(), encoded, Options{Encoding: "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, "Descripción", sheet.Rows[0][0].Text)
	assert.Equal(t, "Alimentación", sheet.Rows[1][0].Text)
}

func TestParseUnknownEncoding(t *testing.T) {
	_, err := Parse(context.Background(), []byte("a,b\n"), Options{Encoding: "klingon"})
	assert.Error(t, err)
}

func TestParseRaggedAndEmptyCells(t *testing.T) {
	data := []byte("a,b,c\n1,,\n2\n\"x, y\",\"q\"\n")

	sheet, err := Parse(context.Background(), data, Options{Delimiter: "comma"})
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 4)
	assert.True(t, sheet.Rows[1][1].IsEmpty())
	assert.Len(t, sheet.Rows[2], 1)
	assert.Equal(t, "x, y", sheet.Rows[3][0].Text)
}

func TestParseHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, []byte("a\n1\n"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveDelimiter(t *testing.T) {
	tests := []struct {
		setting string
		text    string
		want    rune
	}{
		{"auto", "a;b;c\n", ';'},
		{"auto", "a\tb\n", '\t'},
		{"auto", "\"x;y\",b\n", ','},
		{"auto", "single\n", ','},
		{"pipe", "", '|'},
		{"tab", "", '\t'},
		{":", "", ':'},
	}
	for _, tt := range tests {
		got, err := resolveDelimiter(tt.setting, []byte(tt.text))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%q / %q", tt.setting, tt.text)
	}

	_, err := resolveDelimiter("::", nil)
	assert.Error(t, err)
}
