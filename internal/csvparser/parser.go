// =============================================================================
// Donation Importer - CSV Parser Module
// =============================================================================
//
// This module reads delimited text exports into a cell grid. It handles:
//   - Different delimiters (comma, semicolon, tab, pipe), sniffed when "auto"
//   - Any WHATWG encoding label (utf-8, windows-1252, iso-8859-1, ...)
//   - A leading byte order mark, which is stripped
//   - Quoted fields, lazily: stray quotes inside fields are kept
//   - Rows with a varying number of fields
//
// CSV has no cell types, so every non-empty value becomes a string cell.
//
// =============================================================================

package csvparser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// Options controls how a CSV file is read.
type Options struct {
	// Delimiter is a single character, a name (comma, semicolon, tab,
	// pipe) or "auto". Empty means "auto".
	Delimiter string

	// Encoding is a WHATWG encoding label. Empty means UTF-8.
	Encoding string
}

// candidates are the delimiters considered by auto detection, in order of
// preference when counts tie.
var candidates = []rune{',', ';', '\t', '|'}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse decodes data and reads it as CSV.
//
// PARAMETERS:
//   - ctx: Checked between records so a cancelled decode stops early.
//   - data: The raw file content.
//   - opts: Delimiter and encoding settings.
//
// RETURNS:
//   - The cell grid, one row per record, including the header record.
//   - An error if the encoding is unknown or the content is not valid CSV.
func Parse(ctx context.Context, data []byte, opts Options) (*types.Sheet, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(dec), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s text: %w", encodingName(opts.Encoding), err)
	}

	comma, err := resolveDelimiter(opts.Delimiter, text)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	configureReader(reader, comma)

	sheet := &types.Sheet{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		sheet.Rows = append(sheet.Rows, toCells(record))
	}

	return sheet, nil
}

// configureReader sets up the reader the same way for every file.
func configureReader(reader *csv.Reader, comma rune) {
	reader.Comma = comma

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

func toCells(record []string) []types.Cell {
	cells := make([]types.Cell, len(record))
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			cells[i] = types.EmptyCell()
			continue
		}
		cells[i] = types.StringCell(value)
	}
	return cells
}

// =============================================================================
// ENCODING AND DELIMITER
// =============================================================================

func decoderFor(label string) (*encoding.Decoder, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return unicode.UTF8.NewDecoder(), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc.NewDecoder(), nil
}

func encodingName(label string) string {
	if label == "" {
		return "utf-8"
	}
	return label
}

// resolveDelimiter maps a configured delimiter to a rune, sniffing it from
// the first line of text when set to "auto".
func resolveDelimiter(setting string, text []byte) (rune, error) {
	name := setting
	if name != "\t" {
		name = strings.ToLower(strings.TrimSpace(name))
	}

	switch name {
	case "", "auto":
		return sniffDelimiter(text), nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	}

	r := []rune(setting)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid CSV delimiter %q", setting)
	}
	return r[0], nil
}

// sniffDelimiter counts every candidate outside quotes on the header line
// and picks the most frequent. Comma wins when nothing is found.
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}

	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, c := range candidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}
