package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7a89"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
)

// renderTable writes a bordered table with an optional title.
func renderTable(w io.Writer, title string, headers []string, rows [][]string) {
	if title != "" {
		fmt.Fprintln(w, titleStyle.Render(title))
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}

// renderPreview shows the first rows of the file as read.
func renderPreview(w io.Writer, v pipeline.View) {
	headers := append([]string{"Row"}, v.Headers...)
	rows := make([][]string, 0, len(v.Preview))
	for _, p := range v.Preview {
		row := []string{strconv.Itoa(p.Row)}
		for _, h := range v.Headers {
			row = append(row, p.Values[h])
		}
		rows = append(rows, row)
	}
	renderTable(w, fmt.Sprintf("%s (%d rows)", v.Source, v.RowCount), headers, rows)
}

// renderMapping shows which column feeds each field.
func renderMapping(w io.Writer, v pipeline.View) {
	rows := make([][]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		required := ""
		if f.Required {
			required = "yes"
		}
		column, ok := v.Mapping[f.Field]
		if !ok {
			column = "-"
		}
		rows = append(rows, []string{string(f.Field), f.Label, required, column})
	}
	renderTable(w, "Column mapping", []string{"Field", "Label", "Required", "Column"}, rows)

	if len(v.Missing) > 0 {
		names := make([]string, len(v.Missing))
		for i, f := range v.Missing {
			names[i] = string(f)
		}
		sort.Strings(names)
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Unmapped required fields: %v", names)))
	}
}

// renderRecords shows the batch under review, numbered from 1.
func renderRecords(w io.Writer, v pipeline.View) {
	withDonor := false
	for _, f := range v.Fields {
		if f.Field == types.FieldDonorName {
			withDonor = true
		}
	}

	headers := []string{"#"}
	if withDonor {
		headers = append(headers, "Donor")
	}
	headers = append(headers, "Amount", "Date", "Description")

	rows := make([][]string, 0, len(v.Records))
	for i, rec := range v.Records {
		row := []string{strconv.Itoa(i + 1)}
		if withDonor {
			row = append(row, rec.DonorName)
		}
		row = append(row, rec.Amount.String(), rec.OccurredAt.String(), rec.Description)
		rows = append(rows, row)
	}
	renderTable(w, fmt.Sprintf("Records to import (%d)", len(v.Records)), headers, rows)

	if len(v.Skipped) > 0 {
		skipped := make([][]string, 0, len(v.Skipped))
		for _, s := range v.Skipped {
			skipped = append(skipped, []string{strconv.Itoa(s.Row), string(s.Field), s.Value, s.Message})
		}
		renderTable(w, fmt.Sprintf("Skipped rows (%d)", len(v.Skipped)), []string{"Row", "Field", "Value", "Reason"}, skipped)
	}
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf(format, args...)))
}

func printErr(w io.Writer, err error) {
	fmt.Fprintln(w, errStyle.Render("Error: "+apperrors.Message(err)))
}
