// Package sheet reads and writes lesson lists as .xlsx workbooks.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/rinkside/internal/domain/lesson"
)

// SheetName is the worksheet written by Export.
const SheetName = "Lessons"

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Header is the column order written by Export and expected by Parse.
var Header = []string{"Student", "Coach", "Rink", "Start", "End", "Title"}

// Errors returned by Parse.
var (
	ErrNoSheet   = errors.New("workbook has no sheets")
	ErrNoHeader  = errors.New("missing header row")
	ErrNoColumns = errors.New("required column missing")
)

// Row is one parsed data row. Line is the 1-based spreadsheet row number.
// Times are left as text for the form to parse.
type Row struct {
	Line    int
	Student string
	Coach   string
	Rink    string
	Start   string
	End     string
}

// RowError reports a row that was not imported.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result summarizes an import: IDs of created lessons and rejected rows.
type Result struct {
	Created  []string   `json:"created"`
	Rejected []RowError `json:"rejected"`
}

// Export writes lessons to w, times formatted in loc.
func Export(w io.Writer, lessons []lesson.Lesson, colors lesson.ColorTable, loc *time.Location) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	styles := map[string]int{}
	for i, l := range lessons {
		row := []any{
			l.Student,
			l.Coach,
			l.Rink,
			l.Start.In(loc).Format(lesson.SheetLayout),
			l.End.In(loc).Format(lesson.SheetLayout),
			l.Title(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}

		// Coach cell tinted with the calendar color.
		color := colors.Color(l.Coach)
		style, ok := styles[color]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			})
			if err != nil {
				return fmt.Errorf("coach style: %w", err)
			}
			styles[color] = style
		}
		coachCell, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := f.SetCellStyle(SheetName, coachCell, coachCell, style); err != nil {
			return fmt.Errorf("style row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "C", 16); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "D", "E", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "F", "F", 36); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Parse reads the first worksheet of the workbook in r. Columns are located
// by header name (case-insensitive); Student and Start are required, the
// others may be absent. Blank rows are skipped.
func Parse(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"student", "start"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoColumns, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]Row, 0, len(rows)-1)
	for i, row := range rows[1:] {
		parsed := Row{
			Line:    i + 2,
			Student: cell(row, "student"),
			Coach:   cell(row, "coach"),
			Rink:    cell(row, "rink"),
			Start:   cell(row, "start"),
			End:     cell(row, "end"),
		}
		if parsed == (Row{Line: parsed.Line}) {
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}
