package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"indexwatch/internal/models"
)

const sheetName = "Results"

var exportHeader = []string{
	"id", "label", "url", "answer_search", "answer_pdf", "bucket",
	"found_exposed", "is_pdf", "http_status", "final_url", "checked_at", "error_message", "note",
}

// record flattens a row for export. Unchecked targets leave the observation
// columns empty.
func (r Row) record() []string {
	rec := []string{
		r.ID, r.Label, r.URL, yn(r.AnswerSearchExposed), yn(models.TristateOf(r.AnswerPDFExposed)), r.Bucket,
		"", "", "", "", "", "", "",
	}
	if r.Result != nil {
		rec[6] = yn(models.TristateOf(r.Result.FoundExposed))
		rec[7] = yn(models.TristateOf(r.Result.IsPDF))
		if r.Result.HTTPStatus != nil {
			rec[8] = strconv.Itoa(*r.Result.HTTPStatus)
		}
		if r.Result.FinalURL != nil {
			rec[9] = *r.Result.FinalURL
		}
		rec[10] = r.Result.CheckedAt.UTC().Format(time.RFC3339)
		if r.Result.ErrorMessage != nil {
			rec[11] = *r.Result.ErrorMessage
		}
	}
	if r.Note != nil {
		rec[12] = *r.Note
	}
	return rec
}

func yn(t models.Tristate) string {
	switch t {
	case models.Yes:
		return "Y"
	case models.No:
		return "N"
	default:
		return ""
	}
}

// WriteCSV writes the dashboard rows as CSV with a header line.
func WriteCSV(w io.Writer, d *Dashboard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range d.Rows {
		if err := cw.Write(row.record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the dashboard rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, d *Dashboard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, 1, exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, row := range d.Rows {
		if err := setRow(f, i+2, row.record()); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", n, err)
	}
	return nil
}
