// Package report exports the operator action history as audit documents.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"PoscoMonitorAPI/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

var Columns = []string{
	"Action ID",
	"Time",
	"Equipment",
	"Sensor",
	"Action",
	"Assigned To",
	"Value",
	"Threshold",
	"Severity",
	"Status",
}

var pdfWidths = []float64{22, 36, 30, 26, 22, 32, 20, 20, 20, 22}

func row(rec models.ActionRecord) []string {
	return []string{
		rec.ActionID,
		rec.ActionTime.Format("2006-01-02 15:04:05"),
		rec.Equipment,
		rec.SensorType,
		string(rec.ActionType),
		rec.AssignedTo,
		strconv.FormatFloat(rec.Value, 'f', -1, 64),
		strconv.FormatFloat(rec.Threshold, 'f', -1, 64),
		string(rec.Severity),
		rec.Status,
	}
}

const sheetName = "Action History"

func WriteXLSX(w io.Writer, records []models.ActionRecord, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header %s: %w", cell, err)
		}
	}

	for i, rec := range records {
		for col, value := range row(rec) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	for col := range Columns {
		name, _ := excelize.ColumnNumberToName(col + 1)
		f.SetColWidth(sheetName, name, name, 18)
	}

	f.SetDocProps(&excelize.DocProperties{
		Title:   "Action History",
		Created: generated.Format(time.RFC3339),
	})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// PDFOptions selects a UTF-8 font for Korean text. Without one, non-Latin
// characters are replaced.
type PDFOptions struct {
	FontPath string
}

func WritePDF(w io.Writer, records []models.ActionRecord, generated time.Time, opts PDFOptions) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Action History", true)

	family := "Helvetica"
	text := asciiOnly
	if opts.FontPath != "" {
		pdf.AddUTF8Font("report", "", opts.FontPath)
		pdf.AddUTF8Font("report", "B", opts.FontPath)
		family = "report"
		text = func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(0, 10, "Action History", "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s, %d actions", generated.Format("2006-01-02 15:04:05"), len(records)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(family, "B", 9)
	pdf.SetFillColor(230, 243, 255)
	for i, h := range Columns {
		pdf.CellFormat(pdfWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 8)
	for _, rec := range records {
		for i, v := range row(rec) {
			pdf.CellFormat(pdfWidths[i], 6, text(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func asciiOnly(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r > 126 {
			out[i] = '?'
		}
	}
	return string(out)
}
