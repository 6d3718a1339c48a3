// Package export renders extraction results as spreadsheets.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ehr/labextract/internal/labextract"
)

const (
	ValuesSheet = "Lab Values"
	ReportSheet = "Report"
)

var valueHeaders = []interface{}{
	"Test", "Category", "Value", "Unit", "Reference Range", "Flag", "Confidence", "Position", "Warnings",
}

// XLSX returns a workbook with one row per lab value and a report sheet
// with provenance, header fields and the attention summary. Numeric results
// are written as numbers; flagged rows are highlighted.
func XLSX(extractionID string, res labextract.ExtractionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ValuesSheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ReportSheet); err != nil {
		return nil, fmt.Errorf("xlsx new sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx header style: %w", err)
	}
	flagged, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "C00000"}})
	if err != nil {
		return nil, fmt.Errorf("xlsx flag style: %w", err)
	}

	if err := writeValues(f, res.LabValues, header, flagged); err != nil {
		return nil, err
	}
	if err := writeReport(f, extractionID, res, header); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValues(f *excelize.File, values []labextract.Candidate, header, flagged int) error {
	if err := f.SetSheetRow(ValuesSheet, "A1", &valueHeaders); err != nil {
		return fmt.Errorf("xlsx header row: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(valueHeaders), 1)
	_ = f.SetCellStyle(ValuesSheet, "A1", last, header)

	for i, v := range values {
		row := i + 2
		cells := []interface{}{
			v.TestName,
			v.Category,
			cellValue(v.Value),
			v.Unit,
			v.ReferenceRange,
			string(v.Flag),
			v.Confidence,
			v.SourcePosition,
			strings.Join(v.Warnings, "; "),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ValuesSheet, start, &cells); err != nil {
			return fmt.Errorf("xlsx row %d: %w", row, err)
		}
		if v.HasFlag() {
			end, _ := excelize.CoordinatesToCellName(len(cells), row)
			_ = f.SetCellStyle(ValuesSheet, start, end, flagged)
		}
	}

	_ = f.SetColWidth(ValuesSheet, "A", "A", 30)
	_ = f.SetColWidth(ValuesSheet, "B", "B", 22)
	_ = f.SetColWidth(ValuesSheet, "C", "E", 16)
	_ = f.SetColWidth(ValuesSheet, "I", "I", 40)
	return f.SetPanes(ValuesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeReport(f *excelize.File, extractionID string, res labextract.ExtractionResult, header int) error {
	rows := [][2]interface{}{
		{"Field", "Value"},
		{"Extraction ID", extractionID},
		{"Engine", res.EngineID},
		{"Engine version", res.EngineVersion},
		{"Extracted at", res.ExtractedAt.UTC().Format(time.RFC3339)},
		{"Overall confidence", res.OverallConfidence},
		{"Values", len(res.LabValues)},
	}
	if m := res.Report; m != nil {
		for _, kv := range [][2]string{
			{"Laboratory", m.Laboratory},
			{"UHID", m.UHID},
			{"Patient", m.PatientName},
			{"Age", m.Age},
			{"Gender", m.Gender},
			{"Date of birth", m.DateOfBirth},
			{"Referred by", m.ReferredBy},
			{"Sample collected", m.SampleCollectedAt},
			{"Reported", m.ReportedAt},
			{"Reference no", m.ReferenceNo},
		} {
			if kv[1] != "" {
				rows = append(rows, [2]interface{}{kv[0], kv[1]})
			}
		}
	}
	rows = append(rows, [2]interface{}{"Requires attention", res.Summary.RequiresAttention})
	for _, s := range res.Summary.CriticalFindings {
		rows = append(rows, [2]interface{}{"Critical", s})
	}
	for _, s := range res.Summary.AbnormalValues {
		rows = append(rows, [2]interface{}{"Abnormal", s})
	}
	for _, s := range res.Summary.PositiveResults {
		rows = append(rows, [2]interface{}{"Positive", s})
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := []interface{}{r[0], r[1]}
		if err := f.SetSheetRow(ReportSheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx report row %d: %w", i+1, err)
		}
	}
	_ = f.SetCellStyle(ReportSheet, "A1", "B1", header)
	_ = f.SetColWidth(ReportSheet, "A", "A", 22)
	return f.SetColWidth(ReportSheet, "B", "B", 60)
}

// cellValue keeps plain decimals numeric and everything else ("2 - 4",
// "POSITIVE", "<0.5") as text.
func cellValue(s string) interface{} {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
