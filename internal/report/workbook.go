package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Summary"
	sheetAudit      = "Audit"
	sheetWeightings = "Weightings"

	auditFirstDataRow = 2
	waybillCol        = 3 // column C on the Audit sheet
)

// scoreFormula computes the weighted pass rate for one Audit row from the
// numeric check cells and the Weightings sheet.
func scoreFormula(row int) string {
	return fmt.Sprintf("=SUMPRODUCT(D%d:M%d,Weightings!$A$2:$J$2)/SUM(Weightings!$A$2:$J$2)", row, row)
}

func summaryFormula(row int) string {
	return fmt.Sprintf("='Audit'!P%d", row)
}

// EnsureWorkbook creates the combined workbook with its three sheets if it
// does not already exist: Summary first, then the Audit detail sheet, then
// the Weightings the score formulas reference.
func EnsureWorkbook(path string, weights Weights) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat workbook: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := initWorkbook(f, weights); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func initWorkbook(f *excelize.File, weights Weights) error {
	// The default sheet becomes Summary so it opens first.
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{sheetAudit, sheetWeightings} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	writeHeader := func(sheet string, headers []string) error {
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return err
			}
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		return f.SetCellStyle(sheet, "A1", last, headerStyle)
	}

	if err := writeHeader(sheetAudit, DisplayColumns()); err != nil {
		return fmt.Errorf("write audit header: %w", err)
	}
	if err := writeHeader(sheetSummary, []string{"Entry #", WaybillColumn, "SCORE"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := writeHeader(sheetWeightings, CheckColumns); err != nil {
		return fmt.Errorf("write weightings header: %w", err)
	}
	for i, w := range weights.Ordered() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheetWeightings, cell, w); err != nil {
			return fmt.Errorf("write weighting: %w", err)
		}
	}

	_ = f.SetColWidth(sheetAudit, "A", "C", 16)
	_ = f.SetColWidth(sheetAudit, "N", "N", 60)
	_ = f.SetColWidth(sheetSummary, "A", "B", 16)

	idx, _ := f.GetSheetIndex(sheetSummary)
	f.SetActiveSheet(idx)
	return nil
}

// UpsertWorkbook writes one audit row into the workbook, replacing the row
// with the same waybill if one exists, otherwise appending. The Summary row
// at the same index is kept in step.
func UpsertWorkbook(path string, row Row) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	target, err := findWaybillRow(f, row.Waybill)
	if err != nil {
		return err
	}
	if err := writeAuditRow(f, target, row); err != nil {
		return err
	}
	if err := writeSummaryRow(f, target, row); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// findWaybillRow scans the Audit sheet's waybill column for an existing row,
// returning the first empty row when no match is found.
func findWaybillRow(f *excelize.File, waybill string) (int, error) {
	rows, err := f.GetRows(sheetAudit)
	if err != nil {
		return 0, fmt.Errorf("read audit sheet: %w", err)
	}
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if len(r) >= waybillCol && strings.TrimSpace(r[waybillCol-1]) == waybill {
			return i + 1, nil
		}
	}
	next := len(rows) + 1
	if next < auditFirstDataRow {
		next = auditFirstDataRow
	}
	return next, nil
}

func writeAuditRow(f *excelize.File, rowIdx int, row Row) error {
	set := func(col int, v any) error {
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
		return f.SetCellValue(sheetAudit, cell, v)
	}
	if err := set(1, row.MonthYear); err != nil {
		return err
	}
	if err := set(2, row.EntryNumber); err != nil {
		return err
	}
	if err := set(3, row.Waybill); err != nil {
		return err
	}
	for i, c := range row.Checks {
		col := 4 + i
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
		if err := f.SetCellValue(sheetAudit, cell, scoreValue(c.Status)); err != nil {
			return err
		}
		// Reasoning rides as a cell comment so the grid stays numeric.
		_ = f.DeleteComment(sheetAudit, cell)
		if c.Reasoning != "" {
			comment := excelize.Comment{
				Cell:      cell,
				Author:    "Audit",
				Paragraph: []excelize.RichTextRun{{Text: c.Reasoning}},
			}
			if err := f.AddComment(sheetAudit, comment); err != nil {
				return fmt.Errorf("add comment: %w", err)
			}
		}
	}
	if err := set(14, row.FreeText); err != nil {
		return err
	}
	if err := set(15, row.Auditor); err != nil {
		return err
	}
	scoreCell, _ := excelize.CoordinatesToCellName(16, rowIdx)
	if err := f.SetCellFormula(sheetAudit, scoreCell, scoreFormula(rowIdx)); err != nil {
		return fmt.Errorf("set score formula: %w", err)
	}
	return nil
}

func writeSummaryRow(f *excelize.File, rowIdx int, row Row) error {
	set := func(col int, v any) error {
		cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
		return f.SetCellValue(sheetSummary, cell, v)
	}
	if err := set(1, row.EntryNumber); err != nil {
		return err
	}
	if err := set(2, row.Waybill); err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(3, rowIdx)
	if err := f.SetCellFormula(sheetSummary, cell, summaryFormula(rowIdx)); err != nil {
		return fmt.Errorf("set summary formula: %w", err)
	}
	return nil
}

// RebuildWorkbook writes a fresh workbook from the full row set, replacing
// whatever is at path. Run after a batch so the workbook always reflects
// the CSV exactly, whatever the incremental upserts went through.
func RebuildWorkbook(path string, rows []Row, weights Weights) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := initWorkbook(f, weights); err != nil {
		return err
	}
	for i, row := range rows {
		rowIdx := auditFirstDataRow + i
		if err := writeAuditRow(f, rowIdx, row); err != nil {
			return fmt.Errorf("write row %d: %w", rowIdx, err)
		}
		if err := writeSummaryRow(f, rowIdx, row); err != nil {
			return fmt.Errorf("write summary row %d: %w", rowIdx, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
