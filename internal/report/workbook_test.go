package report

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/akintola/customs-audit/internal/audit"
)

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestEnsureWorkbookLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.xlsx")
	if err := EnsureWorkbook(path, DefaultWeights()); err != nil {
		t.Fatal(err)
	}

	f := openWorkbook(t, path)
	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != "Summary" {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	// Audit header spans A1:P1.
	got, _ := f.GetCellValue("Audit", "C1")
	if got != WaybillColumn {
		t.Fatalf("unexpected C1 header %q", got)
	}
	got, _ = f.GetCellValue("Audit", "P1")
	if got != "SCORE" {
		t.Fatalf("unexpected P1 header %q", got)
	}

	// Weightings row 2 mirrors the defaults.
	got, _ = f.GetCellValue("Weightings", "A2")
	if got != "15" {
		t.Fatalf("unexpected OC weight %q", got)
	}
	got, _ = f.GetCellValue("Weightings", "J2")
	if got != "5" {
		t.Fatalf("unexpected OTH/DISC weight %q", got)
	}
}

func TestUpsertWorkbookAppendsAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.xlsx")
	if err := EnsureWorkbook(path, DefaultWeights()); err != nil {
		t.Fatal(err)
	}

	rowA := sampleRow("WB-A")
	rowA.Checks[0] = audit.Check{Status: audit.StatusNo, Reasoning: "owner code mismatch"}
	if err := UpsertWorkbook(path, rowA); err != nil {
		t.Fatal(err)
	}
	if err := UpsertWorkbook(path, sampleRow("WB-B")); err != nil {
		t.Fatal(err)
	}

	f := openWorkbook(t, path)
	got, _ := f.GetCellValue("Audit", "C2")
	if got != "WB-A" {
		t.Fatalf("row 2 waybill %q", got)
	}
	got, _ = f.GetCellValue("Audit", "D2")
	if got != "0" {
		t.Fatalf("failed check should be 0, got %q", got)
	}
	got, _ = f.GetCellValue("Audit", "E2")
	if got != "1" {
		t.Fatalf("passing check should be 1, got %q", got)
	}
	formula, _ := f.GetCellFormula("Audit", "P2")
	if formula != "SUMPRODUCT(D2:M2,Weightings!$A$2:$J$2)/SUM(Weightings!$A$2:$J$2)" &&
		formula != "=SUMPRODUCT(D2:M2,Weightings!$A$2:$J$2)/SUM(Weightings!$A$2:$J$2)" {
		t.Fatalf("unexpected score formula %q", formula)
	}

	comments, err := f.GetComments("Audit")
	if err != nil {
		t.Fatal(err)
	}
	foundReasoning := false
	for _, c := range comments {
		if c.Cell == "D2" {
			foundReasoning = true
		}
	}
	if !foundReasoning {
		t.Fatal("expected reasoning comment on D2")
	}

	// Same waybill lands on the same row instead of appending.
	updated := sampleRow("WB-A")
	updated.FreeText = "second pass"
	if err := UpsertWorkbook(path, updated); err != nil {
		t.Fatal(err)
	}
	f2 := openWorkbook(t, path)
	rows, _ := f2.GetRows("Audit")
	if len(rows) != 3 { // header + 2 data rows
		t.Fatalf("expected 3 rows after replace, got %d", len(rows))
	}
	got, _ = f2.GetCellValue("Audit", "N2")
	if got != "second pass" {
		t.Fatalf("row not replaced: %q", got)
	}

	// Summary tracks the Audit rows.
	got, _ = f2.GetCellValue("Summary", "B2")
	if got != "WB-A" {
		t.Fatalf("summary waybill %q", got)
	}
	formula, _ = f2.GetCellFormula("Summary", "C2")
	if formula != "'Audit'!P2" && formula != "='Audit'!P2" {
		t.Fatalf("unexpected summary formula %q", formula)
	}
}

func TestRebuildWorkbookFromRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combined.xlsx")
	if err := EnsureWorkbook(path, DefaultWeights()); err != nil {
		t.Fatal(err)
	}
	// Seed with one row, then rebuild with a different set; only the
	// rebuild input must survive.
	if err := UpsertWorkbook(path, sampleRow("STALE")); err != nil {
		t.Fatal(err)
	}

	rows := []Row{sampleRow("WB-1"), sampleRow("WB-2"), sampleRow("WB-3")}
	if err := RebuildWorkbook(path, rows, DefaultWeights()); err != nil {
		t.Fatal(err)
	}

	f := openWorkbook(t, path)
	sheetRows, _ := f.GetRows("Audit")
	if len(sheetRows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(sheetRows))
	}
	for i, want := range []string{"WB-1", "WB-2", "WB-3"} {
		cell, _ := excelize.CoordinatesToCellName(3, i+2)
		got, _ := f.GetCellValue("Audit", cell)
		if got != want {
			t.Fatalf("row %d waybill %q, want %q", i+2, got, want)
		}
	}
}
