// Package report maintains the aggregate audit artifacts: the combined CSV,
// the combined XLSX workbook, and the incomplete-documents listing. The CSV
// is the durable source of truth; the workbook is presentation.
package report

import (
	"strings"

	"github.com/akintola/customs-audit/internal/audit"
)

// CheckColumns is the fixed order of the compliance check columns, as they
// appear in both the CSV and the workbook.
var CheckColumns = []string{
	"OC",
	"SC",
	"VALUATION",
	"ORIGIN",
	"FTA",
	"PRS/PRT",
	"CURRENCY",
	"INCOTERMS",
	"T & I",
	"OTH/DISC",
}

// WaybillColumn is the natural-key column header. Rows with the same
// waybill are considered the same audit record.
const WaybillColumn = "WAYBILL #"

// DisplayColumns is the workbook Audit sheet layout: identity, the ten
// checks, free text, auditor, score.
func DisplayColumns() []string {
	cols := []string{"Month-Year", "Entry #", WaybillColumn}
	cols = append(cols, CheckColumns...)
	return append(cols, "FREE TEXT", "AUDITOR", "SCORE")
}

// CSVColumns is the combined CSV layout. It carries the reasoning behind
// every check but no score; scores are workbook formulas.
func CSVColumns() []string {
	cols := []string{"Month-Year", "Entry #", WaybillColumn}
	cols = append(cols, CheckColumns...)
	for _, c := range CheckColumns {
		cols = append(cols, c+" REASONING")
	}
	return append(cols, "FREE TEXT", "AUDITOR")
}

// Row is one audit record keyed by waybill. Checks follows CheckColumns
// order.
type Row struct {
	MonthYear   string
	EntryNumber string
	Waybill     string
	Checks      [10]audit.Check
	FreeText    string
	Auditor     string
}

// RowFromResult flattens an audit result into the aggregate row shape.
func RowFromResult(r audit.Result) Row {
	h := r.Header
	return Row{
		MonthYear:   r.Extraction.AuditMonth,
		EntryNumber: r.Extraction.EntryNumber,
		Waybill:     strings.TrimSpace(r.Extraction.Waybill),
		Checks: [10]audit.Check{
			h.OwnerCode,
			h.SupplierCode,
			h.Valuation,
			h.Origin,
			h.Preference,
			h.PreferenceRule,
			h.Currency,
			h.Incoterms,
			h.TransportInsurance,
			h.Discounts,
		},
		FreeText: r.FreeText,
		Auditor:  r.Auditor,
	}
}

// scoreValue maps a check status to its workbook cell value. Not-applicable
// checks count as passed so they do not drag the weighted score down.
func scoreValue(s audit.Status) int {
	if s == audit.StatusNo {
		return 0
	}
	return 1
}

func (r Row) csvRecord() []string {
	rec := []string{r.MonthYear, r.EntryNumber, r.Waybill}
	for _, c := range r.Checks {
		rec = append(rec, string(c.Status))
	}
	for _, c := range r.Checks {
		rec = append(rec, c.Reasoning)
	}
	return append(rec, r.FreeText, r.Auditor)
}

func rowFromCSVRecord(rec []string) (Row, bool) {
	if len(rec) != len(CSVColumns()) {
		return Row{}, false
	}
	row := Row{
		MonthYear:   rec[0],
		EntryNumber: rec[1],
		Waybill:     strings.TrimSpace(rec[2]),
	}
	for i := 0; i < len(CheckColumns); i++ {
		row.Checks[i] = audit.Check{
			Status:    audit.Status(rec[3+i]),
			Reasoning: rec[3+len(CheckColumns)+i],
		}
	}
	row.FreeText = rec[len(rec)-2]
	row.Auditor = rec[len(rec)-1]
	return row, true
}
