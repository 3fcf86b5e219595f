package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/akintola/customs-audit/internal/audit"
)

// EnsureCSV creates the combined CSV with its header row if it does not
// already exist.
func EnsureCSV(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat csv: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVColumns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LoadRows reads every record from the combined CSV. Records that do not
// match the expected column count are dropped.
func LoadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var rows []Row
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if row, ok := rowFromCSVRecord(rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// UpsertCSV replaces any existing record with the same waybill and rewrites
// the whole file sorted by waybill. Rows with a blank waybill are rejected
// so they cannot shadow each other under an empty key.
func UpsertCSV(path string, row Row) error {
	if row.Waybill == "" {
		return fmt.Errorf("refusing to upsert row with blank waybill")
	}
	rows, err := LoadRows(path)
	if err != nil {
		return err
	}

	kept := rows[:0]
	for _, r := range rows {
		if r.Waybill != row.Waybill {
			kept = append(kept, r)
		}
	}
	kept = append(kept, row)
	sort.Slice(kept, func(i, j int) bool { return kept[i].Waybill < kept[j].Waybill })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rewrite csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVColumns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range kept {
		if err := w.Write(r.csvRecord()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJobCSV writes a single-row CSV next to a job's output documents, a
// per-job snapshot of what went into the combined artifacts.
func WriteJobCSV(path string, row Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create job csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVColumns()); err != nil {
		return fmt.Errorf("write job csv header: %w", err)
	}
	if err := w.Write(row.csvRecord()); err != nil {
		return fmt.Errorf("write job csv record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// AppendIncomplete records a job whose document set was missing required
// types: identity, a Yes/No flag per required document, and the missing
// list. The file is append-only; the header is written on first use.
func AppendIncomplete(path, jobID, waybill, entryNumber string, docs audit.DocumentSet) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open incomplete csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		header := []string{
			"JOB #", "ENTRY #", WaybillColumn,
			"HAS WAYBILL", "HAS INVOICE", "HAS ENTRY PRINT",
			"MISSING DOCUMENTS",
		}
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write incomplete header: %w", err)
		}
	}
	record := []string{
		jobID, entryNumber, waybill,
		yesNo(docs.HasWaybill), yesNo(docs.HasInvoice), yesNo(docs.HasEntryPrint),
		joinMissing(docs.Missing()),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write incomplete record: %w", err)
	}
	w.Flush()
	return w.Error()
}

func yesNo(ok bool) string {
	if ok {
		return "Yes"
	}
	return "No"
}

func joinMissing(missing []string) string {
	out := ""
	for i, m := range missing {
		if i > 0 {
			out += ", "
		}
		out += m
	}
	return out
}
