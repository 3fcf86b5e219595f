package report

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/akintola/customs-audit/internal/audit"
)

// Aggregator serializes all mutations of the combined artifacts. Job workers
// run concurrently, but the CSV rewrite and workbook upsert are not safe to
// interleave, so a single mutex guards both.
type Aggregator struct {
	mu             sync.Mutex
	csvPath        string
	workbookPath   string
	incompletePath string
	weights        Weights
	logger         *slog.Logger
}

func NewAggregator(csvPath, workbookPath, incompletePath string, weights Weights, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		csvPath:        csvPath,
		workbookPath:   workbookPath,
		incompletePath: incompletePath,
		weights:        weights,
		logger:         logger,
	}
}

func (a *Aggregator) CSVPath() string      { return a.csvPath }
func (a *Aggregator) WorkbookPath() string { return a.workbookPath }

// Init creates the CSV and workbook skeletons if they are not already there.
func (a *Aggregator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := EnsureCSV(a.csvPath); err != nil {
		return fmt.Errorf("ensure csv: %w", err)
	}
	if err := EnsureWorkbook(a.workbookPath, a.weights); err != nil {
		return fmt.Errorf("ensure workbook: %w", err)
	}
	return nil
}

// Upsert writes one row into the CSV and then the workbook. A failure in
// either leaves the job unrecorded; callers must treat it as a job failure
// so the completion marker is never written over a missing row.
func (a *Aggregator) Upsert(row Row) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := time.Now()

	if err := UpsertCSV(a.csvPath, row); err != nil {
		return fmt.Errorf("csv upsert: %w", err)
	}
	if err := UpsertWorkbook(a.workbookPath, row); err != nil {
		return fmt.Errorf("workbook upsert: %w", err)
	}
	a.logger.Info("report.upsert.ok",
		"waybill", row.Waybill,
		"entry_number", row.EntryNumber,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// RecordIncomplete notes a job with missing document types. Best effort;
// it never fails the job.
func (a *Aggregator) RecordIncomplete(jobID, waybill, entryNumber string, docs audit.DocumentSet) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := AppendIncomplete(a.incompletePath, jobID, waybill, entryNumber, docs); err != nil {
		a.logger.Warn("report.incomplete.write_failed", "job_id", jobID, "error", err)
	}
}

// Rows returns the current contents of the combined CSV.
func (a *Aggregator) Rows() ([]Row, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return LoadRows(a.csvPath)
}

// Rebuild regenerates the workbook from the CSV so the two artifacts agree
// exactly at the end of a batch.
func (a *Aggregator) Rebuild() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := time.Now()

	rows, err := LoadRows(a.csvPath)
	if err != nil {
		return fmt.Errorf("load rows: %w", err)
	}
	if err := RebuildWorkbook(a.workbookPath, rows, a.weights); err != nil {
		return fmt.Errorf("rebuild workbook: %w", err)
	}
	a.logger.Info("report.rebuild.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
