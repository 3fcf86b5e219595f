// Package batch runs the audit over a grouped folder: one processor per job,
// fanned out under a concurrency limit, with results folded into the
// combined artifacts and marked complete on the filesystem.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akintola/customs-audit/constants"
	"github.com/akintola/customs-audit/internal/audit"
	"github.com/akintola/customs-audit/internal/discovery"
	"github.com/akintola/customs-audit/internal/fileops"
	"github.com/akintola/customs-audit/internal/report"
	"github.com/akintola/customs-audit/internal/runmeta"
)

// Outcome is the terminal state of one job within a run.
type Outcome struct {
	JobID  string
	State  constants.JobState
	Reason string
	Usage  audit.Usage
}

// Processor takes a single job from discovery to completion marker.
type Processor struct {
	auditor     audit.Auditor
	agg         *report.Aggregator
	copier      *fileops.Copier
	runID       string
	runPath     string
	maxAttempts int
	baseDelay   time.Duration
	resumeOnly  bool
	logger      *slog.Logger
}

func NewProcessor(auditor audit.Auditor, agg *report.Aggregator, copier *fileops.Copier, runID, runPath string, maxAttempts int, baseDelay time.Duration, resumeOnly bool, logger *slog.Logger) *Processor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		auditor:     auditor,
		agg:         agg,
		copier:      copier,
		runID:       runID,
		runPath:     runPath,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		resumeOnly:  resumeOnly,
		logger:      logger,
	}
}

// Process runs one job end to end. It never panics the batch: every failure
// path returns a FAILED outcome with a reason, and the completion marker is
// written only after the job's row is safely in the combined artifacts.
func (p *Processor) Process(ctx context.Context, job discovery.Job) Outcome {
	log := p.logger.With("job_id", job.ID)
	start := time.Now()

	// Markers only short-circuit when the caller asked to resume; a
	// default run re-audits everything and rewrites the marker at the end.
	if p.resumeOnly {
		switch runmeta.MarkerStateOf(job.Dir) {
		case runmeta.MarkerComplete:
			log.Info("batch.job.skipped", "reason", "already completed")
			return Outcome{JobID: job.ID, State: constants.JobSkipped}
		case runmeta.MarkerCorrupt:
			log.Warn("batch.job.marker_corrupt", "hint", "reprocessing")
		}
	}

	if len(job.Documents) == 0 {
		log.Warn("batch.job.failed", "reason", "no documents")
		return Outcome{JobID: job.ID, State: constants.JobFailed, Reason: "no documents"}
	}

	log.Info("batch.job.start", "documents", len(job.Documents))

	jobOut := filepath.Join(p.runPath, constants.JobFolderPrefix+job.ID)
	if err := os.MkdirAll(jobOut, 0o755); err != nil {
		return p.fail(log, job.ID, audit.Usage{}, fmt.Errorf("create job output dir: %w", err))
	}

	docs, err := readDocuments(job.Documents)
	if err != nil {
		return p.fail(log, job.ID, audit.Usage{}, err)
	}
	// Copies are for the reviewer opening the run folder; losing one does
	// not invalidate the audit.
	for _, src := range job.Documents {
		p.copier.Copy(src, filepath.Join(jobOut, filepath.Base(src)))
	}

	result, usage, err := p.auditWithRetry(ctx, log, job.ID, docs)
	if err != nil {
		return p.fail(log, job.ID, usage, err)
	}

	row := report.RowFromResult(result)
	if row.Waybill == "" {
		return p.fail(log, job.ID, usage, fmt.Errorf("audit result has no waybill number"))
	}

	if err := report.WriteJobCSV(filepath.Join(jobOut, "audit_"+job.ID+".csv"), row); err != nil {
		log.Warn("batch.job.job_csv_failed", "error", err)
	}
	if err := p.agg.Upsert(row); err != nil {
		return p.fail(log, job.ID, usage, fmt.Errorf("record result: %w", err))
	}
	if !result.Documents.FullSet() {
		p.agg.RecordIncomplete(job.ID, row.Waybill, row.EntryNumber, result.Documents)
	}

	if err := runmeta.WriteMarker(job.Dir, p.runID); err != nil {
		return p.fail(log, job.ID, usage, err)
	}

	log.Info("batch.job.complete",
		"waybill", row.Waybill,
		"total_tokens", usage.TotalTokens(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Outcome{JobID: job.ID, State: constants.JobComplete, Usage: usage}
}

func (p *Processor) fail(log *slog.Logger, jobID string, usage audit.Usage, err error) Outcome {
	log.Error("batch.job.failed", "reason", err.Error())
	return Outcome{JobID: jobID, State: constants.JobFailed, Reason: err.Error(), Usage: usage}
}

// auditWithRetry retries transient auditor failures with doubling delay.
// Permanent failures and context cancellation stop immediately. Usage from
// every attempt is accumulated, including failed ones.
func (p *Processor) auditWithRetry(ctx context.Context, log *slog.Logger, jobID string, docs []audit.Document) (audit.Result, audit.Usage, error) {
	var total audit.Usage
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result, usage, err := p.auditor.Audit(ctx, jobID, docs)
		total.Add(usage)
		if err == nil {
			return result, total, nil
		}
		lastErr = err

		if !audit.IsTransient(err) {
			log.Error("batch.job.permanent_error", "attempt", attempt, "error", err)
			return audit.Result{}, total, err
		}
		if attempt == p.maxAttempts {
			break
		}

		delay := p.baseDelay << (attempt - 1)
		log.Warn("batch.job.retry", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		select {
		case <-ctx.Done():
			return audit.Result{}, total, ctx.Err()
		case <-time.After(delay):
		}
	}
	return audit.Result{}, total, fmt.Errorf("audit failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func readDocuments(paths []string) ([]audit.Document, error) {
	docs := make([]audit.Document, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}
		docs = append(docs, audit.Document{Name: filepath.Base(path), Data: b})
	}
	return docs, nil
}
