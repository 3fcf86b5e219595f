package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/akintola/customs-audit/constants"
	"github.com/akintola/customs-audit/internal/audit"
	"github.com/akintola/customs-audit/internal/discovery"
	"github.com/akintola/customs-audit/internal/fileops"
	"github.com/akintola/customs-audit/internal/report"
	"github.com/akintola/customs-audit/internal/runmeta"
)

// Options tune one batch run.
type Options struct {
	Concurrency int
	MaxAttempts int
	BaseDelay   time.Duration
	// ResumeOnly skips jobs that already carry a completion marker.
	// Without it every job is re-audited, markers included.
	ResumeOnly bool
	Weights    report.Weights
}

// Orchestrator fans jobs out to processors under a concurrency limit and
// assembles the run summary.
type Orchestrator struct {
	auditor audit.Auditor
	runs    *runmeta.Manager
	logger  *slog.Logger
}

func NewOrchestrator(auditor audit.Auditor, runs *runmeta.Manager, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{auditor: auditor, runs: runs, logger: logger}
}

// Run audits every job folder under groupedFolder. One failed job never
// stops the others; the summary reports each job's terminal state. The
// workbook is rebuilt from the CSV at the end so the two always agree.
func (o *Orchestrator) Run(ctx context.Context, groupedFolder string, opts Options) (Summary, error) {
	start := time.Now()

	info, err := os.Stat(groupedFolder)
	if err != nil || !info.IsDir() {
		return Summary{}, fmt.Errorf("grouped folder %s is not a directory", groupedFolder)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Weights == nil {
		opts.Weights = report.DefaultWeights()
	}

	run, err := o.runs.Acquire(groupedFolder)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire run: %w", err)
	}

	jobs, err := discovery.ListJobs(groupedFolder)
	if err != nil {
		return Summary{}, err
	}
	if len(jobs) == 0 {
		return Summary{}, fmt.Errorf("no job folders found in %s", groupedFolder)
	}

	agg := report.NewAggregator(
		filepath.Join(run.RunPath, "audit_combined_"+run.RunID+".csv"),
		filepath.Join(run.RunPath, "audit_combined_"+run.RunID+".xlsx"),
		filepath.Join(run.RunPath, "incomplete_docs_"+run.RunID+".csv"),
		opts.Weights,
		o.logger,
	)
	if err := agg.Init(); err != nil {
		return Summary{}, err
	}
	run.CSVPath = agg.CSVPath()
	if err := o.runs.Save(groupedFolder, run); err != nil {
		return Summary{}, err
	}

	proc := NewProcessor(o.auditor, agg, fileops.NewCopier(o.logger), run.RunID, run.RunPath, opts.MaxAttempts, opts.BaseDelay, opts.ResumeOnly, o.logger)

	o.logger.Info("batch.run.start",
		"run_id", run.RunID,
		"jobs", len(jobs),
		"concurrency", opts.Concurrency,
		"resume_only", opts.ResumeOnly,
	)

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	var wg sync.WaitGroup
	outcomes := make([]Outcome, len(jobs))

	for i, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = Outcome{JobID: job.ID, State: constants.JobFailed, Reason: err.Error()}
			continue
		}
		wg.Add(1)
		go func(i int, job discovery.Job) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = proc.Process(ctx, job)
		}(i, job)
	}
	wg.Wait()

	if err := agg.Rebuild(); err != nil {
		o.logger.Error("batch.run.rebuild_failed", "run_id", run.RunID, "error", err)
	}
	if err := o.runs.Save(groupedFolder, run); err != nil {
		o.logger.Warn("batch.run.metadata_save_failed", "run_id", run.RunID, "error", err)
	}

	summary := Summary{
		RunID:        run.RunID,
		RunPath:      run.RunPath,
		CSVPath:      agg.CSVPath(),
		WorkbookPath: agg.WorkbookPath(),
		Total:        len(jobs),
	}
	for _, out := range outcomes {
		summary.Usage.Add(out.Usage)
		switch out.State {
		case constants.JobComplete:
			summary.Succeeded++
		case constants.JobSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			summary.Failures = append(summary.Failures, JobFailure{JobID: out.JobID, Reason: out.Reason})
		}
	}
	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].JobID < summary.Failures[j].JobID })

	o.logger.Info("batch.run.complete",
		"run_id", run.RunID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"total_tokens", summary.Usage.TotalTokens(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}
