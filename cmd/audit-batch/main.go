package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/akintola/customs-audit/internal/audit/gemini"
	"github.com/akintola/customs-audit/internal/batch"
	"github.com/akintola/customs-audit/internal/common"
	"github.com/akintola/customs-audit/internal/report"
	"github.com/akintola/customs-audit/internal/runmeta"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		dir           = flag.String("dir", "", "grouped folder containing job_* directories (required)")
		resume        = flag.Bool("resume", false, "skip jobs that already have a completion marker")
		concurrency   = flag.Int("concurrency", 0, "max concurrent jobs (overrides BATCH_MAX_CONCURRENCY)")
		broker        = flag.String("broker", "", "customs broker name (overrides AUDIT_BROKER_NAME)")
		status        = flag.Bool("status", false, "report completion status and exit")
		clearMarkers  = flag.Bool("clear-markers", false, "remove completion markers and exit")
		clearMetadata = flag.Bool("clear-metadata", false, "with --clear-markers, also remove run metadata")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *status {
		reportStatus(*dir)
		return
	}
	if *clearMarkers {
		removed, err := runmeta.ClearMarkers(*dir, *clearMetadata)
		if err != nil {
			logger.Error("failed to clear markers", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %d completion markers\n", removed)
		return
	}

	cfg := common.LoadConfig()
	if *broker != "" {
		cfg.Auditor.Broker = *broker
	}
	if *concurrency > 0 {
		cfg.Batch.MaxConcurrency = *concurrency
	}
	if err := cfg.ValidateForAudit(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	weights, err := report.LoadWeights(cfg.Report.WeightsFile)
	if err != nil {
		logger.Error("failed to load weights", "error", err)
		os.Exit(1)
	}

	auditor := gemini.NewClient(gemini.Config{
		APIKey:      cfg.Auditor.APIKey,
		BaseURL:     cfg.Auditor.BaseURL,
		Model:       cfg.Auditor.Model,
		Temperature: cfg.Auditor.Temperature,
		Timeout:     cfg.Auditor.Timeout,
		Broker:      cfg.Auditor.Broker,
	}, logger)
	logger.Info("auditor initialized", "model", cfg.Auditor.Model)

	runs := runmeta.NewManager(cfg.Output.BaseDir, logger)
	orch := batch.NewOrchestrator(auditor, runs, logger)

	summary, err := orch.Run(context.Background(), *dir, batch.Options{
		Concurrency: cfg.Batch.MaxConcurrency,
		MaxAttempts: cfg.Batch.MaxAttempts,
		BaseDelay:   cfg.Batch.RetryBaseDelay,
		ResumeOnly:  *resume,
		Weights:     weights,
	})
	if err != nil {
		logger.Error("batch run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Audit batch complete!\n")
	fmt.Printf("- Run: %s\n", summary.RunID)
	fmt.Printf("- Jobs: %d (succeeded %d, failed %d, skipped %d)\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Skipped)
	fmt.Printf("- Tokens: %d\n", summary.Usage.TotalTokens())
	fmt.Printf("- CSV: %s\n", summary.CSVPath)
	fmt.Printf("- Workbook: %s\n", summary.WorkbookPath)
	for _, f := range summary.Failures {
		fmt.Printf("- FAILED %s: %s\n", f.JobID, f.Reason)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func reportStatus(dir string) {
	rep, err := runmeta.Status(dir)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Jobs: %d (completed %d, pending %d)\n", rep.Total, rep.Completed, rep.Pending)
	for _, id := range rep.CompletedJobs {
		fmt.Printf("- COMPLETE %s\n", id)
	}
	for _, id := range rep.PendingJobs {
		fmt.Printf("- PENDING %s\n", id)
	}
}
