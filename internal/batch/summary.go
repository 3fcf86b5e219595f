package batch

import "github.com/akintola/customs-audit/internal/audit"

// JobFailure pairs a failed job with the reason the batch recorded for it.
type JobFailure struct {
	JobID  string
	Reason string
}

// Summary is the outcome of one batch run.
type Summary struct {
	RunID        string
	RunPath      string
	CSVPath      string
	WorkbookPath string
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	Failures     []JobFailure
	Usage        audit.Usage
}
