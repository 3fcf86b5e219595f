package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akintola/customs-audit/internal/audit"
	"github.com/akintola/customs-audit/internal/report"
	"github.com/akintola/customs-audit/internal/runmeta"
)

func newTestOrchestrator(t *testing.T, auditor audit.Auditor) (*Orchestrator, string) {
	t.Helper()
	out := t.TempDir()
	runs := runmeta.NewManager(out, testLogger())
	return NewOrchestrator(auditor, runs, testLogger()), out
}

func defaultOpts() Options {
	return Options{Concurrency: 2, MaxAttempts: 1, BaseDelay: time.Millisecond}
}

func TestRunMixedBatch(t *testing.T) {
	grouped := t.TempDir()
	makeJobDir(t, grouped, "A", 1)
	makeJobDir(t, grouped, "B", 0)
	makeJobDir(t, grouped, "C", 1)

	stub := newStubAuditor()
	orch, _ := newTestOrchestrator(t, stub)

	summary, err := orch.Run(context.Background(), grouped, defaultOpts())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].JobID != "B" || summary.Failures[0].Reason != "no documents" {
		t.Fatalf("unexpected failures %+v", summary.Failures)
	}

	rows, err := report.LoadRows(summary.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Waybill != "A1" || rows[1].Waybill != "C1" {
		t.Fatalf("unexpected row order %s, %s", rows[0].Waybill, rows[1].Waybill)
	}
	if summary.Usage.Requests != 2 {
		t.Fatalf("expected 2 auditor requests, got %+v", summary.Usage)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	grouped := t.TempDir()
	for _, id := range []string{"A", "B", "C", "D"} {
		makeJobDir(t, grouped, id, 1)
	}
	stub := newStubAuditor()
	stub.failWith("B", audit.Permanent(errors.New("rejected")))

	orch, _ := newTestOrchestrator(t, stub)
	summary, err := orch.Run(context.Background(), grouped, defaultOpts())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 3 || summary.Failed != 1 {
		t.Fatalf("one bad job must not sink the rest: %+v", summary)
	}
}

func TestRunResumeSkipsCompletedJobs(t *testing.T) {
	grouped := t.TempDir()
	makeJobDir(t, grouped, "A", 1)
	makeJobDir(t, grouped, "B", 0)
	makeJobDir(t, grouped, "C", 1)

	stub := newStubAuditor()
	orch, _ := newTestOrchestrator(t, stub)

	first, err := orch.Run(context.Background(), grouped, defaultOpts())
	if err != nil {
		t.Fatal(err)
	}
	resumeOpts := defaultOpts()
	resumeOpts.ResumeOnly = true
	second, err := orch.Run(context.Background(), grouped, resumeOpts)
	if err != nil {
		t.Fatal(err)
	}

	if second.RunID != first.RunID {
		t.Fatalf("resume should reuse run %s, got %s", first.RunID, second.RunID)
	}
	if second.Skipped != 2 || second.Failed != 1 || second.Succeeded != 0 {
		t.Fatalf("unexpected resume summary %+v", second)
	}
	// Completed jobs were not re-audited.
	if stub.callCount("A") != 1 || stub.callCount("C") != 1 {
		t.Fatalf("resume re-audited completed jobs: A=%d C=%d", stub.callCount("A"), stub.callCount("C"))
	}

	rows, err := report.LoadRows(second.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("resume must not duplicate rows, got %d", len(rows))
	}
}

func TestRunWithoutResumeReauditsEverything(t *testing.T) {
	grouped := t.TempDir()
	makeJobDir(t, grouped, "A", 1)
	makeJobDir(t, grouped, "C", 1)

	stub := newStubAuditor()
	orch, _ := newTestOrchestrator(t, stub)

	if _, err := orch.Run(context.Background(), grouped, defaultOpts()); err != nil {
		t.Fatal(err)
	}
	second, err := orch.Run(context.Background(), grouped, defaultOpts())
	if err != nil {
		t.Fatal(err)
	}

	if second.Succeeded != 2 || second.Skipped != 0 {
		t.Fatalf("default mode must not skip marked jobs: %+v", second)
	}
	if stub.callCount("A") != 2 || stub.callCount("C") != 2 {
		t.Fatalf("expected every job re-audited: A=%d C=%d", stub.callCount("A"), stub.callCount("C"))
	}

	rows, err := report.LoadRows(second.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("re-audit must upsert, not duplicate: %d rows", len(rows))
	}
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		jobs  int
	}{
		{"serial", 1, 4},
		{"bounded", 5, 8},
		{"over-provisioned", 10, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grouped := t.TempDir()
			for i := 0; i < tc.jobs; i++ {
				makeJobDir(t, grouped, string(rune('a'+i)), 1)
			}
			stub := newStubAuditor()
			stub.delay = 20 * time.Millisecond

			orch, _ := newTestOrchestrator(t, stub)
			opts := defaultOpts()
			opts.Concurrency = tc.limit
			summary, err := orch.Run(context.Background(), grouped, opts)
			if err != nil {
				t.Fatal(err)
			}
			if summary.Succeeded != tc.jobs {
				t.Fatalf("expected %d successes, got %+v", tc.jobs, summary)
			}

			max := int(stub.maxSeen.Load())
			if max > tc.limit {
				t.Fatalf("observed %d concurrent audits, limit %d", max, tc.limit)
			}
			if tc.limit == 1 && max != 1 {
				t.Fatalf("serial run observed %d concurrent audits", max)
			}
		})
	}
}

func TestRunRejectsMissingFolder(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newStubAuditor())
	if _, err := orch.Run(context.Background(), "/does/not/exist", defaultOpts()); err == nil {
		t.Fatal("expected error for missing grouped folder")
	}
}

func TestRunRejectsEmptyFolder(t *testing.T) {
	orch, _ := newTestOrchestrator(t, newStubAuditor())
	if _, err := orch.Run(context.Background(), t.TempDir(), defaultOpts()); err == nil {
		t.Fatal("expected error when no job folders exist")
	}
}
