// Package runmeta owns the durable state that makes batches resumable: the
// run-metadata file colocated with each grouped folder, run-ID allocation in
// the output root, and the per-job completion markers.
package runmeta

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akintola/customs-audit/constants"
)

// Run identifies one batch execution and its output locations. A grouped
// folder has at most one live Run; repeated invocations reuse it until the
// metadata is cleared or the run directory disappears.
type Run struct {
	RunID     string    `json:"run_id"`
	RunPath   string    `json:"run_path"`
	CSVPath   string    `json:"csv_path,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager allocates and persists Runs under a fixed output root.
type Manager struct {
	outputRoot string
	logger     *slog.Logger
	now        func() time.Time
}

func NewManager(outputRoot string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{outputRoot: outputRoot, logger: logger, now: time.Now}
}

// OutputRoot returns the root directory runs are created under.
func (m *Manager) OutputRoot() string { return m.outputRoot }

// Acquire returns the Run recorded for groupedFolder if its run directory
// still exists, otherwise allocates a new run, creates its directory, and
// persists fresh metadata. A corrupt or unreadable metadata file is treated
// as absent, never surfaced to the caller.
func (m *Manager) Acquire(groupedFolder string) (Run, error) {
	if existing, ok := m.load(groupedFolder); ok {
		if _, err := os.Stat(existing.RunPath); err == nil {
			m.logger.Info("runmeta.acquire.resume", "run_id", existing.RunID, "run_path", existing.RunPath)
			return existing, nil
		}
		m.logger.Warn("runmeta.acquire.stale_run_path", "run_id", existing.RunID, "run_path", existing.RunPath)
	}

	runID, err := m.nextRunID()
	if err != nil {
		return Run{}, fmt.Errorf("allocate run id: %w", err)
	}
	runPath := filepath.Join(m.outputRoot, runID)
	if err := os.MkdirAll(runPath, 0o755); err != nil {
		return Run{}, fmt.Errorf("create run directory: %w", err)
	}

	run := Run{RunID: runID, RunPath: runPath, UpdatedAt: m.now()}
	if err := m.Save(groupedFolder, run); err != nil {
		return Run{}, err
	}
	m.logger.Info("runmeta.acquire.new", "run_id", runID, "run_path", runPath)
	return run, nil
}

// Save writes the metadata file for groupedFolder, refreshing UpdatedAt.
func (m *Manager) Save(groupedFolder string, run Run) error {
	run.UpdatedAt = m.now()
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}
	path := filepath.Join(groupedFolder, constants.RunMetadataFileName)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}

func (m *Manager) load(groupedFolder string) (Run, bool) {
	path := filepath.Join(groupedFolder, constants.RunMetadataFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		return Run{}, false
	}
	var run Run
	if err := json.Unmarshal(b, &run); err != nil || run.RunID == "" || run.RunPath == "" {
		m.logger.Warn("runmeta.load.corrupt_metadata", "path", path)
		return Run{}, false
	}
	return run, true
}

var runSeqPattern = regexp.MustCompile(`_run_(\d+)$`)

// nextRunID returns "<today>_run_<NNN>" where NNN is one plus the highest
// existing sequence for today's date in the output root.
func (m *Manager) nextRunID() (string, error) {
	today := m.now().Format("2006-01-02")
	if err := os.MkdirAll(m.outputRoot, 0o755); err != nil {
		return "", fmt.Errorf("create output root: %w", err)
	}
	entries, err := os.ReadDir(m.outputRoot)
	if err != nil {
		return "", fmt.Errorf("read output root: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), today) {
			continue
		}
		if match := runSeqPattern.FindStringSubmatch(e.Name()); match != nil {
			if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return fmt.Sprintf("%s_run_%03d", today, highest+1), nil
}

// MarkerState classifies a job's completion marker. Bare existence is not
// trusted: a marker with no readable content is reported as corrupt so the
// job can be reprocessed instead of silently skipped.
type MarkerState int

const (
	MarkerPending MarkerState = iota // no marker file
	MarkerComplete
	MarkerCorrupt // marker exists but is empty or unreadable
)

// MarkerStateOf inspects the completion marker inside jobDir.
func MarkerStateOf(jobDir string) MarkerState {
	path := filepath.Join(jobDir, constants.MarkerFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return MarkerPending
		}
		return MarkerCorrupt
	}
	if strings.TrimSpace(string(b)) == "" {
		return MarkerCorrupt
	}
	return MarkerComplete
}

// WriteMarker records jobDir as completed by runID. Written strictly after
// the job's result has reached the aggregate artifacts.
func WriteMarker(jobDir, runID string) error {
	path := filepath.Join(jobDir, constants.MarkerFileName)
	content := fmt.Sprintf("Completed: %s\n", runID)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// ClearMarkers removes all completion markers from job folders under
// groupedFolder, and optionally the run-metadata file so the next batch
// allocates a fresh run. Returns the number of markers removed.
func ClearMarkers(groupedFolder string, clearMetadata bool) (int, error) {
	entries, err := os.ReadDir(groupedFolder)
	if err != nil {
		return 0, fmt.Errorf("read grouped folder: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), constants.JobFolderPrefix) {
			continue
		}
		marker := filepath.Join(groupedFolder, e.Name(), constants.MarkerFileName)
		if err := os.Remove(marker); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove marker %s: %w", marker, err)
		}
	}
	if clearMetadata {
		meta := filepath.Join(groupedFolder, constants.RunMetadataFileName)
		if err := os.Remove(meta); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove run metadata: %w", err)
		}
	}
	return removed, nil
}

// StatusReport summarizes marker state across a grouped folder.
type StatusReport struct {
	Total         int
	Completed     int
	Pending       int
	CompletedJobs []string
	PendingJobs   []string
}

// Status reports which jobs in groupedFolder carry a completion marker.
// Corrupt markers count as pending.
func Status(groupedFolder string) (StatusReport, error) {
	entries, err := os.ReadDir(groupedFolder)
	if err != nil {
		return StatusReport{}, fmt.Errorf("read grouped folder: %w", err)
	}
	var report StatusReport
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), constants.JobFolderPrefix) {
			continue
		}
		jobID := strings.TrimPrefix(e.Name(), constants.JobFolderPrefix)
		if MarkerStateOf(filepath.Join(groupedFolder, e.Name())) == MarkerComplete {
			report.CompletedJobs = append(report.CompletedJobs, jobID)
		} else {
			report.PendingJobs = append(report.PendingJobs, jobID)
		}
	}
	sort.Strings(report.CompletedJobs)
	sort.Strings(report.PendingJobs)
	report.Completed = len(report.CompletedJobs)
	report.Pending = len(report.PendingJobs)
	report.Total = report.Completed + report.Pending
	return report, nil
}
