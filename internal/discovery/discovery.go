// Package discovery enumerates auditable jobs inside a grouped folder.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/akintola/customs-audit/constants"
)

// Job is one audit unit: a job folder and the documents directly inside it.
// Documents is sorted and may be empty; zero-document jobs are surfaced so
// the batch can record them as failed rather than silently skip them.
type Job struct {
	ID        string
	Dir       string
	Documents []string
}

// ListJobs scans the immediate children of groupedFolder for job folders
// and collects their document files non-recursively. Results are sorted by
// job ID.
func ListJobs(groupedFolder string) ([]Job, error) {
	entries, err := os.ReadDir(groupedFolder)
	if err != nil {
		return nil, fmt.Errorf("read grouped folder: %w", err)
	}

	var jobs []Job
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), constants.JobFolderPrefix) {
			continue
		}
		dir := filepath.Join(groupedFolder, e.Name())
		docs, err := listDocuments(dir)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{
			ID:        strings.TrimPrefix(e.Name(), constants.JobFolderPrefix),
			Dir:       dir,
			Documents: docs,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func listDocuments(jobDir string) ([]string, error) {
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return nil, fmt.Errorf("read job folder %s: %w", jobDir, err)
	}
	var docs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if constants.IsDocumentExt(filepath.Ext(e.Name())) {
			docs = append(docs, filepath.Join(jobDir, e.Name()))
		}
	}
	sort.Strings(docs)
	return docs, nil
}
