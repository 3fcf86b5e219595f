// Package grouping turns a loose pile of scanned customs documents into the
// job-folder layout the batch orchestrator consumes: one job_<id>/ folder per
// shipment, identified by the numeric prefix of each filename.
package grouping

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/akintola/customs-audit/constants"
	"github.com/akintola/customs-audit/internal/fileops"
)

// UnknownJobID is returned when no job identifier can be derived from a
// filename. Files under this ID still get grouped so they are not silently
// dropped.
const UnknownJobID = "unknown"

var (
	leadingDigits      = regexp.MustCompile(`^(\d+)`)
	holdingAreaPattern = regexp.MustCompile(`(?i)^holdingarea_(\d+)`)
)

// ExtractJobID derives the job ID from a document filename: the leading
// digits before the first separator, with special handling for the
// "holdingarea_" prefix used by some upstream exports.
//
//	"2219477116_AWB.pdf"                  -> "2219477116"
//	"2219477116^^13387052^FRML.pdf"       -> "2219477116"
//	"holdingarea_1470585675_...EMA.pdf"   -> "1470585675"
func ExtractJobID(filename string) string {
	if m := holdingAreaPattern.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if m := leadingDigits.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return UnknownJobID
}

// GroupByJob groups document paths by the job ID extracted from each
// filename.
func GroupByJob(paths []string) map[string][]string {
	groups := make(map[string][]string)
	for _, p := range paths {
		id := ExtractJobID(filepath.Base(p))
		groups[id] = append(groups[id], p)
	}
	return groups
}

// ScanInputFolder collects all document files under dir (recursive,
// case-insensitive extension match), first unpacking any zip archives found
// at the top level into a subfolder named after each archive. Extraction
// failures are logged and skipped; the scan continues.
func ScanInputFolder(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input folder: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || constants.NormalizeExt(filepath.Ext(e.Name())) != "zip" {
			continue
		}
		archive := filepath.Join(dir, e.Name())
		if err := extractZip(archive, logger); err != nil {
			logger.Warn("grouping.zip.extract_error", "archive", archive, "error", err)
		}
	}

	seen := make(map[string]struct{})
	var docs []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("grouping.scan.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !constants.IsDocumentExt(filepath.Ext(path)) {
			return nil
		}
		resolved := path
		if abs, aerr := filepath.Abs(path); aerr == nil {
			resolved = abs
		}
		if _, dup := seen[resolved]; dup {
			return nil
		}
		seen[resolved] = struct{}{}
		docs = append(docs, resolved)
		return nil
	})
	if err != nil {
		return docs, fmt.Errorf("walk: %w", err)
	}

	sort.Strings(docs)
	logger.Info("grouping.scan.ok", "dir", dir, "documents", len(docs))
	return docs, nil
}

// Organize materializes grouped documents into a timestamped grouped folder:
//
//	baseDir/grouped_2006-01-02_150405/job_<id>/<original filename>
//
// Copy failures are logged per file and do not abort organizing.
func Organize(groups map[string][]string, baseDir string, copier *fileops.Copier, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if copier == nil {
		copier = fileops.NewCopier(logger)
	}

	stamp := time.Now().Format("2006-01-02_150405")
	groupedFolder := filepath.Join(baseDir, "grouped_"+stamp)
	if err := os.MkdirAll(groupedFolder, 0o755); err != nil {
		return "", fmt.Errorf("create grouped folder: %w", err)
	}

	copied := 0
	for jobID, files := range groups {
		jobFolder := filepath.Join(groupedFolder, constants.JobFolderPrefix+jobID)
		if err := os.MkdirAll(jobFolder, 0o755); err != nil {
			return groupedFolder, fmt.Errorf("create job folder %s: %w", jobFolder, err)
		}
		for _, src := range files {
			dst := filepath.Join(jobFolder, filepath.Base(src))
			if copier.Copy(src, dst) {
				copied++
			} else {
				logger.Warn("grouping.organize.copy_failed", "job_id", jobID, "src", src)
			}
		}
	}

	logger.Info("grouping.organize.ok",
		"grouped_folder", groupedFolder,
		"jobs", len(groups),
		"files_copied", copied,
	)
	return groupedFolder, nil
}

// extractZip unpacks archive into a sibling directory named after the
// archive's stem. Entries escaping the target directory are rejected.
func extractZip(archive string, logger *slog.Logger) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			logger.Warn("grouping.zip.close_error", "archive", archive, "error", cerr)
		}
	}()

	stem := filepath.Base(archive)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	target := filepath.Join(filepath.Dir(archive), stem)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create extract dir: %w", err)
	}

	extracted := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dst := filepath.Join(target, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(target, dst)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			logger.Warn("grouping.zip.unsafe_entry", "archive", archive, "entry", f.Name)
			continue
		}
		if err := writeZipEntry(f, dst); err != nil {
			logger.Warn("grouping.zip.entry_error", "archive", archive, "entry", f.Name, "error", err)
			continue
		}
		extracted++
	}
	logger.Info("grouping.zip.extracted", "archive", archive, "files", extracted)
	return nil
}

func writeZipEntry(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
