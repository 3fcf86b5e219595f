package constants

import "strings"

// DocumentExtensions holds the allowed file extensions for audit documents.
var DocumentExtensions = map[string]struct{}{
	"pdf": {},
}

// JobFolderPrefix is the naming convention for job subfolders inside a
// grouped input folder.
const JobFolderPrefix = "job_"

// MarkerFileName is the sentinel written into a job's input folder once the
// job has been successfully audited. Its presence means "complete"; its
// content records which run completed it.
const MarkerFileName = ".audit_complete"

// RunMetadataFileName tracks the run associated with a grouped folder so a
// restarted batch resumes into the same run directory.
const RunMetadataFileName = ".audit_run.json"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsDocumentExt checks whether a file extension belongs to an audit document.
func IsDocumentExt(ext string) bool {
	_, ok := DocumentExtensions[NormalizeExt(ext)]
	return ok
}
