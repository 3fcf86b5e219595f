// Package fileops provides collision-safe, verified file copying for
// materializing audit evidence into output trees.
package fileops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxCopyAttempts bounds retries of the whole temp-write/verify/rename
	// sequence on transient I/O errors.
	maxCopyAttempts = 3
	// maxCollisionSuffix bounds how many numeric suffixes are tried before
	// giving up on an already-occupied destination name.
	maxCollisionSuffix = 100
)

// Copier copies files atomically: content goes to a temporary sibling first,
// the byte count is verified against the source, and only then is the file
// renamed onto its final name. The destination is never left truncated.
type Copier struct {
	logger *slog.Logger
}

func NewCopier(logger *slog.Logger) *Copier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Copier{logger: logger}
}

// Copy copies src to dst. If dst already exists, a numeric suffix is inserted
// before the extension ("doc.pdf" -> "doc_1.pdf") rather than overwriting.
// Failures are reported as false, never as a panic or error: copies are
// best-effort evidence preservation and must not take the caller down.
func (c *Copier) Copy(src, dst string) bool {
	info, err := os.Stat(src)
	if err != nil {
		c.logger.Warn("fileops.copy.stat_error", "src", src, "error", err)
		return false
	}

	target, ok := resolveCollision(dst)
	if !ok {
		c.logger.Warn("fileops.copy.too_many_collisions", "dst", dst)
		return false
	}

	for attempt := 1; attempt <= maxCopyAttempts; attempt++ {
		err = c.copyOnce(src, target, info.Size())
		if err == nil {
			return true
		}
		c.logger.Warn("fileops.copy.attempt_failed",
			"src", src, "dst", target, "attempt", attempt, "error", err)
	}
	return false
}

// copyOnce performs one temp-write + verify + rename cycle, cleaning up the
// temporary file on any failure.
func (c *Copier) copyOnce(src, dst string, wantSize int64) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			c.logger.Warn("fileops.copy.source_close_error", "src", src, "error", cerr)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if written != wantSize {
		_ = os.Remove(tmpName)
		return fmt.Errorf("size mismatch: wrote %d, want %d", written, wantSize)
	}

	// Rename is the atomic visibility point: dst either does not exist or
	// holds the full verified content.
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// resolveCollision picks a destination name that does not exist yet,
// inserting "_N" before the extension when needed.
func resolveCollision(dst string) (string, bool) {
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return dst, true
	}
	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, true
		}
	}
	return "", false
}
