package grouping

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/akintola/customs-audit/internal/fileops"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractJobID(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"2219477116_AWB.pdf", "2219477116"},
		{"2219477116^^13387052^FRML.pdf", "2219477116"},
		{"holdingarea_1470585675_scan_EMA.pdf", "1470585675"},
		{"HoldingArea_42_x.pdf", "42"},
		{"invoice_scan.pdf", UnknownJobID},
		{"", UnknownJobID},
	}
	for _, tc := range cases {
		if got := ExtractJobID(tc.filename); got != tc.want {
			t.Errorf("ExtractJobID(%q) = %q, want %q", tc.filename, got, tc.want)
		}
	}
}

func TestGroupByJob(t *testing.T) {
	groups := GroupByJob([]string{
		"/in/111_AWB.pdf",
		"/in/111_INV.pdf",
		"/in/222_ENTRY.pdf",
		"/in/mystery.pdf",
	})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups["111"]) != 2 {
		t.Fatalf("expected 2 files for job 111, got %d", len(groups["111"]))
	}
	if len(groups[UnknownJobID]) != 1 {
		t.Fatalf("expected 1 unmatched file, got %d", len(groups[UnknownJobID]))
	}
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for name, content := range entries {
		zw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := zw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestScanInputFolderUnpacksZips(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "333_AWB.pdf"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(dir, "export.zip"), map[string]string{
		"444_INV.pdf":    "b",
		"sub/555_DO.PDF": "c",
		"readme.txt":     "skip",
	})

	docs, err := ScanInputFolder(dir, testLogger())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d: %v", len(docs), docs)
	}
	names := make(map[string]bool)
	for _, d := range docs {
		names[filepath.Base(d)] = true
	}
	for _, want := range []string{"333_AWB.pdf", "444_INV.pdf", "555_DO.PDF"} {
		if !names[want] {
			t.Errorf("missing document %s in %v", want, docs)
		}
	}
}

func TestScanInputFolderRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	writeZip(t, filepath.Join(in, "evil.zip"), map[string]string{
		"../escape_123.pdf": "nope",
	})

	docs, err := ScanInputFolder(in, testLogger())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected traversal entry to be skipped, got %v", docs)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape_123.pdf")); !os.IsNotExist(err) {
		t.Fatal("traversal entry escaped the extract dir")
	}
}

func TestOrganize(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	for _, name := range []string{"111_AWB.pdf", "111_INV.pdf", "222_ENTRY.pdf"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := ScanInputFolder(src, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	grouped, err := Organize(GroupByJob(docs), out, fileops.NewCopier(testLogger()), testLogger())
	if err != nil {
		t.Fatalf("organize: %v", err)
	}

	if base := filepath.Base(grouped); len(base) < 9 || base[:8] != "grouped_" {
		t.Fatalf("unexpected grouped folder name %s", base)
	}
	for job, files := range map[string][]string{
		"job_111": {"111_AWB.pdf", "111_INV.pdf"},
		"job_222": {"222_ENTRY.pdf"},
	} {
		for _, f := range files {
			if _, err := os.Stat(filepath.Join(grouped, job, f)); err != nil {
				t.Errorf("missing %s/%s: %v", job, f, err)
			}
		}
	}
}
