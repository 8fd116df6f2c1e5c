package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Lllllllleong/pdfmerge/internal/config"
	"github.com/Lllllllleong/pdfmerge/internal/pdftest"
)

func runPipeline(t *testing.T, cfg config.Config) (*PipelineResult, string, error) {
	t.Helper()
	var out bytes.Buffer
	res, err := NewPipeline(&out, nil).Run(context.Background(), cfg)
	return res, out.String(), err
}

func leftoverTemps(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "tmp_*.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestPipeline_NumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2.pdf", "1.pdf", "3.pdf"} {
		pdftest.Write(t, dir, name, 1)
	}

	res, log, err := runPipeline(t, config.Default(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := filepath.Join(dir, "output.pdf")
	if res.Merge.Output != out {
		t.Errorf("Output = %q, want %q", res.Merge.Output, out)
	}
	if got := pageCount(t, out); got != 3 {
		t.Errorf("output has %d pages, want 3", got)
	}
	titles, pages := readOutline(t, out)
	if !slices.Equal(titles, []string{"1.pdf", "2.pdf", "3.pdf"}) {
		t.Errorf("bookmarks = %v", titles)
	}
	if !slices.Equal(pages, []int{1, 2, 3}) {
		t.Errorf("bookmark pages = %v", pages)
	}
	if res.Compression != nil {
		t.Error("compression ran without being requested")
	}
	for _, line := range []string{"Load PDFs...", "Merge PDFs...", "Save PDF..."} {
		if !strings.Contains(log, line) {
			t.Errorf("progress output missing %q:\n%s", line, log)
		}
	}
}

func TestPipeline_LexicographicFallback(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "b.pdf", 1)
	pdftest.Write(t, dir, "a.pdf", 2)

	res, _, err := runPipeline(t, config.Default(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Merge.Files.Names(); !slices.Equal(got, []string{"a.pdf", "b.pdf"}) {
		t.Errorf("order = %v", got)
	}
	_, pages := readOutline(t, res.Merge.Output)
	if !slices.Equal(pages, []int{1, 3}) {
		t.Errorf("bookmark pages = %v, want [1 3]", pages)
	}
}

func TestPipeline_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runPipeline(t, config.Default(dir))
	if !errors.Is(err, ErrNoPDFFiles) {
		t.Fatalf("err = %v, want ErrNoPDFFiles", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Error("no output should be written for an empty directory")
	}
}

func TestPipeline_IgnoresNonPDFs(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "doc.pdf", 1)
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, _, err := runPipeline(t, config.Default(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Merge.Files.Names(); !slices.Equal(got, []string{"doc.pdf"}) {
		t.Errorf("files = %v", got)
	}
}

func TestPipeline_RerunDoesNotMergePreviousOutput(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "1.pdf", 1)
	pdftest.Write(t, dir, "2.pdf", 1)

	for range 2 {
		res, _, err := runPipeline(t, config.Default(dir))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Merge.PageCount != 2 {
			t.Fatalf("PageCount = %d, want 2", res.Merge.PageCount)
		}
	}
}

func TestPipeline_Unsorted(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "b2.pdf", 1)
	pdftest.Write(t, dir, "a10.pdf", 1)
	cfg := config.Default(dir)
	cfg.Sort = false

	res, _, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// os.ReadDir lists by name.
	if got := res.Merge.Files.Names(); !slices.Equal(got, []string{"a10.pdf", "b2.pdf"}) {
		t.Errorf("order = %v", got)
	}
}

func TestPipeline_Compression(t *testing.T) {
	fakeGhostscript(t, `cp "$in" "$out"`)
	dir := t.TempDir()
	pdftest.Write(t, dir, "1.pdf", 1)
	pdftest.Write(t, dir, "2.pdf", 2)
	cfg := config.Default(dir)
	cfg.Output = "merged.pdf"
	cfg.Compression = 4

	res, log, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := filepath.Join(dir, "merged.pdf")
	if res.Compression == nil {
		t.Fatal("expected a compression result")
	}
	if res.Compression.Output != out {
		t.Errorf("compressed output = %q, want %q", res.Compression.Output, out)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != res.Compression.FinalSize {
		t.Errorf("output size %d, want compressed size %d", info.Size(), res.Compression.FinalSize)
	}
	if got := pageCount(t, out); got != 3 {
		t.Errorf("output has %d pages, want 3", got)
	}
	if temps := leftoverTemps(t, dir); len(temps) != 0 {
		t.Errorf("temporary files left behind: %v", temps)
	}
	for _, line := range []string{"Create tmp_", "Compress PDF...", "Delete tmp_"} {
		if !strings.Contains(log, line) {
			t.Errorf("progress output missing %q:\n%s", line, log)
		}
	}
}

func TestPipeline_CompressionFailureKeepsMergedOutput(t *testing.T) {
	fakeGhostscript(t, `echo broken > "$out"; exit 1`)
	dir := t.TempDir()
	pdftest.Write(t, dir, "1.pdf", 1)
	pdftest.Write(t, dir, "2.pdf", 1)
	cfg := config.Default(dir)
	cfg.Compression = 0

	_, _, err := runPipeline(t, cfg)
	if !errors.Is(err, ErrCompressionFailed) {
		t.Fatalf("err = %v, want ErrCompressionFailed", err)
	}
	if got := pageCount(t, filepath.Join(dir, "output.pdf")); got != 2 {
		t.Errorf("merged output has %d pages, want 2", got)
	}
	if temps := leftoverTemps(t, dir); len(temps) != 0 {
		t.Errorf("temporary files left behind: %v", temps)
	}
}

func TestPipeline_MissingInputDirectory(t *testing.T) {
	_, _, err := runPipeline(t, config.Default(filepath.Join(t.TempDir(), "nope")))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestTempPath(t *testing.T) {
	dir := t.TempDir()
	p, err := tempPath(dir)
	if err != nil {
		t.Fatalf("tempPath: %v", err)
	}
	if filepath.Dir(p) != dir {
		t.Errorf("temp file %q outside %q", p, dir)
	}
	base := filepath.Base(p)
	if len(base) != len("tmp_123456.pdf") || !strings.HasPrefix(base, "tmp_") || base[4] == '0' {
		t.Errorf("unexpected temp name %q", base)
	}
}
