package services

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Lllllllleong/pdfmerge/internal/pdftest"
)

func TestListPDFs_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "doc.pdf", 1)
	pdftest.Write(t, dir, "SCAN.PDF", 1)
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	pdftest.Write(t, filepath.Join(dir, "nested.pdf"), "inner.pdf", 1)

	files, err := ListPDFs(dir)
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	got := files.Names()
	slices.Sort(got)
	want := []string{"SCAN.PDF", "doc.pdf"}
	if !slices.Equal(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	for _, f := range files {
		if f.Path != filepath.Join(dir, f.Name) {
			t.Errorf("path %q does not match name %q", f.Path, f.Name)
		}
	}
}

func TestListPDFs_Exclude(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "1.pdf", 1)
	pdftest.Write(t, dir, "output.pdf", 1)

	files, err := ListPDFs(dir, "output.pdf")
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	if got := files.Names(); !slices.Equal(got, []string{"1.pdf"}) {
		t.Errorf("names = %v, want [1.pdf]", got)
	}
}

func TestListPDFs_EmptyDirectory(t *testing.T) {
	files, err := ListPDFs(t.TempDir())
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", files.Names())
	}
}

func TestListPDFs_MissingDirectory(t *testing.T) {
	_, err := ListPDFs(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestListPDFs_NotADirectory(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "a.pdf", 1)
	_, err := ListPDFs(path)
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("err = %v, want ErrDirectoryNotFound", err)
	}
}

func TestListPDFs_FollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()
	pdftest.Write(t, dir, "1.pdf", 1)
	target := pdftest.Write(t, elsewhere, "real.pdf", 2)
	if err := os.Mkdir(filepath.Join(elsewhere, "folder.pdf"), 0o755); err != nil {
		t.Fatal(err)
	}
	links := map[string]string{
		"2.pdf":      target,
		"folder.pdf": filepath.Join(elsewhere, "folder.pdf"),
		"broken.pdf": filepath.Join(elsewhere, "missing.pdf"),
	}
	for name, to := range links {
		if err := os.Symlink(to, filepath.Join(dir, name)); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}

	files, err := ListPDFs(dir)
	if err != nil {
		t.Fatalf("ListPDFs: %v", err)
	}
	got := files.Names()
	slices.Sort(got)
	if want := []string{"1.pdf", "2.pdf"}; !slices.Equal(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}
