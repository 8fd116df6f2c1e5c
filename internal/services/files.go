package services

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/pdfmerge/internal/models"
)

// isPDFName reports whether name carries a .pdf extension, ignoring case.
func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// ListPDFs returns the PDF files directly inside dir, in directory listing
// order. Symlinks count when they resolve to a regular file. Subdirectories
// are not visited. Names in exclude are skipped, which
// keeps a previous output from being merged into the next one.
func ListPDFs(dir string, exclude ...string) (models.FileSet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	var files models.FileSet
	for _, e := range entries {
		if !isPDFName(e.Name()) {
			continue
		}
		if _, ok := skip[e.Name()]; ok {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !isRegularFile(p, e) {
			continue
		}
		files = append(files, models.SourceFile{Path: p, Name: e.Name()})
	}
	return files, nil
}

// isRegularFile follows a symlink entry to its target. Broken links and links
// to directories are not regular files.
func isRegularFile(path string, e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
