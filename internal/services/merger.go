package services

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Lllllllleong/pdfmerge/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger concatenates PDFs with pdfcpu, bookmarking each source file.
type Merger struct {
	logger *slog.Logger
}

// NewMerger returns a Merger logging to logger (slog.Default when nil).
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

func newPDFConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Merge writes the pages of files, in order, to output. Every source gets a
// top-level bookmark titled with its file name that points at its first page,
// and the document opens with the outline panel shown. Sources are checked
// before output is touched; output is replaced only when the whole merge
// succeeds.
func (m *Merger) Merge(files models.FileSet, output string) (*models.MergeResult, error) {
	if len(files) == 0 {
		return nil, ErrNoPDFFiles
	}

	bookmarks, total, err := m.planBookmarks(files)
	if err != nil {
		return nil, err
	}

	stage := output + ".merge"
	defer os.Remove(stage)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	if len(paths) == 1 {
		// A single source has nothing to merge with; rewrite it instead.
		err = api.OptimizeFile(paths[0], stage, newPDFConfig())
	} else {
		err = api.MergeCreateFile(paths, stage, false, newPDFConfig())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailure, err)
	}

	bms := make([]pdfcpu.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		bms[i] = pdfcpu.Bookmark{Title: b.Title, PageFrom: b.PageFrom}
	}
	if err := api.AddBookmarksFile(stage, "", bms, true, newPDFConfig()); err != nil {
		return nil, fmt.Errorf("%w: adding bookmarks: %v", ErrMergeFailure, err)
	}
	if err := api.SetPageModeFile(stage, "", model.PageModeUseOutlines, newPDFConfig()); err != nil {
		return nil, fmt.Errorf("%w: setting page mode: %v", ErrMergeFailure, err)
	}

	if err := os.Rename(stage, output); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMergeFailure, err)
	}

	m.logger.Info("PDFs merged.", "output", output, "fileCount", len(files), "pageCount", total)
	return &models.MergeResult{
		Output:    output,
		Files:     files,
		PageCount: total,
		Bookmarks: bookmarks,
	}, nil
}

// planBookmarks reads every source's page count and returns the first page
// each one will occupy in the merged document.
func (m *Merger) planBookmarks(files models.FileSet) ([]models.Bookmark, int, error) {
	bookmarks := make([]models.Bookmark, 0, len(files))
	next := 1
	for _, f := range files {
		n, err := api.PageCountFile(f.Path)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrMergeFailure, f.Name, err)
		}
		if n < 1 {
			return nil, 0, fmt.Errorf("%w: %s has no pages", ErrMergeFailure, f.Name)
		}
		m.logger.Debug("Source PDF loaded.", "file", f.Name, "pageCount", n)
		bookmarks = append(bookmarks, models.Bookmark{Title: f.Name, PageFrom: next})
		next += n
	}
	return bookmarks, next - 1, nil
}
