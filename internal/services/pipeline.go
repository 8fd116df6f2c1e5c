package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdfmerge/internal/config"
	"github.com/Lllllllleong/pdfmerge/internal/models"
)

// PipelineResult describes the artifact left at the output path.
type PipelineResult struct {
	Merge       *models.MergeResult
	Compression *models.CompressionResult // nil when compression was skipped
}

// Pipeline lists, sorts, merges and optionally compresses the PDFs of a
// directory. Every step runs synchronously.
type Pipeline struct {
	merger     *Merger
	compressor *Compressor
	out        io.Writer
	logger     *slog.Logger
}

// NewPipeline returns a Pipeline printing progress to out.
func NewPipeline(out io.Writer, logger *slog.Logger) *Pipeline {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		merger:     NewMerger(logger),
		compressor: NewCompressor(out, logger),
		out:        out,
		logger:     logger,
	}
}

// Run merges the PDFs of cfg.InputDir into cfg.OutputPath(). When compression
// is requested the merged file is compressed into a temporary file in the
// same directory which then replaces the output. A failed compression leaves
// the uncompressed output in place.
func (p *Pipeline) Run(ctx context.Context, cfg config.Config) (*PipelineResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	output := cfg.OutputPath()
	logCtx := p.logger.With("inputDir", cfg.InputDir, "output", output)

	fmt.Fprintln(p.out, "Load PDFs...")
	files, err := ListPDFs(cfg.InputDir, cfg.Output)
	if err != nil {
		return nil, err
	}
	files = SortFiles(files, cfg.Sort)
	logCtx.Info("Loaded PDFs.", "fileCount", len(files), "sorted", cfg.Sort)

	fmt.Fprintln(p.out, "Merge PDFs...")
	fmt.Fprintln(p.out, "Save PDF...")
	merged, err := p.merger.Merge(files, output)
	if err != nil {
		logCtx.Error("Failed to merge PDFs", "error", err)
		return nil, err
	}
	res := &PipelineResult{Merge: merged}

	if !cfg.CompressionRequested() {
		return res, nil
	}

	tmp, err := tempPath(cfg.InputDir)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.out, "Create %s...\n", filepath.Base(tmp))
	compressed, err := p.compressor.Compress(ctx, output, tmp, cfg.Compression)
	if err != nil {
		_ = os.Remove(tmp)
		logCtx.Error("Compression failed, keeping uncompressed output.", "error", err)
		return nil, err
	}

	fmt.Fprintf(p.out, "Delete %s...\n", filepath.Base(tmp))
	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to replace %s with compressed file: %w", output, err)
	}
	compressed.Output = output
	res.Compression = compressed
	return res, nil
}

// tempPath picks an unused tmp_NNNNNN.pdf name inside dir.
func tempPath(dir string) (string, error) {
	for range 10 {
		p := filepath.Join(dir, fmt.Sprintf("tmp_%06d.pdf", 100000+rand.IntN(900000)))
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
	}
	return "", fmt.Errorf("failed to pick a temporary file name in %s", dir)
}
