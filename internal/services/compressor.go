package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/Lllllllleong/pdfmerge/internal/models"
)

// qualityPresets maps compression levels to Ghostscript PDFSETTINGS.
var qualityPresets = []string{
	"/default",
	"/prepress",
	"/printer",
	"/ebook",
	"/screen",
}

// ghostscriptNames are probed on PATH in order.
var ghostscriptNames = []string{"gs", "gswin32", "gswin64"}

// ValidCompressionLevel reports whether level selects a quality preset.
func ValidCompressionLevel(level int) bool {
	return level >= 0 && level < len(qualityPresets)
}

// Compressor shrinks PDFs with an external Ghostscript process.
type Compressor struct {
	out    io.Writer
	logger *slog.Logger
}

// NewCompressor returns a Compressor printing its report to out.
func NewCompressor(out io.Writer, logger *slog.Logger) *Compressor {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{out: out, logger: logger}
}

// Compress rewrites input into output with the preset selected by level.
// The input is validated before Ghostscript is looked up.
func (c *Compressor) Compress(ctx context.Context, input, output string, level int) (*models.CompressionResult, error) {
	if !ValidCompressionLevel(level) {
		return nil, fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidCompressionLevel, level, len(qualityPresets)-1)
	}

	info, err := os.Stat(input)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInputPath, input)
	}
	if !isPDFName(input) {
		return nil, fmt.Errorf("%w: %s", ErrNotAPDF, input)
	}

	gs, err := FindGhostscript()
	if err != nil {
		return nil, err
	}

	preset := qualityPresets[level]
	fmt.Fprintln(c.out, "Compress PDF...")
	logCtx := c.logger.With("executable", gs, "preset", preset, "input", input, "output", output)
	logCtx.Debug("Starting Ghostscript.")

	cmd := exec.CommandContext(ctx, gs,
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS="+preset,
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-sOutputFile="+output,
		input,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logCtx.Error("Ghostscript failed.", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %v: %s", ErrCompressionFailed, err, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}

	final, err := os.Stat(output)
	if err != nil {
		return nil, fmt.Errorf("%w: no output written: %v", ErrCompressionFailed, err)
	}

	res := &models.CompressionResult{
		Input:        input,
		Output:       output,
		Level:        level,
		Preset:       preset,
		OriginalSize: info.Size(),
		FinalSize:    final.Size(),
	}
	fmt.Fprintf(c.out, "Compression by %.0f%%.\n", res.Ratio()*100)
	fmt.Fprintf(c.out, "Final file size is %.1fMB\n", res.FinalMegabytes())
	logCtx.Info("PDF compressed.", "originalSize", res.OriginalSize, "finalSize", res.FinalSize)
	return res, nil
}

// FindGhostscript returns the first Ghostscript executable found on PATH.
func FindGhostscript() (string, error) {
	for _, name := range ghostscriptNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (%s)", ErrExecutableNotFound, strings.Join(ghostscriptNames, "/"))
}
