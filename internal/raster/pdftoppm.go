/**
 * PDF Rasterizer
 *
 * Splits a PDF into one PNG per page with poppler's pdftoppm. Page images are
 * written under the caller's directory, so the caller owns their cleanup.
 */

package raster

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

const (
	DefaultDPI  = 200
	pagePrefix  = "page"
	pdftoppmBin = "pdftoppm"
)

// Config controls how pages are rendered
type Config struct {
	Pdftoppm string // binary name or path
	DPI      int
	MaxPages int // 0 renders every page
}

// PdftoppmRasterizer renders PDF pages to PNG images
type PdftoppmRasterizer struct {
	cfg    Config
	runner Runner
	lookup func(string) (string, error)
	logger *logging.Logger
}

// NewPdftoppm creates a rasterizer that shells out through runner
func NewPdftoppm(cfg Config, runner Runner) *PdftoppmRasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = pdftoppmBin
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PdftoppmRasterizer{
		cfg:    cfg,
		runner: runner,
		lookup: exec.LookPath,
		logger: logging.NewLogger("raster"),
	}
}

// Available reports whether the pdftoppm binary can be found
func (r *PdftoppmRasterizer) Available() error {
	if _, err := r.lookup(r.cfg.Pdftoppm); err != nil {
		return fmt.Errorf("%s not found: %w", r.cfg.Pdftoppm, err)
	}
	return nil
}

// PageCount reads the document's page tree
func (r *PdftoppmRasterizer) PageCount(documentPath string) (int, error) {
	f, reader, err := pdf.Open(documentPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// SplitToPages renders documentPath into outDir and returns the page images in page order
func (r *PdftoppmRasterizer) SplitToPages(ctx context.Context, documentPath, outDir string) ([]string, error) {
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}

	last := r.cfg.MaxPages
	if count, err := r.PageCount(documentPath); err != nil {
		// pdftoppm copes with some files the pure-Go parser cannot read
		r.logger.Warn("Could not count PDF pages", "path", documentPath, "error", err)
	} else {
		if count == 0 {
			return nil, fmt.Errorf("PDF has no pages")
		}
		if last <= 0 || last > count {
			last = count
		}
	}
	if last > 0 {
		args = append(args, "-l", strconv.Itoa(last))
	}

	prefix := filepath.Join(outDir, pagePrefix)
	args = append(args, documentPath, prefix)

	if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, r.logger, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	sortByPageNumber(matches)
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}

	r.logger.Debug("Rendered PDF pages", "path", documentPath, "pages", len(matches), "dpi", r.cfg.DPI)
	return matches, nil
}

// sortByPageNumber orders page-N.png files numerically; pdftoppm only zero-pads
// to the width of the last page number
func sortByPageNumber(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
