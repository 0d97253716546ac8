package processor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
	"github.com/adverant/nexus/medocr-worker/internal/extraction"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
)

const rasterizerName = "pdftoppm"

// pageSet owns the page images of one request. Every page is released as
// soon as it has been processed; releaseAll removes whatever is left,
// including the request directory.
type pageSet struct {
	dir    string
	live   map[string]struct{}
	logger *logging.Logger
}

func newPageSet(tempDir, requestID string, logger *logging.Logger) (*pageSet, error) {
	dir, err := os.MkdirTemp(tempDir, "medocr-"+requestID+"-*")
	if err != nil {
		return nil, err
	}
	return &pageSet{dir: dir, live: make(map[string]struct{}), logger: logger}, nil
}

func (s *pageSet) track(paths []string) {
	for _, p := range paths {
		s.live[p] = struct{}{}
	}
}

func (s *pageSet) release(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove page image", "path", path, "error", err)
	}
	delete(s.live, path)
}

func (s *pageSet) releaseAll() {
	for p := range s.live {
		s.release(p)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("Failed to remove page directory", "dir", s.dir, "error", err)
	}
}

// ProcessMultiPage rasterizes a paginated document and processes the pages in
// order. A page that fails contributes no lines and is left out of the text.
func (p *DocumentProcessor) ProcessMultiPage(ctx context.Context, path string) (result *DocumentResult) {
	start := time.Now()
	requestID := uuid.New().String()
	logger := p.logger.With("requestId", requestID)

	resolved, perr := p.resolvePath(path)
	if perr != nil {
		logger.Warn("Rejected input", "path", path, "code", perr.Code, "error", perr.Message)
		return failureResult(perr, start)
	}

	if !p.engine.Usable() {
		logger.Info("Serving mock result", "path", resolved)
		return MockResult()
	}

	if p.config.Rasterizer == nil {
		return failureResult(apperrors.NewPrerequisiteMissingError(rasterizerName, fmt.Errorf("no rasterizer configured")), start)
	}
	if err := p.config.Rasterizer.Available(); err != nil {
		logger.Error("Rasterizer unavailable", "error", err)
		return failureResult(apperrors.NewPrerequisiteMissingError(rasterizerName, err), start)
	}

	pages, err := newPageSet(p.config.TempDir, requestID, logger)
	if err != nil {
		return failureResult(apperrors.NewEngineInvocationError(resolved, fmt.Errorf("failed to create page directory: %w", err)), start)
	}
	defer pages.releaseAll()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Multi-page processing panicked", "path", resolved, "panic", r)
			result = failureResult(apperrors.NewEngineInvocationError(resolved, fmt.Errorf("panic: %v", r)), start)
		}
	}()

	paths, err := p.config.Rasterizer.SplitToPages(ctx, resolved, pages.dir)
	pages.track(paths)
	if err != nil {
		logger.Error("Failed to split document into pages", "path", resolved, "error", err)
		return failureResult(apperrors.NewEngineInvocationError(resolved, err), start)
	}

	logger.Info("Processing pages", "path", resolved, "pages", len(paths))

	var text strings.Builder
	stats := make([]ocr.PageStat, 0, len(paths))
	totalLines := 0

	for i, pagePath := range paths {
		pageNum := i + 1
		if err := ctx.Err(); err != nil {
			logger.Warn("Stopping before page", "page", pageNum, "error", err)
			return failureResult(apperrors.NewProcessingTimeoutError("", time.Since(start), err), start)
		}

		page, err := p.recognizePage(ctx, pagePath)
		pages.release(pagePath)
		if err != nil {
			logger.Warn("Page failed, skipping", "page", pageNum, "error", err)
			stats = append(stats, ocr.PageStat{})
			continue
		}

		stats = append(stats, ocr.PageStat{Lines: len(page.Lines), Confidence: page.Confidence()})
		totalLines += len(page.Lines)
		fmt.Fprintf(&text, "\n--- Page %d ---\n%s\n", pageNum, page.Text())
	}

	extracted := strings.TrimSpace(text.String())
	result = &DocumentResult{
		Success:        true,
		ExtractedText:  extracted,
		StructuredData: extraction.Extract(extracted),
		Confidence:     roundConfidence(ocr.WeightedMean(stats)),
		ProcessingTime: elapsedSeconds(start),
		PagesProcessed: len(paths),
		LinesDetected:  totalLines,
	}

	logger.Info("Multi-page processing completed",
		"path", resolved,
		"pages", result.PagesProcessed,
		"lines", result.LinesDetected,
		"confidence", result.Confidence,
		"durationSeconds", result.ProcessingTime)

	return result
}
