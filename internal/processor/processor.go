/**
 * Document Processor for the medical OCR worker
 *
 * Turns a scanned report into text and structured clinical fields:
 * - resolves the input path against the uploads directory
 * - routes to the real OCR engine, or to the mock while none is available
 * - normalizes engine output, aggregates confidence, extracts fields
 * - splits PDFs into pages and processes them one at a time
 *
 * Failures never escape as errors: every call returns a DocumentResult.
 */

package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
	"github.com/adverant/nexus/medocr-worker/internal/extraction"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
)

// allowedExtensions are the upload types the pipeline accepts
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".pdf":  true,
}

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	Process(ctx context.Context, path string) *DocumentResult
}

// Rasterizer splits a paginated document into one image per page
type Rasterizer interface {
	Available() error
	SplitToPages(ctx context.Context, documentPath, outDir string) ([]string, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Engine      ocr.Availability // resolved once at startup
	Rasterizer  Rasterizer       // nil disables multi-page input
	UploadsDir  string           // base for relative paths
	TempDir     string           // parent of per-request page directories
	MaxFileSize int64            // 0 disables the check
	Logger      *logging.Logger
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config *ProcessorConfig
	engine ocr.Availability
	logger *logging.Logger
}

// HealthStatus reports engine state at a point in time
type HealthStatus struct {
	Status              string    `json:"status"`
	Engine              string    `json:"engine"`
	OCRAvailable        bool      `json:"ocr_available"`
	RasterizerAvailable bool      `json:"rasterizer_available"`
	Reason              string    `json:"reason,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}

	if !cfg.Engine.Usable() {
		logger.Warn("No OCR engine available, all requests will be mocked",
			"engine", cfg.Engine.Name,
			"reason", cfg.Engine.Reason)
	}

	return &DocumentProcessor{
		config: cfg,
		engine: cfg.Engine,
		logger: logger,
	}, nil
}

// Process dispatches PDFs to the multi-page pipeline and everything else to
// the single image pipeline
func (p *DocumentProcessor) Process(ctx context.Context, path string) *DocumentResult {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return p.ProcessMultiPage(ctx, path)
	}
	return p.ProcessDocument(ctx, path)
}

// ProcessDocument runs OCR and field extraction on a single image
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, path string) (result *DocumentResult) {
	start := time.Now()

	resolved, perr := p.resolvePath(path)
	if perr != nil {
		p.logger.Warn("Rejected input", "path", path, "code", perr.Code, "error", perr.Message)
		return failureResult(perr, start)
	}

	if !p.engine.Usable() {
		p.logger.Info("Serving mock result", "path", resolved)
		return MockResult()
	}

	page, err := p.recognizePage(ctx, resolved)
	if err != nil {
		p.logger.Error("OCR processing failed", "path", resolved, "error", err)
		return failureResult(apperrors.NewEngineInvocationError(resolved, err), start)
	}

	text := page.Text()
	result = &DocumentResult{
		Success:        true,
		ExtractedText:  text,
		StructuredData: extraction.Extract(text),
		Confidence:     roundConfidence(page.Confidence()),
		ProcessingTime: elapsedSeconds(start),
		LinesDetected:  len(page.Lines),
	}

	p.logger.Info("OCR processing completed",
		"path", resolved,
		"engine", p.engine.Name,
		"lines", result.LinesDetected,
		"confidence", result.Confidence,
		"fields", len(result.StructuredData),
		"durationSeconds", result.ProcessingTime)

	return result
}

// Health reports whether real recognition is possible
func (p *DocumentProcessor) Health() HealthStatus {
	status := HealthStatus{
		Status:       "healthy",
		Engine:       p.engine.Name,
		OCRAvailable: p.engine.Usable(),
		Timestamp:    time.Now(),
	}
	if !status.OCRAvailable {
		status.Status = "degraded"
		if p.engine.Reason != nil {
			status.Reason = p.engine.Reason.Error()
		}
	}
	if p.config.Rasterizer != nil {
		status.RasterizerAvailable = p.config.Rasterizer.Available() == nil
	}
	return status
}

// recognizePage invokes the engine and normalizes its output. Engine panics
// are converted to errors.
func (p *DocumentProcessor) recognizePage(ctx context.Context, imagePath string) (page ocr.PageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	raw, err := p.engine.Engine.Recognize(ctx, imagePath)
	if err != nil {
		return ocr.PageResult{}, err
	}
	return ocr.Normalize(raw), nil
}

// resolvePath makes path absolute and checks that it names an acceptable file
func (p *DocumentProcessor) resolvePath(path string) (string, *apperrors.ProcessingError) {
	if strings.TrimSpace(path) == "" {
		return "", apperrors.NewInputNotFoundError(path)
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(p.config.UploadsDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return "", apperrors.NewInputNotFoundError(resolved)
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if !allowedExtensions[ext] {
		return "", apperrors.NewUnsupportedFormatError(resolved, ext)
	}

	if p.config.MaxFileSize > 0 && info.Size() > p.config.MaxFileSize {
		return "", apperrors.NewFileTooLargeError(resolved, info.Size(), p.config.MaxFileSize)
	}

	return resolved, nil
}
