//go:build cgo && !notesseract

/**
 * Tesseract OCR engine
 *
 * Free, offline OCR through libtesseract. Needs cgo and the tesseract
 * headers; build with -tags notesseract on hosts without them.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

// Engine runs Tesseract with a pool of clients so concurrent jobs never share one
type Engine struct {
	pool   *sync.Pool
	config Config
	logger *logging.Logger
}

// New creates a Tesseract engine and proves it can recognize an image.
// An error here means the engine is unavailable for the process lifetime.
func New(cfg Config) (*Engine, error) {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PageSegMode < 0 || cfg.PageSegMode > 13 {
		return nil, fmt.Errorf("invalid page segmentation mode %d", cfg.PageSegMode)
	}

	probe, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	defer probe.Close()

	// Language data is only loaded on first recognition, so run one on a blank image.
	blank, err := blankPNG()
	if err != nil {
		return nil, fmt.Errorf("failed to build probe image: %w", err)
	}
	if err := probe.SetImageFromBytes(blank); err != nil {
		return nil, fmt.Errorf("failed to set probe image: %w", err)
	}
	if _, err := probe.Text(); err != nil {
		return nil, fmt.Errorf("tesseract initialization failed: %w", err)
	}

	e := &Engine{
		config: cfg,
		logger: logging.NewLogger("tesseract"),
	}
	e.pool = &sync.Pool{
		New: func() any {
			client, err := newClient(cfg)
			if err != nil {
				// Settings were validated by the probe above.
				e.logger.Error("Failed to configure pooled client", "error", err)
				return gosseract.NewClient()
			}
			return client
		},
	}

	e.logger.Info("Tesseract engine ready", "version", gosseract.Version(), "language", cfg.Language, "psm", cfg.PageSegMode)
	return e, nil
}

// Name returns the engine identifier
func (e *Engine) Name() string {
	return EngineName
}

// Recognize runs OCR on an image file and returns detection lines.
// The call honors ctx cancellation; the pooled client is returned only once
// Tesseract has actually finished with it.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (any, error) {
	if e.pool == nil {
		return nil, fmt.Errorf("tesseract client pool not initialized")
	}

	type result struct {
		lines []any
		err   error
	}
	resultCh := make(chan result, 1)

	client := e.pool.Get().(*gosseract.Client)
	go func() {
		defer e.pool.Put(client)
		lines, err := recognizeLines(client, imagePath)
		resultCh <- result{lines: lines, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.lines, res.err
	}
}

// Close releases the pool; in-flight recognitions keep their own client
func (e *Engine) Close() error {
	e.pool = nil
	return nil
}

func recognizeLines(client *gosseract.Client, imagePath string) ([]any, error) {
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	found := make([]lineBox, 0, len(boxes))
	for _, b := range boxes {
		found = append(found, lineBox{Text: b.Word, Rect: b.Box, Confidence: b.Confidence})
	}
	return detectionLines(found), nil
}

func newClient(cfg Config) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language %q: %w", cfg.Language, err)
	}
	if cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode %d: %w", cfg.PageSegMode, err)
		}
	}
	return client, nil
}

func blankPNG() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = color.White.Y
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
