// Package engines resolves the configured OCR engine once at process start.
package engines

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/medocr-worker/internal/config"
	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
	"github.com/adverant/nexus/medocr-worker/internal/ocr/paddle"
)

// Init builds the engine named by cfg.OCREngine. Any failure yields an
// unavailable engine, which puts the processor in mock mode for the
// lifetime of the process.
func Init(ctx context.Context, cfg *config.Config) ocr.Availability {
	logger := logging.NewLogger("engines")

	var (
		engine ocr.Engine
		err    error
	)
	switch cfg.OCREngine {
	case config.EngineTesseract:
		engine, err = newTesseract(cfg)
	case config.EnginePaddle:
		engine, err = paddle.NewFromURL(ctx, cfg.PaddleOCRURL)
	case config.EngineMock:
		err = fmt.Errorf("mock engine requested")
	default:
		err = fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}

	if err != nil {
		unavailable := apperrors.NewEngineUnavailableError(cfg.OCREngine, err)
		logger.Warn("OCR engine unavailable, serving mock results", "engine", cfg.OCREngine, "error", unavailable)
		return ocr.Unavailable(cfg.OCREngine, unavailable)
	}

	logger.Info("OCR engine initialized", "engine", engine.Name())
	return ocr.Ready(engine)
}
