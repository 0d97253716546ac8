//go:build cgo && !notesseract

package engines

import (
	"github.com/adverant/nexus/medocr-worker/internal/config"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
	"github.com/adverant/nexus/medocr-worker/internal/ocr/tesseract"
)

func newTesseract(cfg *config.Config) (ocr.Engine, error) {
	engine, err := tesseract.New(tesseract.Config{
		Language:    cfg.TesseractLanguage,
		PageSegMode: cfg.TesseractPSM,
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}
