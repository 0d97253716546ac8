//go:build !cgo || notesseract

package engines

import (
	"errors"

	"github.com/adverant/nexus/medocr-worker/internal/config"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
)

// errTesseractNotCompiled is returned by builds without cgo or with -tags notesseract
var errTesseractNotCompiled = errors.New("tesseract engine not compiled into this build")

func newTesseract(cfg *config.Config) (ocr.Engine, error) {
	return nil, errTesseractNotCompiled
}
