/**
 * OCR Types - canonical page representation shared by every engine
 *
 * Engines return raw, shape-variable output; Normalize turns it into a
 * PageResult so the rest of the pipeline never inspects engine payloads.
 */

package ocr

import (
	"context"
	"strings"
)

// RecognizedLine is one line of recognized text in detection order
type RecognizedLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
}

// PageResult is the normalized recognition output for a single page or image
type PageResult struct {
	Lines     []RecognizedLine `json:"lines"`
	PageIndex *int             `json:"pageIndex,omitempty"`
}

// Text joins the page's lines with newlines
func (p PageResult) Text() string {
	parts := make([]string, len(p.Lines))
	for i, line := range p.Lines {
		parts[i] = line.Text
	}
	return strings.Join(parts, "\n")
}

// Confidences returns the per-line confidence scores in line order
func (p PageResult) Confidences() []float64 {
	scores := make([]float64, len(p.Lines))
	for i, line := range p.Lines {
		scores[i] = line.Confidence
	}
	return scores
}

// Confidence is the arithmetic mean of the line confidences
func (p PageResult) Confidence() float64 {
	return Mean(p.Confidences())
}

// Engine is the recognition capability consumed by the pipeline.
// Recognize returns the engine's raw output for one image; Normalize decodes it.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (any, error)
}

// Availability is the one-time engine initialization outcome.
// It is resolved at process start and handed to the processor by value.
type Availability struct {
	Engine    Engine
	Name      string
	Available bool
	Reason    error // why the engine is unavailable; nil when Available
}

// Unavailable builds an Availability that routes every request to the mock engine
func Unavailable(name string, reason error) Availability {
	return Availability{Name: name, Available: false, Reason: reason}
}

// Ready builds an Availability backed by a working engine
func Ready(engine Engine) Availability {
	return Availability{Engine: engine, Name: engine.Name(), Available: true}
}

// Usable reports whether requests should reach the real engine
func (a Availability) Usable() bool {
	return a.Available && a.Engine != nil
}
