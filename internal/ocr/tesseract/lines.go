package tesseract

import (
	"image"
	"strings"
)

// EngineName identifies this engine in health reports and logs
const EngineName = "tesseract"

// Config holds Tesseract configuration
type Config struct {
	Language    string // e.g. "eng", "eng+deu"
	PageSegMode int    // 0-13, 0 keeps the library default
}

// lineBox is one text line as reported by Tesseract
type lineBox struct {
	Text       string
	Rect       image.Rectangle
	Confidence float64 // 0..100
}

// detectionLines turns text lines into detection-line entries
// ([box, [text, score]]) so the normalizer treats Tesseract like any other
// line-level engine. Blank lines are dropped.
func detectionLines(boxes []lineBox) []any {
	lines := make([]any, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		r := b.Rect
		quad := []any{
			[]any{float64(r.Min.X), float64(r.Min.Y)},
			[]any{float64(r.Max.X), float64(r.Min.Y)},
			[]any{float64(r.Max.X), float64(r.Max.Y)},
			[]any{float64(r.Min.X), float64(r.Max.Y)},
		}
		lines = append(lines, []any{quad, []any{text, b.Confidence / 100.0}})
	}
	return lines
}
