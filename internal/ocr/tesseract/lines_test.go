package tesseract

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/medocr-worker/internal/ocr"
)

func TestDetectionLinesShape(t *testing.T) {
	lines := detectionLines([]lineBox{
		{Text: " Patient: Jane Smith \n", Rect: image.Rect(10, 20, 210, 44), Confidence: 91.5},
	})
	require.Len(t, lines, 1)

	entry := lines[0].([]any)
	assert.Equal(t, []any{
		[]any{10.0, 20.0},
		[]any{210.0, 20.0},
		[]any{210.0, 44.0},
		[]any{10.0, 44.0},
	}, entry[0])

	rec := entry[1].([]any)
	assert.Equal(t, "Patient: Jane Smith", rec[0])
	assert.InDelta(t, 0.915, rec[1], 1e-9)
}

func TestDetectionLinesDropBlankText(t *testing.T) {
	lines := detectionLines([]lineBox{
		{Text: "   ", Confidence: 95},
		{Text: "BP 120/80", Rect: image.Rect(0, 0, 5, 5), Confidence: 80},
		{Text: "", Confidence: 10},
	})
	assert.Len(t, lines, 1)

	assert.Empty(t, detectionLines(nil))
	assert.NotNil(t, detectionLines(nil))
}

func TestDetectionLinesFeedNormalizer(t *testing.T) {
	page := ocr.Normalize(detectionLines([]lineBox{
		{Text: "BP 120/80", Rect: image.Rect(0, 0, 100, 20), Confidence: 90},
		{Text: "Glucose: 95 mg/dl", Rect: image.Rect(0, 30, 100, 50), Confidence: 70},
	}))

	require.Len(t, page.Lines, 2)
	assert.Equal(t, "BP 120/80\nGlucose: 95 mg/dl", page.Text())
	assert.InDelta(t, 0.8, page.Confidence(), 1e-9)
}
