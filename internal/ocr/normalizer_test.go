package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box() []any {
	return []any{
		[]any{10.0, 10.0}, []any{90.0, 10.0}, []any{90.0, 30.0}, []any{10.0, 30.0},
	}
}

func TestNormalizeShapes(t *testing.T) {
	testCases := []struct {
		name      string
		raw       any
		variant   string
		wantText  string
		wantConfs []float64
	}{
		{
			name: "detection lines",
			raw: []any{
				[]any{box(), []any{"Patient: Jane Smith", 0.98}},
				[]any{box(), []any{"BP 120/80", 0.90}},
			},
			variant:   "detection_lines",
			wantText:  "Patient: Jane Smith\nBP 120/80",
			wantConfs: []float64{0.98, 0.90},
		},
		{
			name: "detection lines nested per page",
			raw: []any{
				[]any{
					[]any{box(), []any{"Glucose: 95 mg/dl", 0.8}},
					[]any{box(), []any{"Date: 2024-01-15", 0.6}},
				},
			},
			variant:   "detection_lines",
			wantText:  "Glucose: 95 mg/dl\nDate: 2024-01-15",
			wantConfs: []float64{0.8, 0.6},
		},
		{
			name: "recognition batch",
			raw: map[string]any{
				"rec_texts":  []any{"MEDICAL REPORT", "Name: John Doe"},
				"rec_scores": []any{0.99, 0.95},
			},
			variant:   "recognition_batch",
			wantText:  "MEDICAL REPORT\nName: John Doe",
			wantConfs: []float64{0.99, 0.95},
		},
		{
			name: "batch list",
			raw: []any{
				map[string]any{
					"rec_texts":  []any{"Blood sugar: 110"},
					"rec_scores": []any{0.7},
				},
				map[string]any{
					"rec_texts":  []any{"ignored second image"},
					"rec_scores": []any{0.1},
				},
			},
			variant:   "batch_list",
			wantText:  "Blood sugar: 110",
			wantConfs: []float64{0.7},
		},
		{
			name:      "single text with confidence",
			raw:       map[string]any{"text": "Patient: Sam Lee", "confidence": 0.5},
			variant:   "single_text",
			wantText:  "Patient: Sam Lee",
			wantConfs: []float64{0.5},
		},
		{
			name:      "single text default confidence",
			raw:       map[string]any{"text": "Fasting glucose: 88"},
			variant:   "single_text",
			wantText:  "Fasting glucose: 88",
			wantConfs: []float64{0.9},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := Detect(tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.variant, v.Name())

			page := Normalize(tc.raw)
			assert.Equal(t, tc.wantText, page.Text())
			assert.InDeltaSlice(t, tc.wantConfs, page.Confidences(), 1e-9)
		})
	}
}

func TestNormalizeEmptyPayloads(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":        nil,
		"empty list": []any{},
		"empty map":  map[string]any{},
		"scalar":     "just a string",
	} {
		t.Run(name, func(t *testing.T) {
			page := Normalize(raw)
			assert.NotNil(t, page.Lines)
			assert.Empty(t, page.Lines)
			assert.Equal(t, "", page.Text())
			assert.Equal(t, 0.0, page.Confidence())
		})
	}
}

func TestNormalizeSkipsMalformedLines(t *testing.T) {
	raw := []any{
		[]any{box(), []any{"first", 0.9}},
		[]any{box()},                          // no recognition part
		[]any{box(), []any{42.0, 0.9}},        // text is not a string
		[]any{box(), []any{"bad score", "x"}}, // score is not a number
		nil,
		"garbage",
		[]any{box(), []any{"second", 0.7}},
	}

	page := Normalize(raw)
	require.Len(t, page.Lines, 2)
	assert.Equal(t, "first\nsecond", page.Text())
}

func TestRecognitionBatchMissingScores(t *testing.T) {
	page := Normalize(map[string]any{
		"rec_texts":  []any{"a", "b", 7.0},
		"rec_scores": []any{0.5},
	})
	require.Len(t, page.Lines, 2)
	assert.Equal(t, 0.5, page.Lines[0].Confidence)
	assert.Equal(t, 0.0, page.Lines[1].Confidence)
}

func TestNormalizeClampsScores(t *testing.T) {
	page := Normalize(map[string]any{
		"rec_texts":  []any{"high", "low"},
		"rec_scores": []any{1.7, -0.2},
	})
	assert.Equal(t, []float64{1, 0}, page.Confidences())
}

func TestNormalizeJSON(t *testing.T) {
	page, err := NormalizeJSON([]byte(`[[[[0,0],[1,0],[1,1],[0,1]],["Name: Ada Lovelace",0.93]]]`))
	require.NoError(t, err)
	assert.Equal(t, "Name: Ada Lovelace", page.Text())

	page, err = NormalizeJSON([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, page.Lines)

	_, err = NormalizeJSON([]byte("{not json"))
	assert.Error(t, err)
}
