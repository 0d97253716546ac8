/**
 * Result Normalizer
 *
 * OCR engines hand back one of four payload shapes:
 *
 *   batch list         [{"rec_texts": [...], "rec_scores": [...]}, ...]
 *   detection lines    [[box, [text, score]], ...] (optionally nested per page)
 *   recognition batch  {"rec_texts": [...], "rec_scores": [...]}
 *   single text        {"text": "...", "confidence": 0.9}
 *
 * Each shape is a Variant. Detection strategies are tried in the order above
 * and the first one that accepts the payload decodes it.
 */

package ocr

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

// defaultSingleTextConfidence applies when a single-text payload carries no score
const defaultSingleTextConfidence = 0.9

var (
	normalizerLogOnce sync.Once
	normalizerLogger  *logging.Logger
)

func normalizerLog() *logging.Logger {
	normalizerLogOnce.Do(func() { normalizerLogger = logging.NewLogger("normalizer") })
	return normalizerLogger
}

// Variant is one decoded payload shape. The set is closed: only the types in
// this file implement it.
type Variant interface {
	Name() string
	Lines() []RecognizedLine
	variant()
}

// DetectionLines holds [box, [text, score]] entries in detection order
type DetectionLines struct {
	Entries []any
}

// RecognitionBatch holds parallel text and score lists
type RecognitionBatch struct {
	Texts  []any
	Scores []any
}

// BatchList is a sequence whose first element is a RecognitionBatch
type BatchList struct {
	First RecognitionBatch
}

// SingleText holds one text blob with no per-line granularity
type SingleText struct {
	Text       string
	Confidence float64
}

func (DetectionLines) variant()   {}
func (RecognitionBatch) variant() {}
func (BatchList) variant()        {}
func (SingleText) variant()       {}

func (DetectionLines) Name() string   { return "detection_lines" }
func (RecognitionBatch) Name() string { return "recognition_batch" }
func (BatchList) Name() string        { return "batch_list" }
func (SingleText) Name() string       { return "single_text" }

// Lines decodes every entry, flattening one level of per-page nesting.
// Entries that do not look like a detection line are skipped.
func (d DetectionLines) Lines() []RecognizedLine {
	lines := make([]RecognizedLine, 0, len(d.Entries))
	for i, entry := range d.Entries {
		if entry == nil {
			continue
		}
		if line, ok := decodeDetectionLine(entry); ok {
			lines = appendLine(lines, line)
			continue
		}
		page, ok := asList(entry)
		if !ok {
			normalizerLog().Debug("Skipping malformed detection entry", "index", i)
			continue
		}
		for j, nested := range page {
			line, ok := decodeDetectionLine(nested)
			if !ok {
				normalizerLog().Debug("Skipping malformed detection line", "page", i, "index", j)
				continue
			}
			lines = appendLine(lines, line)
		}
	}
	return lines
}

// Lines pairs texts with scores by position; a missing score counts as 0
func (r RecognitionBatch) Lines() []RecognizedLine {
	lines := make([]RecognizedLine, 0, len(r.Texts))
	for i, rawText := range r.Texts {
		text, ok := rawText.(string)
		if !ok {
			normalizerLog().Debug("Skipping non-string recognized text", "index", i)
			continue
		}
		var score float64
		if i < len(r.Scores) {
			score, _ = asFloat(r.Scores[i])
		}
		lines = appendLine(lines, RecognizedLine{Text: text, Confidence: score})
	}
	return lines
}

func (b BatchList) Lines() []RecognizedLine {
	return b.First.Lines()
}

func (s SingleText) Lines() []RecognizedLine {
	return appendLine(nil, RecognizedLine{Text: s.Text, Confidence: s.Confidence})
}

// detectStrategy inspects a raw payload and claims it when the shape matches
type detectStrategy struct {
	name   string
	detect func(raw any) (Variant, bool)
}

var detectStrategies = []detectStrategy{
	{name: "batch_list", detect: detectBatchList},
	{name: "detection_lines", detect: detectDetectionLines},
	{name: "recognition_batch", detect: detectRecognitionBatch},
	{name: "single_text", detect: detectSingleText},
}

// Detect classifies raw engine output. It returns false for nil, empty or
// unrecognized payloads.
func Detect(raw any) (Variant, bool) {
	if raw == nil {
		return nil, false
	}
	for _, s := range detectStrategies {
		if v, ok := s.detect(raw); ok {
			return v, true
		}
	}
	return nil, false
}

// Normalize converts raw engine output into a PageResult. Unknown or empty
// payloads yield a page with no lines.
func Normalize(raw any) PageResult {
	v, ok := Detect(raw)
	if !ok {
		if raw != nil {
			normalizerLog().Debug("Unrecognized OCR payload shape", "type", typeName(raw))
		}
		return PageResult{Lines: []RecognizedLine{}}
	}
	lines := v.Lines()
	if lines == nil {
		lines = []RecognizedLine{}
	}
	return PageResult{Lines: lines}
}

// NormalizeJSON decodes a JSON document and normalizes it
func NormalizeJSON(data []byte) (PageResult, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return PageResult{Lines: []RecognizedLine{}}, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return PageResult{}, err
	}
	return Normalize(raw), nil
}

func detectBatchList(raw any) (Variant, bool) {
	list, ok := asList(raw)
	if !ok || len(list) == 0 {
		return nil, false
	}
	batch, ok := recognitionBatchFrom(list[0])
	if !ok {
		return nil, false
	}
	return BatchList{First: batch}, true
}

func detectDetectionLines(raw any) (Variant, bool) {
	list, ok := asList(raw)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return DetectionLines{Entries: list}, true
}

func detectRecognitionBatch(raw any) (Variant, bool) {
	batch, ok := recognitionBatchFrom(raw)
	if !ok {
		return nil, false
	}
	return batch, true
}

func detectSingleText(raw any) (Variant, bool) {
	m, ok := asMap(raw)
	if !ok {
		return nil, false
	}
	text, ok := m["text"].(string)
	if !ok {
		return nil, false
	}
	conf := defaultSingleTextConfidence
	if c, ok := asFloat(m["confidence"]); ok {
		conf = c
	}
	return SingleText{Text: text, Confidence: conf}, true
}

func recognitionBatchFrom(raw any) (RecognitionBatch, bool) {
	m, ok := asMap(raw)
	if !ok {
		return RecognitionBatch{}, false
	}
	texts, ok := asList(m["rec_texts"])
	if !ok {
		return RecognitionBatch{}, false
	}
	scores, _ := asList(m["rec_scores"])
	return RecognitionBatch{Texts: texts, Scores: scores}, true
}

// decodeDetectionLine reads [box, [text, score, ...], ...]
func decodeDetectionLine(raw any) (RecognizedLine, bool) {
	entry, ok := asList(raw)
	if !ok || len(entry) < 2 {
		return RecognizedLine{}, false
	}
	rec, ok := asList(entry[1])
	if !ok || len(rec) < 2 {
		return RecognizedLine{}, false
	}
	text, ok := rec[0].(string)
	if !ok {
		return RecognizedLine{}, false
	}
	score, ok := asFloat(rec[1])
	if !ok {
		return RecognizedLine{}, false
	}
	return RecognizedLine{Text: text, Confidence: score}, true
}

// appendLine trims text, drops blank detections and clamps the score
func appendLine(lines []RecognizedLine, line RecognizedLine) []RecognizedLine {
	line.Text = strings.TrimSpace(line.Text)
	if line.Text == "" {
		return lines
	}
	line.Confidence = clampUnit(line.Confidence)
	return append(lines, line)
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case string:
		return "string"
	}
	return "other"
}
