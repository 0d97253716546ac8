package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
	"github.com/adverant/nexus/medocr-worker/internal/extraction"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr"
)

// pageOutput is what the fake engine returns for one image
type pageOutput struct {
	raw   any
	err   error
	panic bool
}

// fakeEngine answers by image base name
type fakeEngine struct {
	outputs map[string]pageOutput
	calls   []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, imagePath string) (any, error) {
	name := filepath.Base(imagePath)
	f.calls = append(f.calls, name)
	out, ok := f.outputs[name]
	if !ok {
		return nil, fmt.Errorf("unexpected image %s", name)
	}
	if out.panic {
		panic("engine blew up")
	}
	return out.raw, out.err
}

// fakeRasterizer writes one file per page into outDir
type fakeRasterizer struct {
	pages    []string
	err      error
	availErr error
	split    int
}

func (f *fakeRasterizer) Available() error { return f.availErr }

func (f *fakeRasterizer) SplitToPages(_ context.Context, _ string, outDir string) ([]string, error) {
	f.split++
	paths := make([]string, 0, len(f.pages))
	for _, name := range f.pages {
		p := filepath.Join(outDir, name)
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, f.err
}

func lines(entries ...any) []any {
	box := []any{[]any{0.0, 0.0}, []any{1.0, 0.0}, []any{1.0, 1.0}, []any{0.0, 1.0}}
	out := make([]any, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		out = append(out, []any{box, []any{entries[i], entries[i+1]}})
	}
	return out
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("image bytes"), 0o644))
	return path
}

func newProcessor(t *testing.T, avail ocr.Availability, rasterizer Rasterizer) (*DocumentProcessor, string, string) {
	t.Helper()
	uploads := t.TempDir()
	temp := t.TempDir()
	cfg := &ProcessorConfig{
		Engine:      avail,
		UploadsDir:  uploads,
		TempDir:     temp,
		MaxFileSize: 1024,
		Logger:      logging.NewLoggerTo(io.Discard, "processor"),
	}
	if rasterizer != nil {
		cfg.Rasterizer = rasterizer
	}
	p, err := NewDocumentProcessor(cfg)
	require.NoError(t, err)
	return p, uploads, temp
}

func assertFailure(t *testing.T, result *DocumentResult, code apperrors.ErrorCode) {
	t.Helper()
	assert.False(t, result.Success)
	assert.Equal(t, code, result.ErrorCode)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.ExtractedText)
	assert.NotNil(t, result.StructuredData)
	assert.Empty(t, result.StructuredData)
	assert.False(t, result.Mock)
}

func TestProcessDocumentNotFound(t *testing.T) {
	p, _, _ := newProcessor(t, ocr.Ready(&fakeEngine{}), nil)

	result := p.ProcessDocument(context.Background(), "missing/report.png")
	assertFailure(t, result, apperrors.ErrorInputNotFound)
	assert.Contains(t, result.Error, "not found")
	assert.False(t, result.Retryable())
}

func TestProcessDocumentMockWhenEngineUnavailable(t *testing.T) {
	p, uploads, _ := newProcessor(t, ocr.Unavailable("tesseract", errors.New("libtesseract missing")), nil)
	writeFile(t, uploads, "anything.jpg")

	result := p.ProcessDocument(context.Background(), "anything.jpg")
	assert.True(t, result.Success)
	assert.True(t, result.Mock)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Equal(t, 0.5, result.ProcessingTime)
	assert.Equal(t, "John Doe", result.StructuredData[extraction.FieldPatientName])
	assert.Len(t, result.StructuredData, 4)
}

func TestProcessDocumentSuccess(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"report.png": {raw: lines(
			"Patient: Jane Smith BP 120/80", 0.9,
			"Glucose: 95 mg/dl Date: 2024-01-15", 0.7,
		)},
	}}
	p, uploads, _ := newProcessor(t, ocr.Ready(engine), nil)
	writeFile(t, uploads, "report.png")

	result := p.ProcessDocument(context.Background(), "report.png")
	require.True(t, result.Success, result.Error)
	assert.False(t, result.Mock)
	assert.Equal(t, "Patient: Jane Smith BP 120/80\nGlucose: 95 mg/dl Date: 2024-01-15", result.ExtractedText)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, 2, result.LinesDetected)
	assert.Equal(t, map[string]string{
		extraction.FieldBloodPressure: "120/80",
		extraction.FieldGlucose:       "95 mg/dL",
		extraction.FieldDate:          "2024-01-15",
		extraction.FieldPatientName:   "Jane Smith",
	}, result.StructuredData)
}

func TestProcessDocumentAbsolutePath(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"scan.tiff": {raw: map[string]any{"text": "Name: Li Wei"}},
	}}
	p, _, _ := newProcessor(t, ocr.Ready(engine), nil)
	path := writeFile(t, t.TempDir(), "scan.tiff")

	result := p.ProcessDocument(context.Background(), path)
	require.True(t, result.Success)
	assert.Equal(t, "Li Wei", result.StructuredData[extraction.FieldPatientName])
	assert.Equal(t, 0.9, result.Confidence)
}

func TestProcessDocumentEngineFailures(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"error.png": {err: errors.New("tesseract: cannot read image")},
		"panic.png": {panic: true},
	}}
	p, uploads, _ := newProcessor(t, ocr.Ready(engine), nil)
	writeFile(t, uploads, "error.png")
	writeFile(t, uploads, "panic.png")

	result := p.ProcessDocument(context.Background(), "error.png")
	assertFailure(t, result, apperrors.ErrorEngineInvocationFailed)
	assert.Contains(t, result.Error, "cannot read image")
	assert.True(t, result.Retryable())

	result = p.ProcessDocument(context.Background(), "panic.png")
	assertFailure(t, result, apperrors.ErrorEngineInvocationFailed)
	assert.Contains(t, result.Error, "engine blew up")
}

func TestProcessDocumentRejectsInputs(t *testing.T) {
	p, uploads, _ := newProcessor(t, ocr.Ready(&fakeEngine{}), nil)
	writeFile(t, uploads, "notes.txt")
	require.NoError(t, os.WriteFile(filepath.Join(uploads, "huge.png"), make([]byte, 2048), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(uploads, "folder.png"), 0o755))

	assertFailure(t, p.ProcessDocument(context.Background(), "notes.txt"), apperrors.ErrorUnsupportedFormat)
	assertFailure(t, p.ProcessDocument(context.Background(), "huge.png"), apperrors.ErrorFileTooLarge)
	assertFailure(t, p.ProcessDocument(context.Background(), "folder.png"), apperrors.ErrorInputNotFound)
	assertFailure(t, p.ProcessDocument(context.Background(), ""), apperrors.ErrorInputNotFound)
}

func TestProcessMultiPageSkipsFailedPage(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"page-1.png": {raw: lines("Patient: Jane Smith", 1.0)},
		"page-2.png": {err: errors.New("internal engine error")},
	}}
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png", "page-2.png"}}
	p, uploads, temp := newProcessor(t, ocr.Ready(engine), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	result := p.ProcessMultiPage(context.Background(), "labs.pdf")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "--- Page 1 ---\nPatient: Jane Smith", result.ExtractedText)
	assert.NotContains(t, result.ExtractedText, "--- Page 2 ---")
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Equal(t, 1, result.LinesDetected)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "Jane Smith", result.StructuredData[extraction.FieldPatientName])
	assert.Equal(t, []string{"page-1.png", "page-2.png"}, engine.calls)

	leftovers, err := os.ReadDir(temp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestProcessMultiPageWeightsConfidenceByLines(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"page-1.png": {raw: lines("BP 130/85", 1.0)},
		"page-2.png": {raw: lines("a", 0.0, "b", 0.0, "c", 0.0)},
	}}
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png", "page-2.png"}}
	p, uploads, _ := newProcessor(t, ocr.Ready(engine), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	result := p.ProcessMultiPage(context.Background(), "labs.pdf")
	require.True(t, result.Success)
	assert.Equal(t, 0.25, result.Confidence)
	assert.Equal(t, 4, result.LinesDetected)
	assert.Equal(t, "--- Page 1 ---\nBP 130/85\n\n--- Page 2 ---\na\nb\nc", result.ExtractedText)
	assert.Equal(t, "130/85", result.StructuredData[extraction.FieldBloodPressure])
}

func TestProcessMultiPagePrerequisiteMissing(t *testing.T) {
	engine := &fakeEngine{}
	rasterizer := &fakeRasterizer{availErr: errors.New("executable file not found in $PATH")}
	p, uploads, _ := newProcessor(t, ocr.Ready(engine), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	result := p.ProcessMultiPage(context.Background(), "labs.pdf")
	assertFailure(t, result, apperrors.ErrorPrerequisiteMissing)
	assert.Equal(t, 0, rasterizer.split)
	assert.Empty(t, engine.calls)

	p, uploads, _ = newProcessor(t, ocr.Ready(engine), nil)
	writeFile(t, uploads, "labs.pdf")
	assertFailure(t, p.ProcessMultiPage(context.Background(), "labs.pdf"), apperrors.ErrorPrerequisiteMissing)
}

func TestProcessMultiPageCleansUpAfterSplitError(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png"}, err: errors.New("pdftoppm crashed")}
	p, uploads, temp := newProcessor(t, ocr.Ready(&fakeEngine{}), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	result := p.ProcessMultiPage(context.Background(), "labs.pdf")
	assertFailure(t, result, apperrors.ErrorEngineInvocationFailed)

	leftovers, err := os.ReadDir(temp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestProcessMultiPageCancelled(t *testing.T) {
	engine := &fakeEngine{outputs: map[string]pageOutput{"page-1.png": {raw: lines("x", 1.0)}}}
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png"}}
	p, uploads, temp := newProcessor(t, ocr.Ready(engine), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.ProcessMultiPage(ctx, "labs.pdf")
	assertFailure(t, result, apperrors.ErrorProcessingTimeout)
	assert.Empty(t, engine.calls)

	leftovers, err := os.ReadDir(temp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestProcessDispatchesByExtension(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png"}}
	engine := &fakeEngine{outputs: map[string]pageOutput{
		"page-1.png": {raw: lines("from pdf", 0.5)},
		"photo.JPG":  {raw: lines("from photo", 0.5)},
	}}
	p, uploads, _ := newProcessor(t, ocr.Ready(engine), rasterizer)
	writeFile(t, uploads, "labs.PDF")
	writeFile(t, uploads, "photo.JPG")

	assert.Equal(t, "--- Page 1 ---\nfrom pdf", p.Process(context.Background(), "labs.PDF").ExtractedText)
	assert.Equal(t, "from photo", p.Process(context.Background(), "photo.JPG").ExtractedText)
	assert.Equal(t, 1, rasterizer.split)
}

func TestProcessMultiPageMockSkipsRasterizer(t *testing.T) {
	rasterizer := &fakeRasterizer{pages: []string{"page-1.png"}}
	p, uploads, _ := newProcessor(t, ocr.Unavailable("paddle", nil), rasterizer)
	writeFile(t, uploads, "labs.pdf")

	result := p.Process(context.Background(), "labs.pdf")
	assert.True(t, result.Mock)
	assert.True(t, result.Success)
	assert.Equal(t, 0, rasterizer.split)
}

func TestHealth(t *testing.T) {
	p, _, _ := newProcessor(t, ocr.Unavailable("tesseract", errors.New("no eng.traineddata")), &fakeRasterizer{})
	h := p.Health()
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.OCRAvailable)
	assert.True(t, h.RasterizerAvailable)
	assert.Contains(t, h.Reason, "eng.traineddata")

	p, _, _ = newProcessor(t, ocr.Ready(&fakeEngine{}), nil)
	h = p.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "fake", h.Engine)
	assert.False(t, h.RasterizerAvailable)
}

func TestDocumentResultJSON(t *testing.T) {
	p, _, _ := newProcessor(t, ocr.Ready(&fakeEngine{}), nil)
	data, err := json.Marshal(p.ProcessDocument(context.Background(), "nope.png"))
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, map[string]any{}, envelope["structuredData"])
	assert.Contains(t, envelope["error"], "not found")
	assert.NotContains(t, envelope, "pages_processed")
	assert.NotContains(t, envelope, "ErrorCode")
	assert.Contains(t, envelope, "processing_time")
}
