package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OCR_ENGINE", "")
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, EngineTesseract, cfg.OCREngine)
	assert.Equal(t, QueueBackendRedis, cfg.QueueBackend)
	assert.Equal(t, "medocr:jobs", cfg.QueueName)
	assert.Equal(t, int64(10485760), cfg.MaxFileSize)
	assert.False(t, cfg.IndexEnabled())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OCR_ENGINE", "PADDLE")
	t.Setenv("PADDLE_OCR_URL", "http://ocr:3001")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("QDRANT_URL", "qdrant:6334")
	t.Setenv("VOYAGE_API_KEY", "k")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, EnginePaddle, cfg.OCREngine)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.True(t, cfg.IndexEnabled())
}

func TestLoadConfigIgnoresMalformedInts(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "lots")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	t.Setenv("OCR_ENGINE", "easyocr")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR_ENGINE")
}

func TestValidateRejectsBadPSM(t *testing.T) {
	t.Setenv("TESSERACT_PSM", "42")

	_, err := LoadConfig()
	require.Error(t, err)
}
