package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "processor").With("requestId", "abc")

	logger.Warn("Page failed", "page", 2)

	line := buf.String()
	assert.Contains(t, line, "[processor] ")
	assert.Contains(t, line, "[WARN] Page failed requestId=abc page=2")
}

func TestDebugIsGated(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "normalizer")

	SetDebug(false)
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	logger.Debug("shown", "index", 3)
	assert.Contains(t, buf.String(), "[DEBUG] shown index=3")
}

func TestSetDefaultOutput(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultOutput(&buf)
	defer SetDefaultOutput(os.Stdout)

	NewLogger("engines").Info("OCR engine initialized", "engine", "tesseract")
	assert.Contains(t, buf.String(), "engine=tesseract")
}
