package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("page 2: %w", NewEngineInvocationError("/tmp/p2.png", fmt.Errorf("boom")))
	assert.Equal(t, ErrorEngineInvocationFailed, CodeOf(err))
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("plain")))
}

func TestTerminalCodes(t *testing.T) {
	assert.True(t, NewInputNotFoundError("/x").Terminal())
	assert.True(t, NewPrerequisiteMissingError("pdftoppm", nil).Terminal())
	assert.False(t, NewEngineInvocationError("/x", nil).Terminal())
}

func TestToMapIncludesCauseAndDetails(t *testing.T) {
	m := NewEngineInvocationError("/x.png", fmt.Errorf("tesseract crashed")).ToMap()
	assert.Equal(t, "ENGINE_INVOCATION_FAILED", m["error_code"])
	assert.Equal(t, "/x.png", m["path"])
	assert.Equal(t, "tesseract crashed", m["cause"])
}

func TestNotFoundMessage(t *testing.T) {
	assert.Contains(t, NewInputNotFoundError("/data/r.png").Error(), "not found")
}
