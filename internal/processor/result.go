package processor

import (
	"math"
	"time"

	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
)

// DocumentResult is the envelope returned for every processing request.
// It is built once and never modified afterwards.
type DocumentResult struct {
	Success        bool              `json:"success"`
	ExtractedText  string            `json:"extractedText"`
	StructuredData map[string]string `json:"structuredData"`
	Confidence     float64           `json:"confidence"`
	ProcessingTime float64           `json:"processing_time"` // seconds
	Mock           bool              `json:"mock"`
	Error          string            `json:"error,omitempty"`
	PagesProcessed int               `json:"pages_processed,omitempty"`
	LinesDetected  int               `json:"lines_detected,omitempty"`

	// ErrorCode classifies a failure for retry decisions and persistence
	ErrorCode apperrors.ErrorCode `json:"-"`
}

// Retryable reports whether the same request might succeed on another attempt
func (r *DocumentResult) Retryable() bool {
	return !r.Success && !r.ErrorCode.Terminal()
}

func failureResult(err *apperrors.ProcessingError, start time.Time) *DocumentResult {
	msg := err.Message
	if err.Cause != nil {
		msg += ": " + err.Cause.Error()
	}
	return &DocumentResult{
		Success:        false,
		ExtractedText:  "",
		StructuredData: map[string]string{},
		Confidence:     0,
		ProcessingTime: elapsedSeconds(start),
		Error:          msg,
		ErrorCode:      err.Code,
	}
}

func elapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// roundConfidence keeps three decimals in the reported score
func roundConfidence(c float64) float64 {
	return math.Round(c*1000) / 1000
}
