package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the medical OCR worker
 *
 * Every failure the pipeline absorbs into a DocumentResult carries one of
 * these codes so queue consumers can decide between retrying and giving up.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorEngineUnavailable      ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorInputNotFound          ErrorCode = "INPUT_NOT_FOUND"
	ErrorPrerequisiteMissing    ErrorCode = "PREREQUISITE_MISSING"
	ErrorEngineInvocationFailed ErrorCode = "ENGINE_INVOCATION_FAILED"
	ErrorUnsupportedFormat      ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorFileTooLarge           ErrorCode = "FILE_TOO_LARGE"

	// Job errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Terminal reports whether retrying the same input can never succeed
func (e *ProcessingError) Terminal() bool {
	return e.Code.Terminal()
}

// Terminal reports whether a failure with this code is permanent for its input
func (c ErrorCode) Terminal() bool {
	switch c {
	case ErrorInputNotFound, ErrorUnsupportedFormat, ErrorFileTooLarge, ErrorPrerequisiteMissing:
		return true
	}
	return false
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not a ProcessingError
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewEngineUnavailableError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineUnavailable,
		Message:   fmt.Sprintf("OCR engine %q is not available", engine),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"engine": engine,
		},
		Cause: cause,
	}
}

func NewInputNotFoundError(path string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInputNotFound,
		Message:   fmt.Sprintf("File not found: %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

func NewPrerequisiteMissingError(tool string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorPrerequisiteMissing,
		Message:   fmt.Sprintf("%s is not installed or not executable", tool),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"tool": tool,
		},
		Cause: cause,
	}
}

func NewEngineInvocationError(path string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineInvocationFailed,
		Message:   "OCR processing failed",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path": path,
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(path string, ext string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file type %q: only images and PDFs are allowed", ext),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path":      path,
			"extension": ext,
		},
	}
}

func NewFileTooLargeError(path string, size, limit int64) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileTooLarge,
		Message:   fmt.Sprintf("File is %d bytes, limit is %d bytes", size, limit),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path":  path,
			"size":  size,
			"limit": limit,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction result",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
