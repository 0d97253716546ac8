package queue

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/adverant/nexus/medocr-worker/internal/errors"
	"github.com/adverant/nexus/medocr-worker/internal/extraction"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/processor"
	"github.com/adverant/nexus/medocr-worker/internal/storage"
)

// DefaultProcessingTimeout bounds one job when the config leaves it unset
const DefaultProcessingTimeout = 120 * time.Second

// JobPayload is the job body shared by both queue backends
type JobPayload struct {
	JobID    string                 `json:"jobId"`
	FilePath string                 `json:"filePath"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ResultStore persists job status transitions and final results
type ResultStore interface {
	RecordJobStatus(ctx context.Context, update *storage.JobUpdate) error
	StoreResult(ctx context.Context, rec *storage.ExtractionRecord) error
}

// jobHandler runs one job through the processor and persists the outcome.
// Both consumers share it and differ only in how they fetch and retry jobs.
type jobHandler struct {
	processor processor.DocumentProcessorInterface
	store     ResultStore
	timeout   time.Duration
	logger    *logging.Logger
}

func newJobHandler(proc processor.DocumentProcessorInterface, store ResultStore, timeoutMs int64, logger *logging.Logger) *jobHandler {
	timeout := DefaultProcessingTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &jobHandler{processor: proc, store: store, timeout: timeout, logger: logger}
}

// process marks the job as processing and runs it under the job timeout
func (h *jobHandler) process(ctx context.Context, job *JobPayload) *processor.DocumentResult {
	log := h.logger.With("jobId", job.JobID)

	h.recordStatus(ctx, &storage.JobUpdate{
		JobID:    job.JobID,
		FilePath: job.FilePath,
		Status:   storage.StatusProcessing,
	})

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	log.Info("Processing document", "file", job.FilePath, "timeout", h.timeout)
	result := h.processor.Process(processCtx, job.FilePath)

	switch {
	case result.Success:
		log.Info("Processing completed",
			"confidence", result.Confidence,
			"fields", len(result.StructuredData),
			"mock", result.Mock,
			"seconds", result.ProcessingTime)
	case processCtx.Err() == context.DeadlineExceeded:
		log.Warn("Processing timed out", "timeout", h.timeout, "code", result.ErrorCode, "error", result.Error)
	default:
		log.Warn("Processing failed", "code", result.ErrorCode, "error", result.Error)
	}

	return result
}

// requeued records that a failed attempt will be retried
func (h *jobHandler) requeued(ctx context.Context, job *JobPayload, result *processor.DocumentResult) {
	h.recordStatus(ctx, &storage.JobUpdate{
		JobID:        job.JobID,
		FilePath:     job.FilePath,
		Status:       storage.StatusQueued,
		ErrorCode:    string(result.ErrorCode),
		ErrorMessage: result.Error,
	})
}

// finish persists the final outcome of a job
func (h *jobHandler) finish(ctx context.Context, job *JobPayload, result *processor.DocumentResult) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.StoreResult(ctx, toRecord(job, result)); err != nil {
		return apperrors.NewStorageFailedError(job.JobID, err)
	}
	return nil
}

func (h *jobHandler) recordStatus(ctx context.Context, update *storage.JobUpdate) {
	if h.store == nil {
		return
	}
	if err := h.store.RecordJobStatus(ctx, update); err != nil {
		h.logger.Warn("Failed to record job status", "jobId", update.JobID, "status", update.Status, "error", err)
	}
}

// toRecord converts a processing result into its stored form
func toRecord(job *JobPayload, result *processor.DocumentResult) *storage.ExtractionRecord {
	return &storage.ExtractionRecord{
		JobID:            job.JobID,
		FilePath:         job.FilePath,
		Status:           statusFor(result),
		Success:          result.Success,
		Mock:             result.Mock,
		ExtractedText:    result.ExtractedText,
		StructuredData:   result.StructuredData,
		FieldsFound:      fieldsFound(result.StructuredData),
		Confidence:       result.Confidence,
		ProcessingTimeMs: int64(result.ProcessingTime * 1000),
		PagesProcessed:   result.PagesProcessed,
		LinesDetected:    result.LinesDetected,
		ErrorCode:        string(result.ErrorCode),
		ErrorMessage:     result.Error,
	}
}

// statusFor maps a finished result to the stored job status
func statusFor(result *processor.DocumentResult) string {
	if result.Success {
		return storage.StatusCompleted
	}
	return storage.StatusFailed
}

// fieldsFound lists the extracted field names in their canonical order
func fieldsFound(data map[string]string) []string {
	found := make([]string, 0, len(data))
	for _, name := range extraction.Fields {
		if _, ok := data[name]; ok {
			found = append(found, name)
		}
	}
	return found
}

func validatePayload(job *JobPayload) error {
	if job.JobID == "" {
		return fmt.Errorf("job payload has no jobId")
	}
	if job.FilePath == "" {
		return fmt.Errorf("job %s has no filePath", job.JobID)
	}
	return nil
}
