/**
 * PostgreSQL Client for the medical OCR worker
 *
 * Persists job status and extraction results so that callers can fetch a
 * report's text and structured fields after the queue has moved on.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Job statuses written to the results table
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS medocr;

	CREATE TABLE IF NOT EXISTS medocr.extraction_results (
		job_id             TEXT PRIMARY KEY,
		file_path          TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		success            BOOLEAN NOT NULL DEFAULT FALSE,
		mock               BOOLEAN NOT NULL DEFAULT FALSE,
		extracted_text     TEXT NOT NULL DEFAULT '',
		structured_data    JSONB NOT NULL DEFAULT '{}'::jsonb,
		fields_found       TEXT[] NOT NULL DEFAULT '{}',
		confidence         NUMERIC(5,4),
		processing_time_ms BIGINT,
		pages_processed    INTEGER,
		lines_detected     INTEGER,
		error_code         TEXT,
		error_message      TEXT,
		vector_id          UUID,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS extraction_results_fields_found_idx
		ON medocr.extraction_results USING GIN (fields_found);
`

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID        string
	FilePath     string
	Status       string
	ErrorCode    string
	ErrorMessage string
}

// ExtractionRecord is one processed document as stored in the database
type ExtractionRecord struct {
	JobID            string
	FilePath         string
	Status           string
	Success          bool
	Mock             bool
	ExtractedText    string
	StructuredData   map[string]string
	FieldsFound      []string
	Confidence       float64
	ProcessingTimeMs int64
	PagesProcessed   int
	LinesDetected    int
	ErrorCode        string
	ErrorMessage     string
	VectorID         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// sanitizeConfidence rounds confidence to 4 decimal places and clamps it to
// [0, 1] so it always fits NUMERIC(5,4)
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newPostgresClientFromDB(db), nil
}

func newPostgresClientFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

// EnsureSchema creates the results table if it does not exist
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus records a status transition, creating the row on first sight
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	query := `
		INSERT INTO medocr.extraction_results (
			job_id, file_path, status, error_code, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW(), NOW()
		)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			file_path = COALESCE(NULLIF(EXCLUDED.file_path, ''), medocr.extraction_results.file_path),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`

	_, err := p.db.ExecContext(ctx, query,
		update.JobID,        // $1
		update.FilePath,     // $2
		update.Status,       // $3
		update.ErrorCode,    // $4
		update.ErrorMessage, // $5
	)
	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w", update.JobID, update.Status, err)
	}
	return nil
}

// SaveResult upserts the final extraction result for a job
func (p *PostgresClient) SaveResult(ctx context.Context, rec *ExtractionRecord) error {
	if rec == nil || rec.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	structured := rec.StructuredData
	if structured == nil {
		structured = map[string]string{}
	}
	structuredJSON, err := json.Marshal(structured)
	if err != nil {
		return fmt.Errorf("failed to marshal structured data: %w", err)
	}
	structuredJSON = sanitizeJSONForPostgres(structuredJSON)

	fields := rec.FieldsFound
	if fields == nil {
		fields = []string{}
	}

	query := `
		INSERT INTO medocr.extraction_results (
			job_id, file_path, status, success, mock,
			extracted_text, structured_data, fields_found,
			confidence, processing_time_ms, pages_processed, lines_detected,
			error_code, error_message, vector_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7::jsonb, $8,
			$9::NUMERIC(5,4), $10, NULLIF($11, 0), NULLIF($12, 0),
			NULLIF($13, ''), NULLIF($14, ''),
			CASE WHEN $15 = '' THEN NULL ELSE $15::uuid END,
			NOW(), NOW()
		)
		ON CONFLICT (job_id) DO UPDATE SET
			file_path = COALESCE(NULLIF(EXCLUDED.file_path, ''), medocr.extraction_results.file_path),
			status = EXCLUDED.status,
			success = EXCLUDED.success,
			mock = EXCLUDED.mock,
			extracted_text = EXCLUDED.extracted_text,
			structured_data = EXCLUDED.structured_data,
			fields_found = EXCLUDED.fields_found,
			confidence = EXCLUDED.confidence,
			processing_time_ms = EXCLUDED.processing_time_ms,
			pages_processed = EXCLUDED.pages_processed,
			lines_detected = EXCLUDED.lines_detected,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			vector_id = COALESCE(EXCLUDED.vector_id, medocr.extraction_results.vector_id),
			updated_at = NOW()
	`

	_, err = p.db.ExecContext(ctx, query,
		rec.JobID,                          // $1
		rec.FilePath,                       // $2
		rec.Status,                         // $3
		rec.Success,                        // $4
		rec.Mock,                           // $5
		stripNulls(rec.ExtractedText),      // $6
		structuredJSON,                     // $7
		pq.Array(fields),                   // $8
		sanitizeConfidence(rec.Confidence), // $9
		rec.ProcessingTimeMs,               // $10
		rec.PagesProcessed,                 // $11
		rec.LinesDetected,                  // $12
		rec.ErrorCode,                      // $13
		rec.ErrorMessage,                   // $14
		rec.VectorID,                       // $15
	)
	if err != nil {
		return fmt.Errorf("failed to save result (job=%s, confidence=%.4f): %w",
			rec.JobID, sanitizeConfidence(rec.Confidence), err)
	}
	return nil
}

// GetResultByJobID retrieves a stored extraction result
func (p *PostgresClient) GetResultByJobID(ctx context.Context, jobID string) (*ExtractionRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			job_id, file_path, status, success, mock,
			extracted_text, structured_data, fields_found,
			confidence, processing_time_ms, pages_processed, lines_detected,
			error_code, error_message, vector_id,
			created_at, updated_at
		FROM medocr.extraction_results
		WHERE job_id = $1
	`

	var (
		rec              ExtractionRecord
		structuredJSON   []byte
		fields           pq.StringArray
		confidence       sql.NullFloat64
		processingTimeMs sql.NullInt64
		pages, lines     sql.NullInt64
		errorCode        sql.NullString
		errorMessage     sql.NullString
		vectorID         sql.NullString
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.JobID, &rec.FilePath, &rec.Status, &rec.Success, &rec.Mock,
		&rec.ExtractedText, &structuredJSON, &fields,
		&confidence, &processingTimeMs, &pages, &lines,
		&errorCode, &errorMessage, &vectorID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	rec.StructuredData = map[string]string{}
	if len(structuredJSON) > 0 {
		if err := json.Unmarshal(structuredJSON, &rec.StructuredData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal structured data: %w", err)
		}
	}
	rec.FieldsFound = []string(fields)
	rec.Confidence = confidence.Float64
	rec.ProcessingTimeMs = processingTimeMs.Int64
	rec.PagesProcessed = int(pages.Int64)
	rec.LinesDetected = int(lines.Int64)
	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String
	rec.VectorID = vectorID.String

	return &rec, nil
}

// CountByStatus returns how many jobs are in each status
func (p *PostgresClient) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM medocr.extraction_results GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
