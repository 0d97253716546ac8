/**
 * Storage Manager for the medical OCR worker
 *
 * Coordinates storage across PostgreSQL (results and job status) and Qdrant
 * (report embeddings). Both backends are optional; a worker with neither
 * simply keeps results in the queue backend.
 */

package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

var (
	jsonNullEscape    = regexp.MustCompile(`\\u0000`)
	jsonControlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// Embedder turns report text into a vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// StorageConfig selects the backends to connect to; empty values disable them
type StorageConfig struct {
	DatabaseURL      string
	QdrantURL        string
	QdrantCollection string
}

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
	embedder Embedder
	logger   *logging.Logger
}

// SimilarReport is a stored report close to a query text
type SimilarReport struct {
	JobID           string
	VectorID        string
	FieldsFound     []string
	StructuredData  map[string]string
	Confidence      float64
	SimilarityScore float64
}

// NewStorageManager connects to every configured backend
func NewStorageManager(cfg StorageConfig, embedder Embedder) (*StorageManager, error) {
	sm := &StorageManager{
		embedder: embedder,
		logger:   logging.NewLogger("storage"),
	}

	if cfg.DatabaseURL != "" {
		postgres, err := NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx); err != nil {
			postgres.Close()
			return nil, err
		}
		sm.postgres = postgres
	}

	if cfg.QdrantURL != "" && embedder != nil {
		qdrant, err := NewQdrantClient(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			sm.Close()
			return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
		}
		sm.qdrant = qdrant
	}

	sm.logger.Info("Storage initialized",
		"postgres", sm.postgres != nil,
		"qdrant", sm.qdrant != nil)

	return sm, nil
}

// newStorageManagerFromClients wires pre-built clients; either may be nil
func newStorageManagerFromClients(postgres *PostgresClient, qdrant *QdrantClient, embedder Embedder, logger *logging.Logger) *StorageManager {
	if logger == nil {
		logger = logging.NewLogger("storage")
	}
	return &StorageManager{postgres: postgres, qdrant: qdrant, embedder: embedder, logger: logger}
}

// PersistenceEnabled reports whether results are written to PostgreSQL
func (sm *StorageManager) PersistenceEnabled() bool {
	return sm.postgres != nil
}

// IndexEnabled reports whether reports are indexed for similarity search
func (sm *StorageManager) IndexEnabled() bool {
	return sm.qdrant != nil && sm.embedder != nil
}

// StoreResult indexes a real, successful extraction in Qdrant and then saves
// the record to PostgreSQL. If the database write fails the vector is removed
// again so the index never points at a missing row. Embedding failures only
// skip indexing.
func (sm *StorageManager) StoreResult(ctx context.Context, rec *ExtractionRecord) error {
	if rec == nil || rec.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	var vectorID string
	if sm.IndexEnabled() && rec.Success && !rec.Mock && strings.TrimSpace(rec.ExtractedText) != "" {
		id, err := sm.indexReport(ctx, rec)
		if err != nil {
			sm.logger.Warn("Report not indexed", "jobId", rec.JobID, "error", err)
		} else {
			vectorID = id
			rec.VectorID = id
		}
	}

	if sm.postgres == nil {
		return nil
	}

	if err := sm.postgres.SaveResult(ctx, rec); err != nil {
		if vectorID != "" {
			if delErr := sm.qdrant.DeleteVector(ctx, vectorID); delErr != nil {
				sm.logger.Error("Failed to roll back vector", "jobId", rec.JobID, "vectorId", vectorID, "error", delErr)
			}
			rec.VectorID = ""
		}
		return fmt.Errorf("failed to store result in PostgreSQL: %w", err)
	}

	return nil
}

func (sm *StorageManager) indexReport(ctx context.Context, rec *ExtractionRecord) (string, error) {
	embedding, err := sm.embedder.GenerateEmbedding(ctx, rec.ExtractedText)
	if err != nil {
		return "", fmt.Errorf("failed to generate embedding: %w", err)
	}

	fields := rec.FieldsFound
	if fields == nil {
		fields = []string{}
	}

	point := &VectorPoint{
		ID:     uuid.New().String(),
		Vector: embedding,
		Metadata: map[string]interface{}{
			payloadJobID:       rec.JobID,
			payloadFieldsFound: fields,
			payloadConfidence:  rec.Confidence,
			"structured_data":  rec.StructuredData,
		},
		Timestamp: time.Now().Unix(),
	}
	if err := sm.qdrant.UpsertVector(ctx, point); err != nil {
		return "", err
	}
	return point.ID, nil
}

// SearchSimilar embeds text and returns the closest stored reports. When
// requiredField is set only reports containing that field are considered.
func (sm *StorageManager) SearchSimilar(ctx context.Context, text string, limit int, requiredField string) ([]*SimilarReport, error) {
	if !sm.IndexEnabled() {
		return nil, fmt.Errorf("similarity search is not configured")
	}

	queryVector, err := sm.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	points, err := sm.qdrant.SearchVectors(ctx, queryVector, limit, requiredField)
	if err != nil {
		return nil, err
	}

	reports := make([]*SimilarReport, 0, len(points))
	for _, point := range points {
		jobID, ok := point.Metadata[payloadJobID].(string)
		if !ok {
			continue
		}
		report := &SimilarReport{
			JobID:          jobID,
			VectorID:       point.ID,
			StructuredData: map[string]string{},
		}
		if score, ok := point.Metadata[payloadScore].(float64); ok {
			report.SimilarityScore = score
		}
		if conf, ok := point.Metadata[payloadConfidence].(float64); ok {
			report.Confidence = conf
		}
		if list, ok := point.Metadata[payloadFieldsFound].([]interface{}); ok {
			for _, f := range list {
				if s, ok := f.(string); ok {
					report.FieldsFound = append(report.FieldsFound, s)
				}
			}
		}
		if data, ok := point.Metadata["structured_data"].(map[string]interface{}); ok {
			for k, v := range data {
				if s, ok := v.(string); ok {
					report.StructuredData[k] = s
				}
			}
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// RecordJobStatus writes a status transition when PostgreSQL is configured
func (sm *StorageManager) RecordJobStatus(ctx context.Context, update *JobUpdate) error {
	if sm.postgres == nil {
		return nil
	}
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetResult retrieves a stored result by job ID
func (sm *StorageManager) GetResult(ctx context.Context, jobID string) (*ExtractionRecord, error) {
	if sm.postgres == nil {
		return nil, fmt.Errorf("result persistence is not configured")
	}
	return sm.postgres.GetResultByJobID(ctx, jobID)
}

// GetStats returns statistics from the configured backends
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{}

	if sm.postgres != nil {
		pgStats := sm.postgres.GetStats()
		counts, err := sm.postgres.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		stats["postgres"] = map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
			"jobs_by_status":       counts,
		}
	}

	if sm.qdrant != nil {
		qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
		}
		stats["qdrant"] = qdrantStats
	}

	return stats, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}
	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}
	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}
	return nil
}

// sanitizeJSONForPostgres removes escape sequences PostgreSQL JSONB rejects:
// \u0000 is dropped and other control characters become a space
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := jsonNullEscape.ReplaceAll(jsonBytes, []byte{})
	return jsonControlEscape.ReplaceAll(result, []byte(" "))
}

// stripNulls removes NUL bytes, which TEXT columns cannot hold
func stripNulls(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
