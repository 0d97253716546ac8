/**
 * Configuration for the medical OCR worker
 *
 * Loads configuration from environment variables matching .env.medocr
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Supported OCR engines
const (
	EngineTesseract = "tesseract"
	EnginePaddle    = "paddle"
	EngineMock      = "mock"
)

// Supported queue backends
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// Redis / queue configuration
	RedisURL     string
	QueueBackend string
	QueueName    string
	MaxRetries   int

	// PostgreSQL configuration (optional, results are not persisted when empty)
	DatabaseURL string

	// Qdrant similar-report index (optional)
	QdrantURL        string
	QdrantCollection string
	VoyageAPIKey     string

	// OCR engine configuration
	OCREngine         string
	TesseractLanguage string
	TesseractPSM      int
	PaddleOCRURL      string

	// Rasterizer configuration
	PdftoppmPath string
	RasterDPI    int
	MaxPages     int

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// Base directory for relative input paths
	UploadsDir string

	// Temporary directory for rasterized pages
	TempDir string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueBackend:      strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueBackendRedis)),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "medocr:jobs"),
		MaxRetries:        getEnvAsIntOrDefault("MAX_RETRIES", 3),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", ""),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "medical_reports"),
		VoyageAPIKey:      getEnvOrDefault("VOYAGE_API_KEY", ""),
		OCREngine:         strings.ToLower(getEnvOrDefault("OCR_ENGINE", EngineTesseract)),
		TesseractLanguage: getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		TesseractPSM:      getEnvAsIntOrDefault("TESSERACT_PSM", 3),
		PaddleOCRURL:      getEnvOrDefault("PADDLE_OCR_URL", "http://localhost:3001"),
		PdftoppmPath:      getEnvOrDefault("PDFTOPPM_PATH", "pdftoppm"),
		RasterDPI:         getEnvAsIntOrDefault("RASTER_DPI", 200),
		MaxPages:          getEnvAsIntOrDefault("MAX_PAGES", 0),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 10485760), // 10MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 120000), // 2 minutes
		UploadsDir:        getEnvOrDefault("UPLOADS_DIR", "."),
		TempDir:           getEnvOrDefault("TEMP_DIR", os.TempDir()),
		LogLevel:          strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	switch c.QueueBackend {
	case QueueBackendRedis, QueueBackendAsynq:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendRedis, QueueBackendAsynq, c.QueueBackend)
	}

	switch c.OCREngine {
	case EngineTesseract, EnginePaddle, EngineMock:
	default:
		return fmt.Errorf("OCR_ENGINE must be one of tesseract, paddle, mock; got %q", c.OCREngine)
	}

	if c.OCREngine == EnginePaddle && c.PaddleOCRURL == "" {
		return fmt.Errorf("PADDLE_OCR_URL is required when OCR_ENGINE=paddle")
	}

	if c.TesseractPSM < 0 || c.TesseractPSM > 13 {
		return fmt.Errorf("TESSERACT_PSM must be between 0 and 13, got %d", c.TesseractPSM)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.RasterDPI < 72 || c.RasterDPI > 600 {
		return fmt.Errorf("RASTER_DPI must be between 72 and 600, got %d", c.RasterDPI)
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES must not be negative, got %d", c.MaxPages)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}

	return nil
}

// IndexEnabled reports whether results should be embedded and indexed in Qdrant
func (c *Config) IndexEnabled() bool {
	return c.QdrantURL != "" && c.VoyageAPIKey != ""
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
