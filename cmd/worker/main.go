/**
 * Medical OCR Worker - Main Entry Point
 *
 * Consumes OCR jobs from Redis, extracts text and clinical fields from
 * scanned reports, and persists the results.
 *
 * Architecture:
 * - Redis list consumer (default) or asynq consumer for the job queue
 * - Tesseract (in-process) or PaddleOCR (HTTP sidecar) recognition,
 *   falling back to mock results when no engine can be initialized
 * - pdftoppm rasterization for multi-page PDF reports
 * - PostgreSQL persistence and optional Qdrant similar-report index
 */

package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/medocr-worker/internal/clients"
	"github.com/adverant/nexus/medocr-worker/internal/config"
	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/ocr/engines"
	"github.com/adverant/nexus/medocr-worker/internal/processor"
	"github.com/adverant/nexus/medocr-worker/internal/queue"
	"github.com/adverant/nexus/medocr-worker/internal/raster"
	"github.com/adverant/nexus/medocr-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env.medocr"); err != nil {
		log.Printf("Warning: .env.medocr not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetDebug(cfg.LogLevel == "debug")

	log.Printf("Medical OCR Worker starting...")
	log.Printf("Configuration loaded: Queue=%s (%s), Engine=%s, Workers=%d, PostgreSQL=%t, Qdrant=%t",
		cfg.QueueName, cfg.QueueBackend, cfg.OCREngine, cfg.WorkerConcurrency,
		cfg.DatabaseURL != "", cfg.IndexEnabled())

	// Engine availability is decided once; an unavailable engine means mock mode
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	engine := engines.Init(initCtx, cfg)
	cancelInit()
	if closer, ok := engine.Engine.(io.Closer); ok {
		defer closer.Close()
	}

	rasterizer := raster.NewPdftoppm(raster.Config{
		Pdftoppm: cfg.PdftoppmPath,
		DPI:      cfg.RasterDPI,
		MaxPages: cfg.MaxPages,
	}, raster.ExecRunner{})
	if err := rasterizer.Available(); err != nil {
		log.Printf("Warning: PDF input disabled until pdftoppm is installed: %v", err)
	}

	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Engine:      engine,
		Rasterizer:  rasterizer,
		UploadsDir:  cfg.UploadsDir,
		TempDir:     cfg.TempDir,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logging.NewLogger("processor"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize document processor: %v", err)
	}

	health := proc.Health()
	log.Printf("Document processor initialized: status=%s, engine=%s, ocr_available=%t, rasterizer_available=%t",
		health.Status, health.Engine, health.OCRAvailable, health.RasterizerAvailable)
	if health.Reason != "" {
		log.Printf("OCR unavailable: %s", health.Reason)
	}

	var embedder storage.Embedder
	if cfg.IndexEnabled() {
		embeddingClient, err := clients.NewEmbeddingClient(cfg.VoyageAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize embedding client: %v", err)
		}
		embedder = embeddingClient
	}

	storageManager, err := storage.NewStorageManager(storage.StorageConfig{
		DatabaseURL:      cfg.DatabaseURL,
		QdrantURL:        cfg.QdrantURL,
		QdrantCollection: cfg.QdrantCollection,
	}, embedder)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()

	var store queue.ResultStore
	if storageManager.PersistenceEnabled() || storageManager.IndexEnabled() {
		store = storageManager
	}

	queueLogger := logging.NewLogger("queue")
	var stop func() error

	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			MaxRetries:        cfg.MaxRetries,
			Processor:         proc,
			Store:             store,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
			Logger:            queueLogger,
		})
		if err != nil {
			log.Fatalf("Failed to initialize asynq consumer: %v", err)
		}
		if err := consumer.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start asynq consumer: %v", err)
		}
		stop = func() error { return consumer.Stop(context.Background()) }

	default:
		consumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			Store:             store,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
			Logger:            queueLogger,
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		if err := consumer.Start(); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
		stop = consumer.Stop
	}

	log.Printf("===========================================")
	log.Printf("Medical OCR Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueBackend)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Engine: %s (mock=%t)", health.Engine, !health.OCRAvailable)
	log.Printf("Timeout: %dms per job, %d retries", cfg.ProcessingTimeout, cfg.MaxRetries)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped")
	}

	log.Printf("Shutdown complete")
}
