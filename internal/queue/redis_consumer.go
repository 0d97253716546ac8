/**
 * Direct Redis Queue Consumer for the medical OCR worker
 *
 * Uses plain Redis LIST operations so any producer can enqueue jobs:
 * job IDs are pushed on <queue>, job bodies live in the <queue>:data hash,
 * and progress is tracked in the processing/completed/failed sets.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/processor"
)

// DefaultQueueName is used when no queue name is configured
const DefaultQueueName = "medocr:jobs"

// JobTypeProcessDocument marks OCR jobs in the Redis queue
const JobTypeProcessDocument = "process-document"

var errNoJobs = errors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client  *redis.Client
	handler *jobHandler
	config  *RedisConsumerConfig
	logger  *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	Store             ResultStore // optional
	ProcessingTimeout int64       // milliseconds
	Logger            *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("queue")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:  client,
		handler: newJobHandler(cfg.Processor, cfg.Store, cfg.ProcessingTimeout, cfg.Logger),
		config:  cfg,
		logger:  cfg.Logger,
		ctx:     consumerCtx,
		cancel:  cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop gracefully stops the consumer, letting in-flight jobs finish
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if errors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			c.logger.Error("Worker error", "worker", id, "error", err)
			select {
			case <-c.ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	id := result[1]

	// Once a job is popped it runs to completion even if the consumer is stopping
	ctx := context.WithoutCancel(c.ctx)

	raw, err := c.client.HGet(ctx, c.key("data"), id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", id, err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.markFailed(ctx, id, map[string]interface{}{"error": fmt.Sprintf("malformed job: %v", err)})
		return fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}

	if err := validatePayload(&job.Payload); err != nil {
		c.markFailed(ctx, id, map[string]interface{}{"error": err.Error()})
		return err
	}

	c.client.SAdd(ctx, c.key("processing"), id)
	c.publish(ctx, "processing", id, nil)

	docResult := c.handler.process(ctx, &job.Payload)

	job.Attempts++
	if docResult.Retryable() && job.Attempts <= job.MaxRetries {
		c.requeue(ctx, &job, docResult)
		return nil
	}

	storeErr := c.handler.finish(ctx, &job.Payload, docResult)
	if storeErr != nil {
		c.logger.Error("Failed to persist result", "jobId", job.Payload.JobID, "error", storeErr)
	}

	if docResult.Success {
		c.markCompleted(ctx, id, docResult)
	} else {
		c.markFailed(ctx, id, map[string]interface{}{
			"error":     docResult.Error,
			"errorCode": string(docResult.ErrorCode),
			"attempts":  job.Attempts,
		})
	}

	return nil
}

func (c *RedisConsumer) requeue(ctx context.Context, job *RedisJobData, result *processor.DocumentResult) {
	c.handler.requeued(ctx, &job.Payload, result)

	updated, err := json.Marshal(job)
	if err != nil {
		c.logger.Error("Failed to marshal job for retry", "jobId", job.Payload.JobID, "error", err)
		return
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.key("data"), job.ID, updated)
	pipe.SRem(ctx, c.key("processing"), job.ID)
	pipe.LPush(ctx, c.config.QueueName, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to re-queue job", "jobId", job.Payload.JobID, "error", err)
		return
	}

	c.logger.Info("Job re-queued for retry",
		"jobId", job.Payload.JobID,
		"attempt", job.Attempts,
		"maxRetries", job.MaxRetries)
}

func (c *RedisConsumer) markCompleted(ctx context.Context, id string, result *processor.DocumentResult) {
	resultData, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to marshal result", "id", id, "error", err)
		return
	}

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.key("processing"), id)
	pipe.SAdd(ctx, c.key("completed"), id)
	pipe.HSet(ctx, c.key("results"), id, resultData)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to mark job completed", "id", id, "error", err)
	}

	c.publish(ctx, "completed", id, map[string]interface{}{
		"mock":        result.Mock,
		"fieldsFound": fieldsFound(result.StructuredData),
	})
}

func (c *RedisConsumer) markFailed(ctx context.Context, id string, details map[string]interface{}) {
	errorData, err := json.Marshal(details)
	if err != nil {
		c.logger.Error("Failed to marshal error details", "id", id, "error", err)
		return
	}

	pipe := c.client.TxPipeline()
	pipe.SRem(ctx, c.key("processing"), id)
	pipe.SAdd(ctx, c.key("failed"), id)
	pipe.HSet(ctx, c.key("errors"), id, errorData)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to mark job failed", "id", id, "error", err)
	}

	c.publish(ctx, "failed", id, map[string]interface{}{"error": details["error"]})
}

// publish emits a job event on <queue>:events
func (c *RedisConsumer) publish(ctx context.Context, status, id string, extra map[string]interface{}) {
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     id,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		event[k] = v
	}
	eventData, _ := json.Marshal(event)
	if err := c.client.Publish(ctx, c.key("events"), eventData).Err(); err != nil {
		c.logger.Debug("Failed to publish event", "id", id, "error", err)
	}
}

func (c *RedisConsumer) key(suffix string) string {
	return fmt.Sprintf("%s:%s", c.config.QueueName, suffix)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.config.QueueName)
	processing := pipe.SCard(ctx, c.key("processing"))
	completed := pipe.SCard(ctx, c.key("completed"))
	failed := pipe.SCard(ctx, c.key("failed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

// Enqueue adds an OCR job to a Redis list queue and returns its job ID.
// A job ID is generated when the payload has none.
func Enqueue(ctx context.Context, client *redis.Client, queueName string, payload JobPayload, maxRetries int) (string, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if err := validatePayload(&payload); err != nil {
		return "", err
	}

	job := RedisJobData{
		ID:         payload.JobID,
		Type:       JobTypeProcessDocument,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: maxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := client.TxPipeline()
	pipe.HSet(ctx, queueName+":data", job.ID, data)
	pipe.LPush(ctx, queueName, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	return job.ID, nil
}
