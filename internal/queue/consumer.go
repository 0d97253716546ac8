/**
 * Asynq Queue Consumer for the medical OCR worker
 *
 * Alternative to the list-based RedisConsumer for deployments that already
 * schedule work through asynq. Retries are left to asynq; terminal input
 * errors are marked with asynq.SkipRetry so they go straight to the archive.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
	"github.com/adverant/nexus/medocr-worker/internal/processor"
)

// TaskTypeProcessDocument is the asynq task type for OCR jobs
const TaskTypeProcessDocument = "ocr:process-document"

// Consumer handles job consumption through asynq
type Consumer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler *jobHandler
	config  *ConsumerConfig
	logger  *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	MaxRetries        int
	Processor         processor.DocumentProcessorInterface
	Store             ResultStore // optional
	ProcessingTimeout int64       // milliseconds
	Logger            *logging.Logger
}

// NewConsumer creates a new asynq consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
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

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	consumer := &Consumer{
		handler: newJobHandler(cfg.Processor, cfg.Store, cfg.ProcessingTimeout, cfg.Logger),
		config:  cfg,
		logger:  cfg.Logger,
	}

	consumer.server = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s ... capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				cfg.Logger.Error("Task processing error",
					"type", task.Type(),
					"payload", string(task.Payload()),
					"error", err)
			}),
		},
	)

	consumer.mux = asynq.NewServeMux()
	consumer.mux.HandleFunc(TaskTypeProcessDocument, consumer.handleProcessDocument)

	return consumer, nil
}

// Start starts the asynq server in the background
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting asynq consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping asynq consumer")
	c.server.Shutdown()
	return nil
}

// handleProcessDocument processes one OCR task
func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	var job JobPayload
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}
	if err := validatePayload(&job); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result := c.handler.process(ctx, &job)

	if result.Retryable() && c.retriesLeft(ctx) {
		c.handler.requeued(ctx, &job, result)
		return fmt.Errorf("document processing failed: %s", result.Error)
	}

	if err := c.handler.finish(ctx, &job, result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("document processing failed (%s): %s: %w", result.ErrorCode, result.Error, asynq.SkipRetry)
	}
	return nil
}

// retriesLeft reports whether asynq will run the task again after a failure
func (c *Consumer) retriesLeft(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = c.config.MaxRetries
	}
	return retried < maxRetry
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "asynq",
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

// Client submits OCR tasks to an asynq queue
type Client struct {
	client     *asynq.Client
	queueName  string
	maxRetries int
}

// NewClient creates a task producer for the given queue
func NewClient(redisURL, queueName string, maxRetries int) (*Client, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Client{
		client:     asynq.NewClient(redisOpt),
		queueName:  queueName,
		maxRetries: maxRetries,
	}, nil
}

// Enqueue submits an OCR task; the job ID doubles as the asynq task ID so a
// job cannot be queued twice
func (c *Client) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	if err := validatePayload(&payload); err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypeProcessDocument, data),
		asynq.Queue(c.queueName),
		asynq.MaxRetry(c.maxRetries),
		asynq.TaskID(payload.JobID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return info.ID, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}
