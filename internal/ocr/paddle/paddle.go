// Package paddle adapts the remote PaddleOCR service to the ocr.Engine interface.
package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/adverant/nexus/medocr-worker/internal/clients"
)

// EngineName identifies this engine in health reports and logs
const EngineName = "paddle"

// Recognizer is the part of clients.PaddleClient the engine needs
type Recognizer interface {
	Recognize(ctx context.Context, imageData []byte) (json.RawMessage, error)
	HealthCheck(ctx context.Context) error
}

// Engine reads an image from disk and forwards it to the PaddleOCR service
type Engine struct {
	client  Recognizer
	maxSide int
}

// New checks the service once and returns an engine bound to it
func New(ctx context.Context, client Recognizer) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("paddle client is required")
	}
	if err := client.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return &Engine{client: client, maxSide: DefaultMaxSide}, nil
}

// NewFromURL builds the HTTP client for baseURL and checks it
func NewFromURL(ctx context.Context, baseURL string) (*Engine, error) {
	return New(ctx, clients.NewPaddleClient(baseURL))
}

// Name returns the engine identifier
func (e *Engine) Name() string {
	return EngineName
}

// Recognize returns the service's raw result decoded into generic JSON values
func (e *Engine) Recognize(ctx context.Context, imagePath string) (any, error) {
	data, err := prepareImage(imagePath, e.maxSide)
	if err != nil {
		return nil, err
	}

	raw, err := e.client.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode OCR result: %w", err)
	}
	return result, nil
}
