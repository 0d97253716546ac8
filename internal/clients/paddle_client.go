/**
 * PaddleOCR Client
 *
 * Talks to a PaddleOCR sidecar over HTTP. The service returns the engine's
 * raw recognition output untouched, so every payload shape PaddleOCR can
 * produce reaches the normalizer as-is.
 *
 * Sidecar contract. Any service implementing these two routes can back the
 * paddle engine; the image travels in the body so the sidecar needs no
 * access to the worker's filesystem.
 *
 *   GET  /health
 *        200 {"status": "healthy", "service": "...", "ocr_available": true,
 *             "timestamp": "..."}
 *        ocr_available=false (or any non-200) marks the engine unavailable.
 *
 *   POST /ocr/raw
 *        Content-Type: application/json, X-Request-ID: ocr-<uuid>
 *        {"image": "<base64 PNG/JPEG>", "format": "base64", "cls": true}
 *        200 {"success": true, "result": <value of PaddleOCR.ocr(img, cls)>}
 *        200 {"success": false, "error": "..."} on recognition failure.
 *        "result" is passed through verbatim: a batch list, detection lines,
 *        a recognition batch or {"text", "confidence"} are all accepted.
 *
 * A Flask sidecar wrapping PaddleOCR gets there by decoding "image" with
 * base64 and cv2.imdecode, then returning ocr.ocr(img, cls=cls) unchanged.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

// Sidecar routes
const (
	HealthPath    = "/health"
	RecognizePath = "/ocr/raw"
)

// PaddleClient handles communication with the PaddleOCR service
type PaddleClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// PaddleOCRRequest asks the service to recognize one image
type PaddleOCRRequest struct {
	Image  string `json:"image"`  // Base64 encoded image
	Format string `json:"format"` // always "base64"
	Cls    bool   `json:"cls"`    // run the angle classifier
}

// PaddleOCRResponse carries the raw engine result
type PaddleOCRResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error,omitempty"`
}

// PaddleHealthResponse mirrors the service /health payload
type PaddleHealthResponse struct {
	Status       string `json:"status"`
	Service      string `json:"service"`
	OCRAvailable bool   `json:"ocr_available"`
	Timestamp    string `json:"timestamp"`
}

// NewPaddleClient creates a new PaddleOCR client
func NewPaddleClient(baseURL string) *PaddleClient {
	return &PaddleClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // large scans can take a while
		},
		logger: logging.NewLogger("PaddleClient"),
	}
}

// Recognize sends image bytes to the service and returns the raw result JSON
func (c *PaddleClient) Recognize(ctx context.Context, imageData []byte) (json.RawMessage, error) {
	endpoint := c.baseURL + RecognizePath

	reqBody, err := json.Marshal(&PaddleOCRRequest{
		Image:  base64.StdEncoding.EncodeToString(imageData),
		Format: "base64",
		Cls:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Source", "medocr-worker")
	httpReq.Header.Set("X-Request-ID", "ocr-"+uuid.New().String())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to PaddleOCR failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PaddleOCR returned error status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp PaddleOCRResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !ocrResp.Success {
		return nil, fmt.Errorf("PaddleOCR operation failed: %s", ocrResp.Error)
	}

	c.logger.Debug("Recognition complete",
		"imageSize", len(imageData),
		"resultSize", len(ocrResp.Result),
		"duration", time.Since(start))

	return ocrResp.Result, nil
}

// HealthCheck verifies the service is up and its engine loaded
func (c *PaddleClient) HealthCheck(ctx context.Context) error {
	endpoint := c.baseURL + HealthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	var health PaddleHealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}
	if !health.OCRAvailable {
		return fmt.Errorf("PaddleOCR service reports engine unavailable")
	}
	return nil
}
