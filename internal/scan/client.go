package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client define la interfaz hacia el servicio externo de detección de datos sensibles.
type Client interface {
	Scan(ctx context.Context, req Request) (Result, error)
}

// Request describe el documento enviado a escanear.
type Request struct {
	DocumentID  string `json:"document_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// Finding es un hallazgo tal como lo reporta el servicio de detección.
type Finding struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"`
}

// Result agrupa los hallazgos de un escaneo completo.
type Result struct {
	Findings []Finding `json:"findings"`
}

// HTTPClient implementa Client contra la API REST del servicio de detección.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye un cliente HTTP apuntando al endpoint de escaneo.
func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) Scan(ctx context.Context, scanReq Request) (Result, error) {
	bodyBytes, err := json.Marshal(scanReq)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scan", bytes.NewReader(bodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if c.logger != nil {
			c.logger.Warn("scanner rejected document",
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", raw),
			)
		}
		return Result{}, fmt.Errorf("scanner status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
