// Package scanclient talks to the remote scanning service.
package scanclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Endpoint paths on the scanning service.
const (
	ScanFilePath = "/scan_file"
	ScanTextPath = "/scan_text"
)

// ErrDecode is returned when the response body is not a JSON object.
var ErrDecode = errors.New("invalid scan response")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Response is the decoded body of a scan endpoint. Error is empty when the
// service did not report an application-level error.
type Response struct {
	StatusCode int
	Error      string
	Threats    []scan.Threat
	Count      int
}

// Client issues scan requests against the service.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// New creates a new scan service client.
func New(cfg config.ScanServiceConfig, logger *zap.SugaredLogger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	return &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		client: &http.Client{
			Timeout:   time.Duration(cfg.Timeout) * time.Millisecond,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// ScanFile uploads f as the multipart part "file".
func (c *Client) ScanFile(ctx context.Context, f *scan.File) (*Response, error) {
	if f == nil {
		return nil, errors.New("no file to upload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return c.post(ctx, ScanFilePath, mw.FormDataContentType(), &body)
}

// ScanText submits text as {"text": text}.
func (c *Client) ScanText(ctx context.Context, text string) (*Response, error) {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return c.post(ctx, ScanTextPath, "application/json", bytes.NewReader(body))
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The status code is informational only: the service reports logical
	// errors in the body, and any JSON object body is a response.
	out, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}
	out.StatusCode = resp.StatusCode

	c.logger.Debugw("Scan service responded",
		"path", path,
		"status", resp.StatusCode,
		"count", out.Count,
		"threats", len(out.Threats),
		"error", out.Error,
	)

	return out, nil
}
