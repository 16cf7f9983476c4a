// Package callback reports settled scans to an HTTP webhook.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
)

// Completion statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Reporter posts a Completion for every settled scan.
type Reporter struct {
	url      string
	apiKey   string
	logger   *zap.SugaredLogger
	client   *http.Client
	sequence int64 // Monotonic counter for idempotency
}

// Completion is the webhook payload. Threat content is not included.
type Completion struct {
	RequestID    string    `json:"request_id"`
	Collector    string    `json:"collector"`
	Sequence     int       `json:"sequence"`
	Kind         scan.Kind `json:"kind"`
	Status       string    `json:"status"`
	ThreatCount  int       `json:"threat_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Timestamp    string    `json:"timestamp"`
}

// NewReporter creates a new callback reporter.
func NewReporter(cfg config.CallbackConfig, logger *zap.SugaredLogger) *Reporter {
	return &Reporter{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		logger: logger,
		client: &http.Client{
			Timeout:   time.Duration(cfg.Timeout) * time.Millisecond,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// PublishOutcome sends the completion callback for one settled scan.
func (r *Reporter) PublishOutcome(ctx context.Context, requestID string, kind scan.Kind, outcome scan.Outcome) error {
	seq := atomic.AddInt64(&r.sequence, 1)

	payload := Completion{
		RequestID: requestID,
		Collector: "scan-console",
		Sequence:  int(seq),
		Kind:      kind,
		Status:    StatusCompleted,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if outcome.Failed() {
		payload.Status = StatusFailed
		payload.ErrorMessage = outcome.Message
	} else if !scan.HasNoThreats(outcome) {
		payload.ThreatCount = outcome.Count
	}

	return r.sendCallback(ctx, payload)
}

func (r *Reporter) sendCallback(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warnw("Callback failed", "url", r.url, "error", err)
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		r.logger.Warnw("Callback returned error", "url", r.url, "status", resp.StatusCode)
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}

	r.logger.Debugw("Callback sent", "url", r.url, "status", resp.StatusCode)
	return nil
}
