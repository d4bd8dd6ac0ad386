// Package remote implements the client for the remote prescription registry.
// Both endpoints are best-effort sinks: callers treat failures as data, not
// as fatal errors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mediflow/go-rxdraft/internal/domain/prescription"
	"github.com/mediflow/go-rxdraft/pkg/circuitbreaker"
)

const (
	savePath     = "/api/prescriptions/save"
	learningPath = "/api/learning/prescription-feedback"
)

// Client talks to the remote registry. Calls run through a circuit breaker so
// a dead registry stops costing a timeout per save.
type Client struct {
	baseURL         string
	apiKey          string
	saveTimeout     time.Duration
	learningTimeout time.Duration
	httpClient      *http.Client
	breaker         *circuitbreaker.CircuitBreaker
	logger          *zap.Logger
}

// NewClient creates a registry client. An empty apiKey is allowed: requests
// carry an empty bearer token and the registry decides.
func NewClient(baseURL, apiKey string, saveTimeout, learningTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("prescription-registry"), logger)
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}
	return &Client{
		baseURL:         baseURL,
		apiKey:          apiKey,
		saveTimeout:     saveTimeout,
		learningTimeout: learningTimeout,
		httpClient:      &http.Client{},
		breaker:         breaker,
		logger:          logger,
	}, nil
}

// SavePrescription writes the full record to the registry. The response body
// is logged, not inspected.
func (c *Client) SavePrescription(ctx context.Context, rec *prescription.Record) error {
	return c.post(ctx, savePath, c.saveTimeout, rec, map[string]string{
		"X-Client-Type": "healthcare-app",
	})
}

// SendLearningFeedback submits a learning feedback record.
func (c *Client) SendLearningFeedback(ctx context.Context, fb prescription.LearningFeedback) error {
	return c.post(ctx, learningPath, c.learningTimeout, fb, nil)
}

func (c *Client) post(ctx context.Context, path string, timeout time.Duration, payload interface{}, headers map[string]string) error {
	tracer := otel.Tracer("registry-client")
	ctx, span := tracer.Start(ctx, "registry_post")
	span.SetAttributes(attribute.String("registry.path", path))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.breaker.Execute(ctx, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("registry connection failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("registry responded with status %d", resp.StatusCode)
		}

		c.logger.Debug("registry call ok",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}
