package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/mindwellhq/mindsync/internal/config"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
)

// HTTPClient implements Transport over a REST-shaped API:
//
//	POST   {base}/api/v1/{collection}        -> {"id": "..."}
//	PATCH  {base}/api/v1/{collection}/{id}
//	DELETE {base}/api/v1/{collection}/{id}
//
// The client timeout doubles as the per-call bound: a hung request
// fails the attempt instead of stalling a sync batch indefinitely.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *events.Logger

	mu    sync.Mutex
	token string

	// Retry configuration for transient request failures.
	maxRetries int
	retryDelay time.Duration
}

// NewHTTPClient creates an HTTP transport.
func NewHTTPClient(cfg *config.APIConfig, logger *events.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		token:      cfg.Token,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "http_client"),
	}
}

// SetToken sets the authentication token.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetToken returns the current authentication token.
func (c *HTTPClient) GetToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CreateRecord pushes a full record.
func (c *HTTPClient) CreateRecord(ctx context.Context, collection models.Collection, payload map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/api/v1/%s", c.baseURL, collection)

	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse create response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("create response missing id")
	}
	return resp.ID, nil
}

// UpdateRecord applies a partial patch.
func (c *HTTPClient) UpdateRecord(ctx context.Context, collection models.Collection, id string, patch map[string]interface{}) error {
	url := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, collection, id)
	_, err := c.do(ctx, http.MethodPatch, url, patch)
	return err
}

// DeleteRecord removes a record.
func (c *HTTPClient) DeleteRecord(ctx context.Context, collection models.Collection, id string) error {
	url := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, collection, id)
	_, err := c.do(ctx, http.MethodDelete, url, nil)
	return err
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do executes one request with retry on transient failures and returns
// the response body.
func (c *HTTPClient) do(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = data
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
		"size":   len(reqBody),
	}).Debug("Sending request")

	var respBody []byte
	err := c.retry(ctx, func() error {
		var bodyReader io.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.GetToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			apiErr := &models.APIError{StatusCode: resp.StatusCode}
			if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
				apiErr.Message = string(body)
			}
			apiErr.StatusCode = resp.StatusCode
			return apiErr
		}

		respBody = body
		return nil
	})

	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
		"size":   len(respBody),
	}).Debug("Received response")

	return respBody, nil
}

// retry executes fn with exponential backoff on transient failures.
func (c *HTTPClient) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable treats network failures and transient server statuses as
// retryable; structured caller errors are not.
func isRetryable(err error) bool {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
