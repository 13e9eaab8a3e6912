package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/erpbridge/backend/internal/infrastructure/config"
	"github.com/erpbridge/backend/internal/infrastructure/engine"
)

// maxResponseSize is the maximum allowed response size from the ERP API (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	// ErrUnknownEndpoint indicates a delivery endpoint the client has no path for
	ErrUnknownEndpoint = errors.New("erp: unknown delivery endpoint")

	// ErrNotConfigured indicates the client has no base URL to talk to
	ErrNotConfigured = errors.New("erp: connection not configured")
)

// endpointPaths maps logical delivery endpoints to ERP API paths
var endpointPaths = map[string]string{
	"customers": "/api/v1/customers/batch",
	"products":  "/api/v1/products/batch",
	"sales":     "/api/v1/sales/invoices",
	"inventory": "/api/v1/inventory/updates",
}

// RequestError is a non-2xx response from the ERP API. Retryable reports
// whether the delivery layer may try the request again.
type RequestError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("erp: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is transient
func (e *RequestError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether a delivery error is worth retrying.
// Network-level failures are retryable, 4xx responses are not.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable()
	}
	// url.Error, timeouts, connection resets
	return err != nil
}

// Credentials carries the connection material for one ERP instance
type Credentials struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// Client posts mapped records to the ERP REST API
type Client struct {
	creds      Credentials
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates an ERP client from static configuration
func NewClient(cfg config.ERPConfig, opts ...ClientOption) *Client {
	return NewClientWithCredentials(Credentials{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}, cfg.Timeout, opts...)
}

// NewClientWithCredentials creates an ERP client for a stored connection
func NewClientWithCredentials(creds Credentials, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BatchResponse is the ERP reply to one batch POST
type BatchResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// PostBatch sends one batch of mapped records to the endpoint's API path.
// The payload is a JSON array of records.
func (c *Client) PostBatch(ctx context.Context, endpoint string, records []engine.MappedRecord) (*BatchResponse, error) {
	path, ok := endpointPaths[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("erp: failed to encode batch: %w", err)
	}

	body, status, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return &BatchResponse{StatusCode: status, Body: body}, nil
}

// TestConnection probes the ERP health endpoint with the configured credentials
func (c *Client) TestConnection(ctx context.Context) error {
	_, _, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// doRequest performs one HTTP request against the ERP base URL
func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) (json.RawMessage, int, error) {
	if c.creds.BaseURL == "" {
		return nil, 0, ErrNotConfigured
	}

	url := strings.TrimRight(c.creds.BaseURL, "/") + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("erp: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("erp: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("erp: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &RequestError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 512),
		}
	}
	return body, resp.StatusCode, nil
}

// authHeader builds the Authorization value. Key-and-secret pairs use the
// ERPNext token scheme, a bare key is sent as a Bearer token.
func (c *Client) authHeader() string {
	if c.creds.APISecret != "" {
		return fmt.Sprintf("token %s:%s", c.creds.APIKey, c.creds.APISecret)
	}
	return "Bearer " + c.creds.APIKey
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
