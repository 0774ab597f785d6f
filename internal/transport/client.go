// Package transport talks to the service-request API.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/catalog"
	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/model"
)

const (
	// SubmitPath receives new service requests.
	SubmitPath = "/service-requests"
	// CatalogPath lists every service category.
	CatalogPath = "/service-requests/services/all"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is an API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitURL returns the absolute submission endpoint.
func (c *Client) SubmitURL() string {
	return c.baseURL + SubmitPath
}

// SubmitResponse is the body of a successful submission.
type SubmitResponse struct {
	Success   bool     `json:"success"`
	RequestID model.ID `json:"request_id"`
	Message   string   `json:"message"`
}

// errorBody covers the error shapes the API returns.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Submit posts an encoded payload to the submission endpoint.
func (c *Client) Submit(ctx context.Context, body []byte) (*SubmitResponse, error) {
	return c.Send(ctx, http.MethodPost, c.SubmitURL(), body)
}

// Send delivers body to an absolute url. Queued offline entries are
// replayed through it with their recorded method and url.
//
// A 2xx response whose body reports success:false is a rejection like
// any non-2xx status. Rejections are *FieldRejectedError or *StatusError.
func (c *Client) Send(ctx context.Context, method, url string, body []byte) (*SubmitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("request completed",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classify(resp.StatusCode, errorMessage(respBody))
	}

	var result SubmitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = errorMessage(respBody)
		}
		return nil, classify(resp.StatusCode, msg)
	}
	return &result, nil
}

// FetchCatalog downloads and indexes the service catalog.
func (c *Client) FetchCatalog(ctx context.Context) (*catalog.Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+CatalogPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(b)}
	}
	return catalog.DecodeRemote(resp.Body)
}

// Ping reports whether the API host answers at all. Any HTTP response,
// including an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// errorMessage extracts a human message from an error body.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
