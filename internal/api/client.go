// Package api provides the REST client for the article backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blog/internal/config"
	"blog/internal/logger"
	"blog/internal/models"
	"blog/pkg/utils"

	"github.com/google/uuid"
)

// ArticlesPath is the collection resource on the backend.
const ArticlesPath = "/articles"

// maxResponseBytes limits how much of a response body is read.
const maxResponseBytes = 10 * 1024 * 1024

// API errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrDecodeResponse   = errors.New("failed to decode response")
	ErrNotFound         = errors.New("article not found")
)

// Client defines the operations the article backend supports.
type Client interface {
	List(ctx context.Context) ([]models.Row, error)
	Get(ctx context.Context, id int64) (models.Row, error)
	Create(ctx context.Context, payload models.Row) (*Response, error)
	Update(ctx context.Context, id int64, payload models.Row) (*Response, error)
	Delete(ctx context.Context, id int64) (*Response, error)
	DeleteAll(ctx context.Context) (*Response, error)
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// Response is what the backend answered to a write.
type Response struct {
	RequestID  string
	Body       string
	StatusCode int
}

// HTTPClient talks to the backend over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	headers    *utils.HTTPHelper
	logger     *logger.Logger
	baseURL    string
	authToken  string
	encoding   string
	retry      config.RetryPolicy
}

// NewHTTPClient creates a client for the backend described by cfg.
func NewHTTPClient(cfg config.APIConfig, retry config.RetryPolicy, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		headers:   utils.NewHTTPHelper(cfg.UserAgent),
		logger:    log,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		encoding:  cfg.PayloadEncoding,
		retry:     retry,
	}
}

// SetHTTPClient replaces the underlying HTTP client (useful for testing).
func (c *HTTPClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// List fetches every article row. An empty store yields an empty slice.
func (c *HTTPClient) List(ctx context.Context) ([]models.Row, error) {
	resp, err := c.do(ctx, http.MethodGet, ArticlesPath, nil)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(resp.Body)
	if body == "" || body == "null" {
		return []models.Row{}, nil
	}

	var rows []models.Row
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	if rows == nil {
		rows = []models.Row{}
	}

	return rows, nil
}

// Get fetches one article row. The backend may answer with the row itself
// or with a one-element array.
func (c *HTTPClient) Get(ctx context.Context, id int64) (models.Row, error) {
	resp, err := c.do(ctx, http.MethodGet, articlePath(id), nil)
	if err != nil {
		if errors.Is(err, ErrUnexpectedStatus) && resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}

		return nil, err
	}

	body := strings.TrimSpace(resp.Body)

	if strings.HasPrefix(body, "[") {
		var rows []models.Row
		if err := json.Unmarshal([]byte(body), &rows); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
		}

		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}

		return rows[0], nil
	}

	var row models.Row
	if err := json.Unmarshal([]byte(body), &row); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}

	if row == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return row, nil
}

// Create posts a new article. It is never retried.
func (c *HTTPClient) Create(ctx context.Context, payload models.Row) (*Response, error) {
	return c.do(ctx, http.MethodPost, ArticlesPath, payload)
}

// Update replaces the article with the given id.
func (c *HTTPClient) Update(ctx context.Context, id int64, payload models.Row) (*Response, error) {
	return c.do(ctx, http.MethodPut, articlePath(id), payload)
}

// Delete removes the article with the given id.
func (c *HTTPClient) Delete(ctx context.Context, id int64) (*Response, error) {
	return c.do(ctx, http.MethodDelete, articlePath(id), nil)
}

// DeleteAll removes every article.
func (c *HTTPClient) DeleteAll(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodDelete, ArticlesPath, nil)
}

// do sends one request, retrying idempotent methods per the retry policy.
// On a non-2xx answer the Response is returned alongside the error.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload models.Row) (*Response, error) {
	attempts := 1
	if isIdempotent(method) {
		attempts = max(c.retry.MaxAttempts, 1)
	}

	var (
		lastErr  error
		lastResp *Response
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := utils.Sleep(ctx, c.retry.GetRetryDelay(attempt)); err != nil {
			return nil, err
		}

		resp, retryable, err := c.send(ctx, method, path, payload)
		if err == nil {
			return resp, nil
		}

		lastErr, lastResp = err, resp

		if ctx.Err() != nil {
			return lastResp, ctx.Err()
		}

		if !retryable {
			break
		}

		if attempt < attempts {
			c.logger.Warn("Retrying request",
				"method", method, "path", path, "attempt", attempt, "max_attempts", attempts, "error", err)
		}
	}

	return lastResp, lastErr
}

func (c *HTTPClient) send(ctx context.Context, method, path string, payload models.Row) (*Response, bool, error) {
	requestID := uuid.NewString()

	body, contentType, err := c.encode(payload)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	custom := map[string]string{"X-Request-ID": requestID}
	if contentType != "" {
		custom["Content-Type"] = contentType
	}
	if c.authToken != "" {
		custom["Authorization"] = "Bearer " + c.authToken
	}
	req.Header = c.headers.BuildHeaders(custom)

	start := time.Now()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	resp := &Response{
		RequestID:  requestID,
		Body:       string(data),
		StatusCode: httpResp.StatusCode,
	}

	c.logger.Debug("Backend request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", httpResp.StatusCode,
		"duration", time.Since(start))

	if !utils.IsSuccess(httpResp.StatusCode) {
		return resp, isRetryableStatus(httpResp.StatusCode),
			fmt.Errorf("%w: %s %s: %d: %s", ErrUnexpectedStatus, method, path, httpResp.StatusCode, strings.TrimSpace(resp.Body))
	}

	return resp, false, nil
}

// encode serialises a payload as JSON or as a urlencoded form.
func (c *HTTPClient) encode(payload models.Row) (io.Reader, string, error) {
	if payload == nil {
		return http.NoBody, "", nil
	}

	if c.encoding == config.EncodingForm {
		form := url.Values{}
		for key, val := range payload {
			form.Set(key, fmt.Sprint(val))
		}

		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	return bytes.NewReader(data), "application/json", nil
}

func articlePath(id int64) string {
	return ArticlesPath + "/" + strconv.FormatInt(id, 10)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	}

	return false
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout,  // 504
		http.StatusTooManyRequests, // 429
		http.StatusRequestTimeout:  // 408
		return true
	}

	return false
}
