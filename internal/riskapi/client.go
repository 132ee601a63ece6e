// internal/riskapi/client.go
package riskapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"retention-engine/internal/common/errors"
	httpx "retention-engine/internal/common/http"
	"retention-engine/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const serviceName = "risk-api"

// Client is the HTTP implementation of Service. Detail and suggestion
// lookups are cached in Redis when a cache client and TTL are supplied;
// simulate calls are never cached.
type Client struct {
	baseURL  string
	apiKey   string
	http     *httpx.Client
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

type ClientOption func(*Client)

// WithCache enables Redis caching of detail and suggestion lookups.
func WithCache(cache *redis.Client, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithAPIKey sets the bearer token sent on every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

func NewClient(baseURL string, timeout time.Duration, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    httpx.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"service": serviceName}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetEmployeeDetail(ctx context.Context, employeeID string) (*EmployeeDetail, error) {
	cacheKey := "riskapi:detail:" + employeeID

	var detail EmployeeDetail
	if c.cacheGet(ctx, cacheKey, &detail) {
		return &detail, nil
	}

	url := fmt.Sprintf("%s/employees/%s/detail", c.baseURL, employeeID)
	if err := c.getJSON(ctx, url, &detail); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, cacheKey, &detail)
	return &detail, nil
}

func (c *Client) GetTreatmentSuggestions(ctx context.Context, employeeID string) ([]TreatmentSuggestion, error) {
	cacheKey := "riskapi:treatments:" + employeeID

	var suggestions []TreatmentSuggestion
	if c.cacheGet(ctx, cacheKey, &suggestions) {
		return suggestions, nil
	}

	url := fmt.Sprintf("%s/employees/%s/treatments", c.baseURL, employeeID)
	if err := c.getJSON(ctx, url, &suggestions); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, cacheKey, suggestions)
	return suggestions, nil
}

func (c *Client) SimulateTreatment(ctx context.Context, employeeID string, treatmentID int) (*TreatmentResult, error) {
	url := fmt.Sprintf("%s/employees/%s/treatments/%d/simulate", c.baseURL, employeeID, treatmentID)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, errors.NewUpstreamError(serviceName, err)
	}
	c.setHeaders(req)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var result TreatmentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewUpstreamError(serviceName, fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.NewUpstreamError(serviceName, err)
	}
	c.setHeaders(req)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewUpstreamError(serviceName, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// transportError maps network failures onto the error taxonomy.
func (c *Client) transportError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewUpstreamTimeoutError(serviceName)
	}
	var netErr interface{ Timeout() bool }
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewUpstreamTimeoutError(serviceName)
	}
	return errors.NewUpstreamError(serviceName, err)
}

// statusError maps non-200 responses onto the error taxonomy.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	details := string(body)
	if details == "" {
		details = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFoundError("employee or treatment", details)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return errors.NewValidationError(details)
	default:
		return errors.NewUpstreamError(serviceName, fmt.Errorf("status %d: %s", resp.StatusCode, details))
	}
}

func (c *Client) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if c.cache == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.cache.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) cacheSet(ctx context.Context, key string, v interface{}) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
