package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/altura-labs/secgate/pkg/common"
	"github.com/altura-labs/secgate/pkg/infra/httpx"
	"github.com/altura-labs/secgate/pkg/ratelimit"
)

// RateLimitChecker is the pre-flight gate consulted before dispatch.
type RateLimitChecker interface {
	Check(ctx context.Context, identifier, operation string) (*ratelimit.Result, error)
}

// HTTPLimiterClient talks to the rate limiter service over its wire contract.
// The call is wrapped in a circuit breaker so a dead limiter short-circuits
// quickly; the gateway treats any error here as fail-open.
type HTTPLimiterClient struct {
	endpoint   string
	httpClient *http.Client
	breaker    httpx.CircuitBreaker
}

const limiterCheckTimeout = 5 * time.Second

func NewHTTPLimiterClient(endpoint string, httpClient *http.Client) *HTTPLimiterClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPLimiterClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		breaker:    httpx.NewCircuitBreaker("rate-limiter", 30*time.Second, 3),
	}
}

func (c *HTTPLimiterClient) Check(ctx context.Context, identifier, operation string) (*ratelimit.Result, error) {
	value, err := c.breaker.Execute(func() (interface{}, error) {
		return c.check(ctx, identifier, operation)
	})
	if err != nil {
		return nil, err
	}
	result, ok := value.(*ratelimit.Result)
	if !ok {
		return nil, fmt.Errorf("unexpected limiter response type")
	}
	return result, nil
}

func (c *HTTPLimiterClient) check(ctx context.Context, identifier, operation string) (*ratelimit.Result, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"operation":  operation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode limiter request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, limiterCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build limiter request: %w", err)
	}
	req.Header.Set("Content-Type", common.ContentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("limiter check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 200 and 429 both carry the result body; anything else is a limiter
	// malfunction and becomes a fail-open signal upstream.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusTooManyRequests {
		return nil, fmt.Errorf("limiter returned unexpected status %d", resp.StatusCode)
	}

	var result ratelimit.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode limiter response: %w", err)
	}
	return &result, nil
}
