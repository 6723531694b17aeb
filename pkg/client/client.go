package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/altura-labs/secgate/pkg/common"
	"github.com/altura-labs/secgate/pkg/csrf"
	"github.com/altura-labs/secgate/pkg/safeerr"
	"github.com/altura-labs/secgate/pkg/sanitize"
	"github.com/sirupsen/logrus"
)

// defaultOperation is the rate-limit bucket used by the convenience verbs
// when the caller names none.
const defaultOperation = "api-call"

// Client is the secure request pipeline: every outbound call is sanitized,
// admission-checked against the rate limiter, CSRF-stamped, dispatched with a
// bounded deadline and retry budget, and response-validated. Every failure
// leaving the pipeline has passed through the error translator.
type Client struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
	limiter    RateLimitChecker
	csrf       *csrf.Manager
	translator *safeerr.Translator
	logger     *logrus.Logger

	sleep        func(time.Duration)
	timeProvider func() time.Time
}

type Deps struct {
	HTTPClient *http.Client
	Limiter    RateLimitChecker
	CSRF       *csrf.Manager
	Translator *safeerr.Translator
	Logger     *logrus.Logger

	// Sleep overrides the inter-retry wait, used by tests.
	Sleep func(time.Duration)
	// TimeProvider overrides the clock, used by tests.
	TimeProvider func() time.Time
}

func New(baseURL string, opts *Options, deps Deps) (*Client, error) {
	if deps.Translator == nil {
		return nil, fmt.Errorf("client requires an error translator")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("client requires a logger")
	}

	options := DefaultOptions()
	if opts != nil {
		options = *opts
	}
	if options.Timeout <= 0 {
		options.Timeout = common.DefaultRequestTimeout
	}
	if options.Retries <= 0 {
		options.Retries = common.DefaultRetries
	}
	if options.SanitizeContext == "" {
		options.SanitizeContext = sanitize.FormInput
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	timeProvider := deps.TimeProvider
	if timeProvider == nil {
		timeProvider = time.Now
	}
	if options.CSRFProtection && deps.CSRF == nil {
		return nil, fmt.Errorf("csrf protection enabled but no csrf manager provided")
	}
	if options.RateLimitCheck && deps.Limiter == nil {
		return nil, fmt.Errorf("rate limit check enabled but no limiter client provided")
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		opts:         options,
		httpClient:   httpClient,
		limiter:      deps.Limiter,
		csrf:         deps.CSRF,
		translator:   deps.Translator,
		logger:       deps.Logger,
		sleep:        sleep,
		timeProvider: timeProvider,
	}, nil
}

// Response is the parsed outcome of a successful call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, opt *RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opt)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, opt *RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opt)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}, opt *RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opt)
}

func (c *Client) Patch(ctx context.Context, path string, body interface{}, opt *RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, path, body, opt)
}

func (c *Client) Delete(ctx context.Context, path string, opt *RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opt)
}

// Do runs the full pipeline for one call. The per-attempt deadline bounds a
// single dispatch; an expired attempt counts against the retry budget rather
// than aborting the sequence.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opt *RequestOption) (*Response, error) {
	if opt == nil {
		opt = &RequestOption{}
	}

	target, err := c.resolveURL(path)
	if err != nil {
		return nil, c.fail(err, logrus.Fields{"method": method, "path": path})
	}

	if c.opts.RateLimitCheck && !opt.SkipRateLimit {
		if err := c.preflight(ctx, opt); err != nil {
			return nil, c.fail(err, logrus.Fields{"method": method, "url": target})
		}
	}

	payload, err := c.preparePayload(body, opt)
	if err != nil {
		return nil, c.fail(err, logrus.Fields{"method": method, "url": target})
	}

	headers, cookie, err := c.buildHeaders(opt)
	if err != nil {
		return nil, c.fail(err, logrus.Fields{"method": method, "url": target})
	}

	resp, err := c.dispatchWithRetry(ctx, method, target, payload, headers, cookie)
	if err != nil {
		return nil, c.fail(err, logrus.Fields{"method": method, "url": target})
	}

	if c.opts.ValidateResponse {
		if err := c.validateResponse(resp); err != nil {
			return nil, c.fail(err, logrus.Fields{"method": method, "url": target})
		}
	}
	return resp, nil
}

// fail logs the original failure in full and returns what the translator
// allows across the boundary.
func (c *Client) fail(err error, fields logrus.Fields) error {
	c.translator.LogSecurely(err, fields)
	return c.translator.Sanitize(err)
}

func (c *Client) resolveURL(path string) (string, error) {
	raw := path
	if !strings.Contains(path, "://") {
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	cleaned := sanitize.URL(raw)
	if cleaned == "" {
		return "", fmt.Errorf("invalid request url: %q", raw)
	}
	return cleaned, nil
}

func (c *Client) preflight(ctx context.Context, opt *RequestOption) error {
	operation := opt.RateLimitOperation
	if operation == "" {
		operation = defaultOperation
	}

	result, err := c.limiter.Check(ctx, "", operation)
	if err != nil {
		// The limiter must never become a hard dependency: only an explicit
		// "not allowed" blocks the request.
		c.logger.WithError(err).WithField("operation", operation).
			Warn("rate limiter unreachable, failing open")
		return nil
	}
	if !result.Allowed {
		return fmt.Errorf("rate limit exceeded for operation %q, retry at %d", operation, result.ResetTime)
	}
	return nil
}

func (c *Client) preparePayload(body interface{}, opt *RequestOption) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	if c.opts.SanitizeInput && !opt.SkipSanitization {
		sanitizeCtx := c.opts.SanitizeContext
		if opt.SanitizeContext != "" {
			sanitizeCtx = opt.SanitizeContext
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		var decoded interface{}
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		body = sanitize.Object(decoded, sanitizeCtx)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return payload, nil
}

func (c *Client) buildHeaders(opt *RequestOption) (map[string]string, *http.Cookie, error) {
	headers := map[string]string{
		"Content-Type":                  common.ContentTypeJSON,
		common.HeaderContentTypeOptions: "nosniff",
		common.HeaderFrameOptions:       "DENY",
	}

	if !c.opts.CSRFProtection || opt.SkipCSRF {
		return headers, nil, nil
	}

	if _, err := c.csrf.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("csrf token unavailable: %w", err)
	}
	if _, err := c.csrf.RequireToken(); err != nil {
		return nil, nil, err
	}
	c.csrf.AddHeaders(headers)

	cookie, err := c.csrf.Cookie()
	if err != nil {
		return nil, nil, err
	}
	return headers, cookie, nil
}

func (c *Client) dispatchWithRetry(
	ctx context.Context,
	method, target string,
	payload []byte,
	headers map[string]string,
	cookie *http.Cookie,
) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		resp, err := c.dispatch(ctx, method, target, payload, headers, cookie)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt < c.opts.Retries {
			delay := backoffDelay(attempt)
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
			}).Warn("request attempt failed, backing off")
			c.sleep(delay)
		}
	}

	return nil, fmt.Errorf("network request failed after %d attempts: %w", c.opts.Retries, lastErr)
}

// backoffDelay is 2^attempt seconds.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (c *Client) dispatch(
	ctx context.Context,
	method, target string,
	payload []byte,
	headers map[string]string,
	cookie *http.Cookie,
) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var bodyReader *bytes.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network dispatch failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := readBody(httpResp)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("request returned status %d", httpResp.StatusCode)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("network read failed: %w", err)
	}
	return buf.Bytes(), nil
}
