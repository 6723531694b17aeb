package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/altura-labs/secgate/pkg/config"
	handlers "github.com/altura-labs/secgate/pkg/handlers/http"
	"github.com/altura-labs/secgate/pkg/ratelimit"
	"github.com/altura-labs/secgate/pkg/safeerr"
	"github.com/altura-labs/secgate/pkg/server"
	"github.com/altura-labs/secgate/pkg/server/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, limits map[string]ratelimit.Config) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	table, err := ratelimit.NewTable(limits, logger)
	require.NoError(t, err)
	service := ratelimit.NewService(ratelimit.NewMemoryStore(nil), table, logger, nil)

	srv := server.NewLimiterServer(server.LimiterServerDI{
		MiddlewareTransport: middleware.NewTransport(
			middleware.NewSecurityHeadersMiddleware(),
			middleware.NewMetricsMiddleware(),
		),
		CheckHandler:  handlers.NewRateLimitCheckHandler(logger, service),
		HealthHandler: handlers.NewHealthHandler(),
		Config:        &config.Config{},
		Logger:        logger,
		Translator:    safeerr.NewTranslator(logger, true, nil),
	})
	return srv.App()
}

func checkRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/ratelimit/check", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestCheckEndpoint_Allowed(t *testing.T) {
	app := newTestApp(t, map[string]ratelimit.Config{
		"api-call":                 {Requests: 10, WindowMs: 60_000},
		ratelimit.DefaultOperation: {Requests: 5, WindowMs: 60_000},
	})

	resp, err := app.Test(checkRequest(t, map[string]interface{}{
		"identifier": "user:42",
		"operation":  "api-call",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60000", resp.Header.Get("X-RateLimit-Window"))
	assert.Equal(t, "0", resp.Header.Get("Retry-After"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, float64(9), body["remaining"])
	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(60_000), body["windowMs"])
}

func TestCheckEndpoint_RateLimited(t *testing.T) {
	app := newTestApp(t, map[string]ratelimit.Config{
		"login-attempt":            {Requests: 5, WindowMs: 300_000},
		ratelimit.DefaultOperation: {Requests: 100, WindowMs: 60_000},
	})

	payload := map[string]interface{}{
		"identifier": "user:42",
		"operation":  "login-attempt",
	}

	for i := 0; i < 5; i++ {
		resp, err := app.Test(checkRequest(t, payload))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, "attempt %d", i+1)
		resp.Body.Close()
	}

	resp, err := app.Test(checkRequest(t, payload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, float64(0), body["remaining"])
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestCheckEndpoint_ValidationFailure(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing operation", body: map[string]interface{}{"identifier": "user:42"}},
		{name: "blank operation", body: map[string]interface{}{"operation": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(checkRequest(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, "Validation failed", body["error"])
			assert.NotEmpty(t, body["details"])
		})
	}
}

func TestCheckEndpoint_MalformedJSON(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/ratelimit/check", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckEndpoint_MethodNotAllowed(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/ratelimit/check", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Method not allowed", body["error"])
}

func TestCheckEndpoint_SecurityHeaders(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(checkRequest(t, map[string]interface{}{"operation": "api-call"}))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestCheckEndpoint_AnonymousCallersKeyedByIP(t *testing.T) {
	app := newTestApp(t, map[string]ratelimit.Config{
		ratelimit.DefaultOperation: {Requests: 1, WindowMs: 60_000},
	})

	build := func(ip string) *http.Request {
		req := checkRequest(t, map[string]interface{}{"operation": "api-call"})
		req.Header.Set("X-Forwarded-For", ip)
		return req
	}

	resp, err := app.Test(build("203.0.113.9"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = app.Test(build("203.0.113.9"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()

	// A different origin gets its own window.
	resp, err = app.Test(build("198.51.100.7"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}
