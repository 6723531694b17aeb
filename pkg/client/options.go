package client

import (
	"time"

	"github.com/altura-labs/secgate/pkg/common"
	"github.com/altura-labs/secgate/pkg/sanitize"
)

// Options is the construction-time configuration of a Client. Every security
// stage is on by default; a zero Options via DefaultOptions is a fully armed
// pipeline.
type Options struct {
	// Timeout bounds each dispatch attempt, not the whole call sequence.
	Timeout time.Duration
	// Retries is the maximum number of dispatch attempts.
	Retries int
	// ValidateResponse enables response content checks.
	ValidateResponse bool
	// SanitizeInput enables request body sanitization.
	SanitizeInput bool
	// CSRFProtection attaches and requires CSRF headers.
	CSRFProtection bool
	// RateLimitCheck enables the pre-flight limiter call.
	RateLimitCheck bool
	// SanitizeContext is the context applied to request bodies.
	SanitizeContext sanitize.Context
}

func DefaultOptions() Options {
	return Options{
		Timeout:          common.DefaultRequestTimeout,
		Retries:          common.DefaultRetries,
		ValidateResponse: true,
		SanitizeInput:    true,
		CSRFProtection:   true,
		RateLimitCheck:   true,
		SanitizeContext:  sanitize.FormInput,
	}
}

// RequestOption carries per-call overrides. Individual stages can be skipped
// without touching the client-wide configuration.
type RequestOption struct {
	SkipSanitization bool
	SkipCSRF         bool
	SkipRateLimit    bool
	// RateLimitOperation names the policy bucket; the verb default is used
	// when empty.
	RateLimitOperation string
	// SanitizeContext overrides the client-wide body context.
	SanitizeContext sanitize.Context
}
