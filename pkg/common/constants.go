package common

import "time"

const (
	// Rate limit response headers, epoch seconds for the reset value.
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRateLimitWindow    = "X-RateLimit-Window"
	HeaderRetryAfter         = "Retry-After"

	// Security headers attached to every outbound gateway request.
	HeaderContentTypeOptions = "X-Content-Type-Options"
	HeaderFrameOptions       = "X-Frame-Options"

	ContentTypeJSON = "application/json"

	DefaultRequestTimeout = 30 * time.Second
	DefaultRetries        = 3
)
