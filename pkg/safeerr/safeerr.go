package safeerr

import (
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Code is the closed taxonomy of error codes that may cross a production
// boundary.
type Code string

const (
	AuthError       Code = "AUTH_ERROR"
	PermissionError Code = "PERMISSION_ERROR"
	NetworkError    Code = "NETWORK_ERROR"
	RateLimitError  Code = "RATE_LIMIT_ERROR"
	ValidationError Code = "VALIDATION_ERROR"
	InternalError   Code = "INTERNAL_ERROR"
	GenericError    Code = "GENERIC_ERROR"
	UnknownError    Code = "UNKNOWN_ERROR"
)

// SafeError is the only error shape surfaced to callers. Internal and Stack
// are populated outside production only.
type SafeError struct {
	Message   string    `json:"message"`
	Code      Code      `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
	Internal  string    `json:"internal,omitempty"`
	Stack     string    `json:"stack,omitempty"`
}

func (e *SafeError) Error() string {
	return e.Message
}

type rule struct {
	substrings []string
	code       Code
	message    string
}

// translationRules is ordered: the first matching rule wins.
var translationRules = []rule{
	{[]string{"authentication", "unauthorized"}, AuthError, "Authentication failed. Please log in again."},
	{[]string{"permission", "forbidden"}, PermissionError, "You do not have permission to perform this action."},
	{[]string{"network", "fetch"}, NetworkError, "A network error occurred. Please try again."},
	{[]string{"rate limit", "too many requests"}, RateLimitError, "Too many requests. Please slow down and try again."},
	{[]string{"validation", "invalid"}, ValidationError, "The submitted data is invalid."},
}

// Translator converts arbitrary internal failures into SafeErrors. In
// production only taxonomy fields survive; otherwise the original message and
// a stack are carried for local debugging.
type Translator struct {
	logger       *logrus.Logger
	production   bool
	timeProvider func() time.Time
	uuidProvider func() uuid.UUID
}

type TranslatorOpts struct {
	TimeProvider func() time.Time
	UuidProvider func() uuid.UUID
}

func NewTranslator(logger *logrus.Logger, production bool, opts *TranslatorOpts) *Translator {
	timeProvider := time.Now
	uuidProvider := uuid.New
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.UuidProvider != nil {
		uuidProvider = opts.UuidProvider
	}
	return &Translator{
		logger:       logger,
		production:   production,
		timeProvider: timeProvider,
		uuidProvider: uuidProvider,
	}
}

// Sanitize never fails: any input, including nil, yields a SafeError.
func (t *Translator) Sanitize(err error) *SafeError {
	safe := &SafeError{
		Timestamp: t.timeProvider(),
		RequestID: t.uuidProvider().String(),
	}

	if err == nil {
		safe.Code = UnknownError
		safe.Message = "An unexpected error occurred."
		return safe
	}

	original := err.Error()
	if strings.TrimSpace(original) == "" {
		safe.Code = GenericError
		safe.Message = "Something went wrong."
		return safe
	}

	safe.Code = classify(original)
	if t.production {
		safe.Message = safeMessage(safe.Code)
		return safe
	}

	// Full fidelity outside production.
	safe.Message = original
	safe.Internal = original
	safe.Stack = string(debug.Stack())
	return safe
}

func classify(message string) Code {
	lowered := strings.ToLower(message)
	for _, r := range translationRules {
		for _, substr := range r.substrings {
			if strings.Contains(lowered, substr) {
				return r.code
			}
		}
	}
	return InternalError
}

func safeMessage(code Code) string {
	for _, r := range translationRules {
		if r.code == code {
			return r.message
		}
	}
	return "An internal error occurred. Please try again later."
}

// Protect runs operation and routes any failure through the translator: the
// failure is always logged in full, but in production only the translated
// SafeError is returned to the caller.
func (t *Translator) Protect(operation func() error) error {
	err := operation()
	if err == nil {
		return nil
	}
	t.LogSecurely(err, nil)
	if t.production {
		return t.Sanitize(err)
	}
	return err
}
