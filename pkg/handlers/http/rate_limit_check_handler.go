package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/altura-labs/secgate/pkg/common"
	"github.com/altura-labs/secgate/pkg/ratelimit"
	"github.com/altura-labs/secgate/pkg/sanitize"
	"github.com/gofiber/fiber/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

type RateLimitCheckHandler struct {
	logger  *logrus.Logger
	service *ratelimit.Service
}

func NewRateLimitCheckHandler(logger *logrus.Logger, service *ratelimit.Service) *RateLimitCheckHandler {
	return &RateLimitCheckHandler{logger: logger, service: service}
}

type checkRequest struct {
	Identifier string                 `json:"identifier"`
	Operation  string                 `json:"operation"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// checkMetadata is the recognized subset of the free-form metadata object.
// Unknown keys are ignored.
type checkMetadata struct {
	Source    string `mapstructure:"source"`
	UserAgent string `mapstructure:"user_agent"`
}

func (h *RateLimitCheckHandler) Handle(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": []string{"request body must be a JSON object"},
		})
	}

	if details := validateCheckRequest(&req); len(details) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": details,
		})
	}

	var meta checkMetadata
	if len(req.Metadata) > 0 {
		if err := mapstructure.Decode(req.Metadata, &meta); err != nil {
			h.logger.WithError(err).Debug("ignoring malformed check metadata")
		}
	}

	input := ratelimit.CheckInput{
		// Identifiers end up in store keys and log lines; clean them like any
		// other untrusted input.
		Identifier: sanitize.Sanitize(req.Identifier, sanitize.FormInput),
		Operation:  req.Operation,
		Bearer:     bearerFromHeader(c.Get(fiber.HeaderAuthorization)),
		Headers: map[string]string{
			"X-Forwarded-For":  c.Get("X-Forwarded-For"),
			"X-Real-IP":        c.Get("X-Real-IP"),
			"CF-Connecting-IP": c.Get("CF-Connecting-IP"),
		},
	}

	result, err := h.service.Check(c.Context(), input)
	if err != nil {
		h.logger.WithError(err).WithField("operation", req.Operation).
			Error("rate limit check failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal server error",
			"message": "Rate limit check could not be completed",
		})
	}

	if meta.Source != "" {
		h.logger.WithFields(logrus.Fields{
			"source":    sanitize.Sanitize(meta.Source, sanitize.PlainText),
			"operation": req.Operation,
		}).Debug("rate limit check metadata")
	}

	setRateLimitHeaders(c, result)

	if !result.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"allowed":   false,
			"remaining": 0,
			"resetTime": result.ResetTime,
			"limit":     result.Limit,
			"windowMs":  result.WindowMs,
			"error":     "Rate limit exceeded",
			"message":   "Too many requests, please try again later",
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func validateCheckRequest(req *checkRequest) []string {
	var details []string
	if strings.TrimSpace(req.Operation) == "" {
		details = append(details, "operation is required")
	} else if len(req.Operation) > 100 {
		details = append(details, "operation must be at most 100 characters")
	}
	if len(req.Identifier) > 250 {
		details = append(details, "identifier must be at most 250 characters")
	}
	return details
}

func bearerFromHeader(authorization string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(authorization, prefix) {
		return strings.TrimSpace(authorization[len(prefix):])
	}
	return ""
}

func setRateLimitHeaders(c *fiber.Ctx, result ratelimit.Result) {
	c.Set(common.HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	c.Set(common.HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	c.Set(common.HeaderRateLimitReset, strconv.FormatInt(result.ResetTime/1000, 10))
	c.Set(common.HeaderRateLimitWindow, strconv.FormatInt(result.WindowMs, 10))

	retryAfter := int64(0)
	if !result.Allowed {
		untilReset := result.ResetTime - time.Now().UnixMilli()
		retryAfter = (untilReset + 999) / 1000
		if retryAfter < 1 {
			retryAfter = 1
		}
	}
	c.Set(common.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
}
