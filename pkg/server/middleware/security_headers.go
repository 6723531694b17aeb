package middleware

import (
	"github.com/altura-labs/secgate/pkg/common"
	"github.com/gofiber/fiber/v2"
)

// SecurityHeadersMiddleware attaches anti-sniffing and anti-framing headers
// to every limiter service response.
type SecurityHeadersMiddleware struct{}

func NewSecurityHeadersMiddleware() *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{}
}

func (m *SecurityHeadersMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(common.HeaderContentTypeOptions, "nosniff")
		c.Set(common.HeaderFrameOptions, "DENY")
		return c.Next()
	}
}
