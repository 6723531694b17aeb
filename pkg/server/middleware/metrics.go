package middleware

import (
	"strconv"

	"github.com/altura-labs/secgate/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
)

// MetricsMiddleware counts every request handled by the limiter service.
type MetricsMiddleware struct{}

func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{}
}

func (m *MetricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		prometheus.HTTPRequestsTotal.WithLabelValues(
			c.Method(),
			strconv.Itoa(c.Response().StatusCode()),
		).Inc()
		return err
	}
}
