package server

import (
	"github.com/altura-labs/secgate/pkg/config"
	handlers "github.com/altura-labs/secgate/pkg/handlers/http"
	"github.com/altura-labs/secgate/pkg/safeerr"
	"github.com/altura-labs/secgate/pkg/server/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type (
	LimiterServerDI struct {
		MiddlewareTransport *middleware.Transport
		CheckHandler        *handlers.RateLimitCheckHandler
		HealthHandler       *handlers.HealthHandler
		Config              *config.Config
		Logger              *logrus.Logger
		Translator          *safeerr.Translator
	}
	LimiterServer struct {
		*BaseServer
		middlewareTransport *middleware.Transport
		checkHandler        *handlers.RateLimitCheckHandler
		healthHandler       *handlers.HealthHandler
	}
)

func NewLimiterServer(di LimiterServerDI) *LimiterServer {
	return &LimiterServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger, di.Translator),
		middlewareTransport: di.MiddlewareTransport,
		checkHandler:        di.CheckHandler,
		healthHandler:       di.HealthHandler,
	}
}

func (s *LimiterServer) Run() error {
	s.setupRoutes()
	s.setupHealthCheck(s.healthHandler.Handle)
	s.setupMetricsEndpoint()

	addr := s.listenAddr()
	s.Logger.WithField("addr", addr).Info("starting rate limiter service")
	return s.Router.Listen(addr)
}

// App exposes the configured fiber app for in-process tests.
func (s *LimiterServer) App() *fiber.App {
	s.setupRoutes()
	s.setupHealthCheck(s.healthHandler.Handle)
	s.setupMetricsEndpoint()
	return s.Router
}

func (s *LimiterServer) setupRoutes() {
	if s.middlewareTransport != nil {
		for _, handler := range s.middlewareTransport.GetMiddlewares() {
			s.Router.Use(handler)
		}
	}

	v1 := s.Router.Group("/v1/ratelimit")
	{
		v1.Post("/check", s.checkHandler.Handle)
		// Anything but POST on the check route is answered with a JSON 405.
		v1.All("/check", methodNotAllowed)
	}
}

func methodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
		"error":   "Method not allowed",
		"message": "Use POST for rate limit checks",
	})
}
