package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/altura-labs/secgate/pkg/config"
	"github.com/altura-labs/secgate/pkg/infra/prometheus"
	"github.com/altura-labs/secgate/pkg/safeerr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server defines the common behavior of runnable servers.
type Server interface {
	Run() error
	Shutdown() error
}

type BaseServer struct {
	Config *config.Config
	Logger *logrus.Logger
	Router *fiber.App
}

func NewBaseServer(cfg *config.Config, logger *logrus.Logger, translator *safeerr.Translator) *BaseServer {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		BodyLimit:             1 * 1024 * 1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          newErrorHandler(translator),
	})

	r.Server().NoDefaultServerHeader = true
	r.Server().NoDefaultContentType = true

	r.Use(recover.New())

	return &BaseServer{
		Config: cfg,
		Logger: logger,
		Router: r,
	}
}

// newErrorHandler keeps the failure envelope JSON and production-safe: raw
// internal messages never reach the wire, the translator decides what does.
func newErrorHandler(translator *safeerr.Translator) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}
		safe := translator.Sanitize(err)
		return c.Status(code).JSON(fiber.Map{
			"error":     "Internal server error",
			"message":   safe.Message,
			"code":      safe.Code,
			"requestId": safe.RequestID,
		})
	}
}

func (s *BaseServer) setupHealthCheck(handler fiber.Handler) {
	s.Router.Get("/health", handler)
}

func (s *BaseServer) setupMetricsEndpoint() {
	s.Router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(
		prometheus.Registry(),
		promhttp.HandlerOpts{},
	)))
}

func (s *BaseServer) Shutdown() error {
	return s.Router.ShutdownWithTimeout(10 * time.Second)
}

func (s *BaseServer) listenAddr() string {
	return fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
}
