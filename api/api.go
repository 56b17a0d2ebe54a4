package api

import (
	"errors"
	"expvar"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/storage"
)

// Server is the transcript API server.
type Server struct {
	config Config
	driver storage.Driver
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected so it can be shared with the proxy's recorder when
// both run in one process.
func NewServer(config Config, driver storage.Driver, logger *zap.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("api server requires a storage driver")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())

	app.Get("/ping", s.handlePing)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	v1 := app.Group("/v1")
	v1.Get("/stats", s.handleStats)
	v1.Get("/nodes/:hash", s.handleGetNode)
	v1.Get("/histories", s.handleListHistories)
	v1.Get("/histories/:hash", s.handleGetHistory)
	v1.Get("/threads/:id", s.handleGetThread)
	v1.Get("/trees/:hash", s.handleGetTree)

	s.app = app
	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server on an existing listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	switch {
	case storage.IsNotFound(err):
		status = fiber.StatusNotFound
		message = "node not found"
	case errors.As(err, &fe):
		status = fe.Code
		message = fe.Message
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("api request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(llm.ErrorResponse{Error: message})
}
