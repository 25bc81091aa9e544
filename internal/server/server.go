package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agura-market/agura_market/internal/middleware"
	"github.com/agura-market/agura_market/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app  *fiber.App
	addr string
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(d routes.Deps) (*Server, error) {
	// Gateway calls are bounded by the provider timeout; leave room for the response.
	writeTimeout := d.Cfg.Paypack.Timeout + 10*time.Second
	app := fiber.New(fiber.Config{
		AppName:               d.Cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          writeTimeout,
		ErrorHandler:          middleware.ErrorHandler(d.Logger),
		DisableStartupMessage: !d.Cfg.IsDev(),
	})

	if err := routes.Setup(app, d); err != nil {
		return nil, err
	}

	return &Server{app: app, addr: d.Cfg.Address()}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
