// Package controlplane is the optional local HTTP+WebSocket front end
// that exposes internal/sandbox.Manager to remote callers (dashboards,
// browser terminals) the same way the CLI does for a terminal.
package controlplane

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/deftio/pocketdock/internal/sandbox"
)

// Server wraps an echo instance bound to one sandbox.Manager.
type Server struct {
	echo *echo.Echo
	mgr  *sandbox.Manager
}

// New builds a Server with its routes registered but not yet serving.
func New(mgr *sandbox.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, mgr: mgr}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/containers", s.handleList)
	s.echo.POST("/containers", s.handleCreate)
	s.echo.GET("/containers/:id", s.handleInfo)
	s.echo.DELETE("/containers/:id", s.handleDestroy)
	s.echo.POST("/containers/:id/exec", s.handleExec)
	s.echo.GET("/containers/:id/attach", s.handleAttach)
}

// Start blocks serving HTTP on addr until the listener fails or the
// server is shut down.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("controlplane listening")
	return s.echo.Start(addr)
}

// Shutdown gracefully drains connections within the given deadline.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
