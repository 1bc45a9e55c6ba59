package controlplane

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deftio/pocketdock/internal/engine"
	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/deftio/pocketdock/internal/sandbox"
)

type createRequest struct {
	Image            string            `json:"image"`
	Profile          string            `json:"profile"`
	Name             string            `json:"name"`
	Env              map[string]string `json:"env"`
	Binds            []string          `json:"binds"`
	EnableNetworking bool              `json:"enable_networking"`
	MemoryBytes      int64             `json:"memory_bytes"`
	NanoCPUs         int64             `json:"nano_cpus"`
	Persist          bool              `json:"persist"`
}

func (s *Server) handleList(c echo.Context) error {
	items, err := s.mgr.List(c.Request().Context(), c.QueryParam("project"))
	if err != nil {
		return statusFromErr(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleCreate(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Image == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "image is required")
	}

	h, err := s.mgr.Create(c.Request().Context(), sandbox.CreateSpec{
		Image:            req.Image,
		Env:              req.Env,
		Binds:            req.Binds,
		EnableNetworking: req.EnableNetworking,
		MemoryBytes:      req.MemoryBytes,
		NanoCPUs:         req.NanoCPUs,
		Name:             req.Name,
		Profile:          req.Profile,
		Persist:          req.Persist,
	})
	if err != nil {
		return statusFromErr(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": h.ID, "name": h.Name})
}

func (s *Server) handleInfo(c echo.Context) error {
	h, err := s.mgr.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return statusFromErr(err)
	}
	info, err := h.Info(c.Request().Context())
	if err != nil {
		return statusFromErr(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleDestroy(c echo.Context) error {
	force := c.QueryParam("force") == "true"
	if err := s.mgr.Destroy(c.Request().Context(), c.Param("id"), force); err != nil {
		return statusFromErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type execRequest struct {
	Cmd       []string          `json:"cmd"`
	Lang      string            `json:"lang"`
	Env       map[string]string `json:"env"`
	TimeoutMs int64             `json:"timeout_ms"`
	MaxOutput int               `json:"max_output"`
}

func (s *Server) handleExec(c echo.Context) error {
	var req execRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h, err := s.mgr.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return statusFromErr(err)
	}

	opts := sandbox.RunOptions{
		Cmd:       req.Cmd,
		Lang:      req.Lang,
		Env:       req.Env,
		MaxOutput: req.MaxOutput,
	}
	if req.TimeoutMs > 0 {
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	res, err := h.Run(c.Request().Context(), opts)
	if err != nil {
		return statusFromErr(err)
	}
	return c.JSON(http.StatusOK, res)
}

// statusFromErr maps the library's error taxonomy onto HTTP status
// codes the same way internal/cli maps it onto process exit codes.
func statusFromErr(err error) error {
	var engineErr *transport.EngineUnavailableError
	var imageErr *engine.ImageNotFoundError
	var notRunningErr *engine.ContainerNotRunningError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &engineErr):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrContainerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &imageErr):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrContainerGone):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.As(err, &notRunningErr):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
