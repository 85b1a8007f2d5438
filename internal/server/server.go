// Package server exposes the tracker over HTTP: a websocket event ingest and
// a small JSON API over the projection.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
	"github.com/verte-zerg/dungeonlog/internal/store"
	"github.com/verte-zerg/dungeonlog/internal/tracker"
)

const (
	maxMessageSize = 64 * 1024
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Logger *log.Logger
	// AccessLog enables echo's request logger.
	AccessLog bool
}

// Server serves the tracker. It subscribes to the tracker and keeps its own
// projection view for the read endpoints.
type Server struct {
	tracker  *tracker.Tracker
	repo     store.Repository
	view     *projection.View
	logger   *log.Logger
	upgrader websocket.Upgrader
	echo     *echo.Echo

	mu         sync.RWMutex
	closeTimer bool
}

// New creates a server for tr. repo may be nil, in which case /v1/save fails.
func New(tr *tracker.Tracker, repo store.Repository, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &Server{
		tracker: tr,
		repo:    repo,
		view:    projection.NewView(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Event sources are local tools, not browsers.
				return true
			},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	s.RegisterRoutes(e)
	s.echo = e

	tr.Subscribe(s)
	return s
}

// RegisterRoutes registers the API routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.GET("/ws", s.HandleWebSocket)

	v1 := e.Group("/v1")
	v1.GET("/runs", s.ListRuns)
	v1.GET("/stats", s.Stats)
	v1.DELETE("/runs/:hash", s.DeleteRun)
	v1.POST("/save", s.Save)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Publish implements tracker.Sink.
func (s *Server) Publish(u tracker.Update) {
	s.view.Apply(u.Changes)
	s.mu.Lock()
	s.closeTimer = u.CloseTimer
	s.mu.Unlock()
}

// View returns the server's projection view.
func (s *Server) View() *projection.View {
	return s.view
}

type runsResponse struct {
	Runs    []projection.Entry `json:"runs"`
	Version uint64             `json:"version"`
}

type statsResponse struct {
	Day        model.Stats `json:"day"`
	Total      model.Stats `json:"total"`
	Modes      string      `json:"modes,omitempty"`
	CloseTimer bool        `json:"close_timer"`
}

// Health reports liveness.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListRuns returns the visible runs, newest first.
func (s *Server) ListRuns(c echo.Context) error {
	return c.JSON(http.StatusOK, runsResponse{
		Runs:    s.view.Snapshot(),
		Version: s.view.Version(),
	})
}

// Stats returns day and total statistics under the active mode filter.
func (s *Server) Stats(c echo.Context) error {
	day, total := s.tracker.Stats()
	s.mu.RLock()
	closeTimer := s.closeTimer
	s.mu.RUnlock()
	return c.JSON(http.StatusOK, statsResponse{
		Day:        day,
		Total:      total,
		Modes:      s.tracker.ModeFilter().String(),
		CloseTimer: closeTimer,
	})
}

// DeleteRun removes one run by hash.
func (s *Server) DeleteRun(c echo.Context) error {
	hash := c.Param("hash")
	if hash == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "hash is required"})
	}
	if !s.tracker.Remove(hash) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Save persists the done runs now.
func (s *Server) Save(c echo.Context) error {
	if s.repo == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no storage configured"})
	}
	if err := s.tracker.Save(c.Request().Context(), s.repo); err != nil {
		s.logger.Printf("ERROR: failed to save runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save runs"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}
