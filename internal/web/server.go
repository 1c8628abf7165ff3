// Package web is the HTTP surface: roster and course CRUD, enrollment,
// attendance queries and the live MJPEG feed.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// Deps are the collaborators the server wires into handlers.
type Deps struct {
	Config     *config.Config
	Store      database.Store
	Identities identity.Store
	Enroller   *identity.Enroller
	Engine     *recognize.Engine
	Index      *recognize.Index
	Resolver   *schedule.Resolver
	Registry   *camera.Registry
	Detector   vision.Detector
	Embedder   vision.Embedder
}

// Server represents the web server.
type Server struct {
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(deps Deps, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		deps:   deps,
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// The MJPEG feed is an endless response; no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// newController builds a per-stream recognition controller. Each stream
// owns its dedup state, so controllers are never shared.
func (s *Server) newController(courseID string) (*session.Controller, error) {
	return session.NewController(session.Config{
		Detector:    s.deps.Detector,
		Embedder:    s.deps.Embedder,
		Engine:      s.deps.Engine,
		Resolver:    s.deps.Resolver,
		Store:       s.deps.Store,
		CourseID:    courseID,
		CaptureDir:  s.deps.Config.Identity.CaptureDir,
		SampleEvery: s.deps.Config.Recognition.SampleEvery,
		DedupWindow: s.deps.Config.Recognition.DedupWindow,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and releases open cameras.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	if s.deps.Registry != nil {
		s.deps.Registry.Close()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
