// Package server assembles the HTTP API: routes, middleware chain and
// the listener lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/compendio/internal/server/handlers"
	"github.com/iudanet/compendio/internal/server/middleware"
)

// Handlers groups the route handlers the server mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Atti      *handlers.AttiHandler
	Conflicts *handlers.ConflictsHandler
	Sync      *handlers.SyncHandler
}

// Server is the HTTP front of the application.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the server with the full middleware chain. Everything under
// /api/v1 except login and refresh requires an admin token; login is rate
// limited against password guessing.
func New(addr string, logger *slog.Logger, jwtConfig handlers.JWTConfig, h Handlers) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /api/v1/health", handlers.Health)

	loginLimit := middleware.RateLimit(10, time.Minute, logger)
	mux.Handle("POST /api/v1/auth/login", loginLimit(http.HandlerFunc(h.Auth.Login)))
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Auth.Refresh)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/atti", h.Atti.List)
	protected.HandleFunc("POST /api/v1/atti", h.Atti.Create)
	protected.HandleFunc("GET /api/v1/atti/{id}", h.Atti.Get)
	protected.HandleFunc("PUT /api/v1/atti/{id}", h.Atti.Update)
	protected.HandleFunc("DELETE /api/v1/atti/{id}", h.Atti.Delete)
	protected.HandleFunc("POST /api/v1/atti/{id}/lock", h.Atti.Lock)
	protected.HandleFunc("DELETE /api/v1/atti/{id}/lock", h.Atti.Unlock)
	protected.HandleFunc("GET /api/v1/atti/{id}/pdf", h.Atti.DownloadPDF)
	protected.HandleFunc("PUT /api/v1/atti/{id}/pdf", h.Atti.UploadPDF)
	protected.HandleFunc("GET /api/v1/filters/{column}", h.Atti.FilterValues)
	protected.HandleFunc("GET /api/v1/audit", h.Atti.Audit)
	protected.HandleFunc("GET /api/v1/diagnostics/pdf", h.Atti.PDFDiagnostics)
	protected.HandleFunc("GET /api/v1/conflicts", h.Conflicts.List)
	protected.HandleFunc("POST /api/v1/conflicts/{index}/resolve", h.Conflicts.Resolve)
	protected.HandleFunc("POST /api/v1/sync/pull", h.Sync.Pull)
	protected.HandleFunc("POST /api/v1/sync/push", h.Sync.Push)
	protected.HandleFunc("GET /api/v1/status", h.Sync.Status)

	mux.Handle("/api/v1/", middleware.Auth(logger, jwtConfig)(protected))

	var handler http.Handler = mux
	handler = middleware.Logging(logger, "/health", "/api/v1/health", "/api/v1/status")(handler)
	handler = middleware.Recovery(logger)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
