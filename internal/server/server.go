// -----------------------------------------------------------------------
// HTTP server wiring for the fetch gateway's external interface (spec §7)
// -----------------------------------------------------------------------

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ternarybob/fetchgateway/internal/app"
)

// Server manages the HTTP server and routes.
type Server struct {
	app          *app.App
	router       *http.ServeMux
	server       *http.Server
	shutdownChan chan struct{}

	fetchHandler *FetchHandler
	wsHandler    *WSHandler
	apiHandler   *APIHandler
}

// New creates a new HTTP server serving application's fetch API.
func New(application *app.App) *Server {
	s := &Server{
		app:          application,
		fetchHandler: NewFetchHandler(application),
		wsHandler:    NewWSHandler(application),
		apiHandler:   NewAPIHandler(application),
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 360 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes exposed by the gateway.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - fetch orchestration
	mux.HandleFunc("/fetch", s.fetchHandler.EnqueueHandler)   // POST - enqueue a fetch job
	mux.HandleFunc("/fetch/", s.fetchHandler.GetJobHandler)   // GET /fetch/{id}
	mux.HandleFunc("/ws/fetch/", s.wsHandler.HandleWebSocket) // GET /ws/fetch/{id} - progress push

	// API routes - system
	mux.HandleFunc("/healthz", s.apiHandler.HealthHandler)
	mux.HandleFunc("/version", s.apiHandler.VersionHandler)
	mux.HandleFunc("/shutdown", s.ShutdownHandler) // graceful shutdown

	if application := s.app; application.Config.Metrics.Enabled {
		mux.Handle(application.Config.Metrics.Path, promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", s.apiHandler.NotFoundHandler)

	return mux
}

// SetShutdownChannel sets the channel that will be signaled when HTTP shutdown is requested.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.app.Config.Server.Host, s.app.Config.Server.Port)

	s.app.Logger.Info().Str("address", addr).Msg("HTTP server starting")
	s.app.Logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", s.app.Config.Server.Host, s.app.Config.Server.Port)).
		Msg("fetch gateway API available")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ShutdownHandler handles HTTP shutdown requests. It is registered and
// served in every environment; no dev-mode check is made.
func (s *Server) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.app.Logger.Info().Msg("shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
