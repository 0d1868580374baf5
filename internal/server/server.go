// Package server provides the HTTP and WebSocket surface of formcoach.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	// Hub broadcasts feedback events to WebSocket listeners.
	Hub *EventHub
	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server for the formcoach engine.
type Server struct {
	config     Config
	router     *mux.Router
	start      time.Time
	httpServer *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		start:  time.Now(),
	}
	s.router = s.routerSetup()
	return s
}

func (s *Server) metrics() *metrics.Manager {
	if s.config.App == nil {
		return nil
	}
	return s.config.App.Metrics()
}

// routerSetup configures all HTTP routes for the server.
func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	if a := s.config.App; a != nil {
		sessions := api.NewSessionHandler(a)
		r.HandleFunc("/api/exercises/parse", sessions.HandleParse).Methods("GET")
		r.HandleFunc("/api/sessions", sessions.HandleCreate).Methods("POST")
		r.HandleFunc("/api/sessions", sessions.HandleList).Methods("GET")
		r.HandleFunc("/api/sessions/{id}", sessions.HandleGet).Methods("GET")
		r.HandleFunc("/api/sessions/{id}", sessions.HandleDelete).Methods("DELETE")
		r.HandleFunc("/api/sessions/{id}/select", sessions.HandleSelect).Methods("POST")
		r.HandleFunc("/api/sessions/{id}/repetitions", sessions.HandleRepetitions).Methods("GET")
		r.HandleFunc("/api/sessions/{id}/{action:next|previous|restart|pause|resume|complete}", sessions.HandleAction).Methods("POST")
		r.Handle("/api/sessions/{id}/frames", NewFrameHandler(a)).Methods("GET")

		if st := a.Store(); st != nil {
			history := api.NewHistoryHandler(st)
			r.HandleFunc("/api/history", history.HandleList).Methods("GET")
			r.HandleFunc("/api/history/{id}", history.HandleGet).Methods("GET")
			r.HandleFunc("/api/history/{id}", history.HandleDelete).Methods("DELETE")
		}
	}

	if s.config.Hub != nil {
		r.Handle("/api/events", s.config.Hub).Methods("GET")
	}

	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}

	r.Use(PanicRecovery(s.metrics()))
	r.Use(LogRequest())
	r.Use(RequestMetrics(s.metrics()))

	return r
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["sessions"] = len(s.config.App.Sessions())
	}
	if s.config.Hub != nil {
		response["listeners"] = s.config.Hub.Listeners()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof(" > server listening on: [%s]", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and disconnects event listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server shut down")
	return nil
}
