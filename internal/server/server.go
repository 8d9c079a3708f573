// Package server provides the HTTP server for the mudra hand tracking service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	App       *app.App
	StaticDir string
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hands  *HandsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	a := s.config.App
	if a != nil {
		s.mux.Handle("/api/config", api.NewConfigHandler(a))
		s.mux.Handle("/api/tracking", api.NewTrackingHandler(a))
		s.mux.Handle("/api/plugins", api.NewPluginHandler(a.PluginManager(), a))

		s.hands = NewHandsHandler(a)
		s.mux.Handle("/api/hands", s.hands)

		// Store-backed endpoints
		if st := a.Store(); st != nil {
			recordings := api.NewRecordingHandler(st, a)
			s.mux.Handle("/api/recordings", recordings)
			s.mux.Handle("/api/recordings/", recordings)

			bindings := api.NewBindingHandler(st, a.PluginManager())
			s.mux.Handle("/api/bindings", bindings)
			s.mux.Handle("/api/bindings/", bindings)
		}

		if preview := a.Preview(); preview != nil {
			s.mux.Handle("/api/stream", NewStreamHandler(preview))
		}
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		p := a.Provider()
		response["device"] = p.Name()
		response["capabilities"] = p.Capabilities().String()
		response["enabled"] = a.IsEnabled()
	}
	if s.hands != nil {
		response["clients"] = s.hands.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
