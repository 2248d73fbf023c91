// Package server wires HTTP handlers into a ServeMux for the lobby
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// The discovery API is CORS enabled for the configured origins so browser
// clients can list rooms before connecting.
func (s *Server) SetupRoutes() *http.ServeMux {
	api := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.Handle("/metrics", metrics.Handler(s.registry))
	mux.Handle("/api/rooms", api.Handler(http.HandlerFunc(s.RoomsHandler)))
	return mux
}
