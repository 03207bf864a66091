// Package router wires the HTTP surface: health, metrics, tool invocation
// and the webchat channel.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/amedis-online/booking-agent/internal/http/handlers"
	"github.com/amedis-online/booking-agent/internal/webchat"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	ToolsHandler   *handlers.ToolsHandler
	Webchat        *webchat.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ToolsHandler != nil {
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", cfg.ToolsHandler.List)
			r.Post("/{name}", cfg.ToolsHandler.Invoke)
		})
	}

	if cfg.Webchat != nil {
		r.Route("/webchat", func(r chi.Router) {
			r.Get("/ws", cfg.Webchat.HandleWebSocket)
			r.Post("/message", cfg.Webchat.HandleMessage)
		})
	}

	return r
}
