package handlers

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thethetrader/thethetrader-sub001/internal/config"
	"github.com/Thethetrader/thethetrader-sub001/internal/services"
)

// NewRouter wires the relay's HTTP surface.
func NewRouter(cfg *config.Config, hub *services.Hub, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimw.Recoverer)

	// Clients connect from anywhere, any origin is accepted
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	ws := NewWSHandler(hub, logger)
	token := NewTokenHandler(cfg, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", HandleHealth(hub))
	r.Get("/get-token", token.HandleGetToken)
	r.Get("/ws", ws.HandleWebSocket)

	return r
}
