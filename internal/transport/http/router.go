// Package httptransport assembles the public HTTP surface: middleware stack,
// health and metrics endpoints, and the identified API routes. Handlers live
// with their domains; this package only wires them together.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"othello/internal/platform/middleware"
)

// Registrar is anything that mounts its routes on the identified API group.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries what the router needs beyond the handlers themselves.
type Config struct {
	JWTSigningKey string
}

// NewRouter wires the middleware stack and mounts all handlers. Health and
// metrics are open; every other route requires an identified caller so one
// user can never see another's consent boundary.
func NewRouter(cfg Config, logger *slog.Logger, open []Registrar, identified []Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Handle("/metrics", promhttp.Handler())
	for _, reg := range open {
		reg.Register(r)
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Identify([]byte(cfg.JWTSigningKey), logger))
		for _, reg := range identified {
			reg.Register(api)
		}
	})

	return r
}
