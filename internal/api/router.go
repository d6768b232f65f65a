// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fableboard/internal/auth"
	"github.com/tomtom215/fableboard/internal/config"
	"github.com/tomtom215/fableboard/internal/middleware"
)

// NewRouter assembles the HTTP surface: REST API under /api/v1, the
// WebSocket upgrade at /api/v1/ws, health and Prometheus metrics.
func NewRouter(cfg *config.Config, handler *Handler, authMW *auth.Middleware, wsLimiter *auth.RateLimiter) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health stays unauthenticated so orchestrators can probe it.
	r.Get("/api/v1/health", handler.Health)

	// WebSocket upgrade. The auth middleware accepts the token via the
	// `token` query parameter since browsers cannot set headers on
	// WebSocket requests. Connection churn gets its own limiter.
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(wsLimiter.Middleware)
		r.Use(authMW.Authenticate)
		r.Get("/", handler.ServeWS)
	})

	// Core data endpoints. Everything requires authentication; per-board
	// authorization happens in the handlers against stored permissions.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(authMW.Authenticate)

		r.Route("/boards", func(r chi.Router) {
			r.Get("/", handler.ListBoards)
			r.Post("/", handler.CreateBoard)

			r.Route("/{boardID}", func(r chi.Router) {
				r.Get("/", handler.GetBoard)
				r.Patch("/", handler.UpdateBoard)
				r.Delete("/", handler.DeleteBoard)
				r.Get("/data", handler.GetBoardData)
				r.Post("/clear", handler.ClearBoard)
				r.Post("/import", handler.ImportBoard)

				r.Post("/permissions", handler.InviteUser)
				r.Delete("/permissions/{userID}", handler.RevokePermission)

				r.Route("/cards", func(r chi.Router) {
					r.Get("/", handler.ListCards)
					r.Post("/", handler.CreateCard)
					r.Patch("/{cardID}", handler.UpdateCard)
					r.Delete("/{cardID}", handler.DeleteCard)
				})

				r.Route("/connections", func(r chi.Router) {
					r.Get("/", handler.ListConnections)
					r.Post("/", handler.CreateConnection)
					r.Patch("/{connectionID}", handler.UpdateConnection)
					r.Delete("/{connectionID}", handler.DeleteConnection)
				})

				r.Route("/comments", func(r chi.Router) {
					r.Get("/", handler.ListComments)
					r.Post("/", handler.CreateComment)
					r.Patch("/{commentID}", handler.UpdateComment)
					r.Delete("/{commentID}", handler.DeleteComment)
				})
			})
		})
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
