// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// sellout API server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sellout/internal/handlers"
	"sellout/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. limiter may be nil to disable rate limiting.
func New(products *handlers.Products, rt *handlers.Realtime, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request. Logger runs outermost so
	// it records the 500 written by Recoverer.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)

	// Health check, used by clients as a connectivity probe.
	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Post("/", products.Create)
			r.Get("/trailing-order", products.TrailingOrder)
			r.Get("/{id}", products.Get)
			r.Patch("/{id}", products.Update)
			r.Delete("/{id}", products.Delete)
		})

		r.Post("/rpc/rebalance-and-move", products.RebalanceAndMove)

		// Change stream.
		r.Get("/realtime", rt.Serve)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
