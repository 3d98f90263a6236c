// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chain of the
// customization API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pawtrait/internal/handlers"
	"pawtrait/internal/middleware"
)

// New creates the router. limiter guards submissions only and may be nil.
func New(health http.HandlerFunc, customizations *handlers.Customizations, catalog *handlers.Catalog, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", health)

	submit := http.Handler(http.HandlerFunc(customizations.Create))
	if limiter != nil {
		submit = limiter.Middleware(submit)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/styles", catalog.Styles)
		r.Get("/products/{productId}/customize", catalog.ProductCustomize)
		r.Get("/products/{productId}/customizations", customizations.List)

		r.Method(http.MethodPost, "/customizations", submit)
		r.Get("/customizations/{id}", customizations.Get)
		r.Post("/customizations/{id}/cart", customizations.AddToCart)
	})

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"success":false,"error":"Not found.","code":"not_found"}`))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"success":false,"error":"Method not allowed.","code":"method_not_allowed"}`))
}
