/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the intranet frontend

ROUTE GROUPS:
  /api/employees/*   Employee management, balances, submissions
  /api/leaves/*      Record lookup, deletion, approval documents
  /api/admin/*       Rollover, purge, manual overrides
  /api/reports/*     Read-only reconciliation reports
  /api/holidays/*    Custom non-working dates
  /metrics           Prometheus metrics

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.RegisterEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/leaves", h.ListLeaves)
			r.Post("/{id}/leaves", h.SubmitLeave)
		})

		// Leave record routes
		r.Route("/leaves", func(r chi.Router) {
			r.Get("/{id}", h.GetLeave)
			r.Delete("/{id}", h.DeleteLeave)
			r.Get("/{id}/approval", h.ApprovalDocument)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
			r.Get("/expired-balances", h.ExpiredBalances)
			r.Post("/purge", h.PurgeExpired)
			r.Post("/employees/{id}/buckets", h.SaveManualBuckets)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/inconsistencies", h.Inconsistencies)
			r.Get("/on-leave", h.OnLeave)
			r.Get("/missing-certificates", h.MissingCertificates)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{date}", h.DeleteHoliday)
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	return r
}
