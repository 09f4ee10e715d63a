/**
 * @description
 * This file sets up the HTTP router for the billing-service using the
 * go-chi/chi router. The STK callback route stays outside the auth group:
 * it must be reachable by the payment network without credentials.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the billing-service routes.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})

	// Unauthenticated: the payment network posts results here.
	r.Post("/api/payments/callback", h.handleStkCallback)

	// Protected routes that require authentication
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/api/payments/initiate", h.handleInitiatePayment)

		r.Route("/api/clients", func(r chi.Router) {
			r.Post("/", h.handleCreateClient)
			r.Get("/", h.handleListClients)
			r.Get("/{id}", h.handleGetClient)
		})

		r.Route("/api/plans", func(r chi.Router) {
			r.Post("/", h.handleCreatePlan)
			r.Get("/", h.handleListPlans)
			r.Get("/{id}", h.handleGetPlan)
		})

		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Post("/", h.handleCreateSubscription)
			r.Get("/", h.handleListSubscriptions)
			r.Get("/{id}", h.handleGetSubscription)
			r.Post("/{id}/cancel", h.handleCancelSubscription)
		})

		r.Get("/api/transactions", h.handleListTransactions)
	})

	return r
}
