/**
 * @description
 * This file sets up the HTTP router for the verification-service. Webhook routes
 * are authenticated by signature, the verification API by bearer token, and the
 * admin routes additionally by role.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS for the React frontend.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the auth and CORS settings the router needs.
type RouterConfig struct {
	Auth           AuthConfig
	AdminRoles     []string
	AllowedOrigins []string
}

// NewRouter creates a new Chi router and registers the verification-service routes.
func NewRouter(webhook *WebhookHandler, verification *VerificationHandler, admin *AdminHandler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Verification service is healthy"))
	})

	// Vendor callbacks. Authenticated by HMAC signature, not bearer token.
	r.Post("/webhooks/dojah", webhook.ServeHTTP)
	r.Post("/webhook", webhook.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Get("/verification/{correlationId}", verification.GetVerification)
		r.Post("/verification/{correlationId}/forward", verification.ForwardVerification)

		r.Route("/admin/webhooks", func(r chi.Router) {
			r.Use(RequireRole(cfg.AdminRoles...))

			r.Get("/", admin.ListWebhooks)
			r.Get("/stats", admin.WebhookStatistics)
			r.Get("/health", admin.WebhookHealth)
			r.Delete("/{correlationId}", admin.DeleteWebhook)
		})
	})

	return r
}
