package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/event-ticketing/internal/auth"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/robertarktes/event-ticketing/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, authSvc *auth.Service, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Post("/v1/auth/register", h.Register)
	r.Post("/v1/auth/login", h.Login)
	r.Get("/v1/events", h.ListEvents)
	r.Get("/v1/events/{id}", h.GetEvent)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authSvc))

		r.Get("/v1/auth/me", h.Me)
		r.Get("/v1/events/user/{userId}", h.ListUserEvents)
		r.Get("/v1/bookings/{id}", h.GetBooking)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(rl))
			r.Use(IdempotencyMiddleware)
			r.Post("/v1/bookings", h.CreateBooking)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/v1/events", h.CreateEvent)
			r.Put("/v1/events/{id}", h.UpdateEvent)
			r.Delete("/v1/events/{id}", h.DeleteEvent)
			r.Get("/v1/users", h.ListUsers)
			r.Put("/v1/users/{id}/role", h.UpdateUserRole)
		})
	})

	return r
}
