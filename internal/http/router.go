package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
	"github.com/robertarktes/show-schedules-and-bookings/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	// Public reads and provider callbacks.
	r.Get("/v1/shows", h.UpcomingShows)
	r.Get("/v1/shows/{movieID}", h.ShowDetail)
	r.Get("/v1/shows/{movieID}/seats", h.OccupiedSeats)
	r.Get("/v1/movies", h.NowPlaying)
	r.Post("/v1/payments/callback", h.PaymentCallback)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Signed-in callers.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Post("/v1/bookings", h.Reserve)
		r.Get("/v1/bookings", h.MyBookings)
		r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
	})

	// Admin surface; role claims checked after authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))
		r.Use(RequireRole(domain.RoleAdmin))
		r.Post("/v1/admin/shows", h.ScheduleShows)
		r.Delete("/v1/admin/shows/{movieID}", h.DeleteSchedule)
		r.Get("/v1/admin/shows", h.AllShows)
		r.Get("/v1/admin/bookings", h.AllBookings)
		r.Get("/v1/admin/dashboard", h.Dashboard)
		r.Post("/v1/admin/movies/{movieID}/refresh", h.RefreshMovie)
		r.Post("/v1/admin/roles/check", h.RoleCheck)
	})

	return r
}
