package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"github.com/robertarktes/travel-bookings/internal/ratelimit"
)

func NewRouter(h *Handlers, rl *ratelimit.RateLimiter, logger observability.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(MetricsMiddleware)
	r.Use(TracingMiddleware)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTMiddleware(h.cfg.JWTSecret))
		r.Use(RateLimitMiddleware(rl))

		r.Get("/packages", h.ListPackages)
		r.Get("/packages/{id}", h.GetPackage)

		r.Get("/carts", h.GetCart)
		r.Patch("/carts/{cartID}/items/{itemID}", h.UpdateCartItem)
		r.Delete("/carts/{cartID}/items/{itemID}", h.RemoveCartItem)

		r.Get("/bookings/{id}", h.GetBooking)
		r.Post("/bookings/{id}/cancel", h.CancelBooking)
		r.Post("/bookings/{id}/complete", h.CompleteBooking)
		r.Delete("/bookings/{id}", h.DeleteBooking)

		r.Get("/payments/{id}", h.GetPayment)

		r.Get("/notifications", h.ListNotifications)

		r.Group(func(r chi.Router) {
			r.Use(IdempotencyMiddleware())
			r.Post("/carts/items", h.AddCartItem)
			r.Post("/checkout", h.Checkout)
		})
	})

	return r
}
