package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/handlers"
	"github.com/mwhite-dev/punchcard/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	presenceHandler *handlers.PresenceHandler,
	pointsHandler *handlers.PointsHandler,
	qrHandler *handlers.QRHandler,
	sessionManager *auth.SessionManager,
) {
	rateLimitConfig := middleware.DefaultPublicRateLimit()

	// Public routes - reached from customer devices via the QR poster
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/v1/identify", presenceHandler.Identify)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Get("/v1/identify/{id}/status", presenceHandler.Status)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/v1/login", presenceHandler.Login)

	// Staff routes - counter devices with a staff session
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireStaff(sessionManager))

		r.Get("/v1/pending", presenceHandler.Pending)
		r.Post("/v1/pending/{id}/consume", presenceHandler.Consume)
		r.Post("/v1/pending/{id}/dismiss", presenceHandler.Dismiss)
		r.Get("/v1/customers/code/{personalCode}", presenceHandler.LookupByCode)
		r.Get("/v1/customers/{id}/transactions", pointsHandler.History)

		r.Post("/v1/points/credit", pointsHandler.Credit)
		r.Post("/v1/points/redeem", pointsHandler.Redeem)

		r.Get("/v1/qr/merchant.png", qrHandler.MerchantQR)
	})

	// Customer routes - logged-in customers only
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireCustomer(sessionManager))

		r.Get("/v1/qr/personal.png", qrHandler.PersonalQR)
	})
}
