package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// NewRouter wires every route. metricsHandler and limiter may be nil.
func NewRouter(h *Handler, limiter *RateLimiter, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.Health)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes.
		r.Get("/estimate", h.Estimate)
		r.Get("/centers", h.Centers)
		r.Post("/register/user", h.RegisterUser)
		r.Post("/register/company", h.RegisterCompany)
		r.Post("/login", h.Login)
		r.Post("/session/exchange", h.Exchange)

		// Protected routes.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.tokens))
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleUser))
				r.Get("/companies", h.Companies)
				r.Get("/submissions", h.ListSubmissions)
				if limiter != nil {
					r.With(limiter.Middleware).Post("/submissions", h.CreateSubmission)
				} else {
					r.Post("/submissions", h.CreateSubmission)
				}
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(models.RoleCompany))
				r.Get("/requests", h.ListRequests)
				r.Patch("/requests/{id}/status", h.SetRequestStatus)
				r.Get("/requests/{id}/submitter", h.RequestSubmitter)
				r.Get("/analytics", h.Analytics)
				r.Get("/company/profile", h.CompanyProfile)
				r.Put("/company/profile", h.UpdateCompanyProfile)
			})
		})
	})

	h.logger.Debug("routes registered", zap.Int("count", len(r.Routes())))
	return r
}
