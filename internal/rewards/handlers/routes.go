package handlers

import (
	"github.com/25x8/rewards/internal/rewards/middleware"
	"github.com/go-chi/chi/v5"
)

// Mount registers all API routes on r
func (h *Handler) Mount(r chi.Router) {
	jwtConfig := &middleware.JWTConfig{SecretKey: h.JWTSecret}

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.RegisterUser)
		r.Post("/login", h.LoginUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtConfig))

			r.Get("/profile", h.GetProfile)
			r.Post("/streak/claim", h.ClaimStreak)
			r.Post("/spin", h.Spin)
			r.Post("/grantAdSpin", h.GrantAdSpin)
			r.Post("/withdrawal", h.RequestWithdrawal)
			r.Get("/withdrawal/history", h.GetWithdrawals)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", h.LoginAdmin)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AuthMiddleware(jwtConfig))
				r.Use(middleware.AdminMiddleware)

				r.Get("/analytics", h.GetAnalytics)
				r.Get("/users", h.ListUsers)
				r.Delete("/users/{uid}", h.DeleteUser)
				r.Get("/withdrawals/pending", h.GetPendingWithdrawals)
				r.Put("/withdrawals/{uid}/{requestId}", h.UpdateWithdrawal)
			})
		})
	})
}
