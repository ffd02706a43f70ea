package admin

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/secfolio/portfolio-gate/internal/auth"
)

// NewRouter creates the admin router. Key and site-key management
// require the admin role; audit logs and analytics are readable by
// managers and up.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	// Public endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Post("/admin/login", h.HandleLogin)
	r.Post("/admin/logout", h.HandleLogout)

	r.Route("/admin/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole(auth.RoleAdmin))

			r.Get("/keys", h.HandleListKeys)
			r.Post("/keys", h.HandleCreateKey)
			r.Patch("/keys/{id}", h.HandleUpdateKey)
			r.Post("/keys/{id}/rotate", h.HandleRotateKey)
			r.Delete("/keys/{id}", h.HandleDeleteKey)
			r.Get("/keys/{id}/reveal", h.HandleRevealKey)

			r.Get("/sitekeys", h.HandleListSiteKeys)
			r.Post("/sitekeys", h.HandleCreateSiteKey)
			r.Patch("/sitekeys/{id}", h.HandleUpdateSiteKey)
			r.Delete("/sitekeys/{id}", h.HandleDeleteSiteKey)
			r.Get("/sitekeys/{id}/secret", h.HandleRevealSiteKeySecret)

			r.Post("/loglevel", h.HandleSetLogLevel)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole(auth.RoleManager))

			r.Get("/logs", h.HandleListLogs)
			r.Get("/analytics", h.HandleAnalytics)
		})
	})

	return r
}
