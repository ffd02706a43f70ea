package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Rate limits for the public surface. The contact form gets its own
// tighter bucket on top of the global per-IP limit.
const (
	globalRequestsPerMinute = 20
	contactPerHour          = 5
)

// NewRouter creates the public router with CORS and per-IP rate
// limits. Routes are relative; the server mounts this under /api.
func (h *Handler) NewRouter(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(globalRequestsPerMinute, time.Minute))

	r.With(httprate.LimitByIP(contactPerHour, time.Hour)).
		Post("/contact", h.HandleContact)

	r.Post("/secure-download", h.HandleSecureDownload)
	r.Get("/secure-download/file", h.HandleDownloadFile)

	r.Post("/keys/verify", h.HandleVerifyKey)

	return r
}
