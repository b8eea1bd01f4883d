package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/filegate/internal/logging"
)

// NewRouter wires the public API routes and middleware.
func NewRouter(h *Handler, l logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(l))
	r.Use(MetricsMiddleware())

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads", h.IssueTransfer)
		r.Route("/uploads/multipart", func(r chi.Router) {
			r.Post("/", h.OpenMultipart)
			r.Post("/sign", h.SignPart)
			r.Post("/complete", h.CompleteMultipart)
			r.Post("/abort", h.AbortMultipart)
		})
		r.Get("/download", h.DownloadURL)
		r.Get("/bundles/*", h.StreamBundle)
	})

	return r
}
