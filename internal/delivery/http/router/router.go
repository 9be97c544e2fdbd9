package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/shouldipickitup/internal/delivery/http/handler"
	"github.com/user/shouldipickitup/internal/delivery/http/middleware"
)

func New(h *handler.Handler, l *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(l))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(chimw.Timeout(60 * time.Second))

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/sources", h.HandleListSources)
		r.Get("/record", h.HandleGetRecord)
		r.Get("/zip/{zip}", h.HandleGetZip)
		r.Get("/failures", h.HandleListFailures)
		r.Get("/batches", h.HandleListBatches)
		r.Post("/crawl", h.HandleSubmitCrawl)
		r.Get("/status", h.HandleGetCrawlStatus)
	})

	return r
}
