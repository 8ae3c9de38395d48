package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/MimoJanra/DriftWatch/internal/api/docs"
)

// SetupRouter wires the HTTP API. gatherer backs /metrics; nil disables it.
func SetupRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/apis", func(r chi.Router) {
		r.Get("/", s.GetAPIs)
		r.Get("/{id}/endpoints", s.GetEndpoints)
	})

	r.Route("/endpoints/{id}", func(r chi.Router) {
		r.Get("/probes", s.GetProbes)
		r.Get("/baseline", s.GetBaseline)
		r.Delete("/baseline", s.ResetBaseline)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.CreateRun)
		r.Get("/last", s.GetLastRun)
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	return r
}
