package api

import "github.com/go-chi/chi/v5"

// SetupRoutes registers the API routes.
func SetupRoutes(router chi.Router, h *Handlers) {
	router.Get("/healthz", h.Health)

	router.Route("/api", func(r chi.Router) {
		r.Get("/events", h.Events)

		r.Route("/forecast", func(r chi.Router) {
			r.Get("/", h.ComputeForecast)
			r.Get("/results", h.ForecastResults)
			r.Get("/utilization", h.Utilization)
			r.Get("/export.xlsx", h.ExportForecast)
		})

		r.Post("/sql", h.ExecuteSQL)

		r.Route("/execution-logs", func(r chi.Router) {
			r.Get("/", h.ExecutionLogs)
			r.Post("/replay", h.Replay)
		})

		r.Post("/reset", h.Reset)
		r.Post("/reset/clean", h.ResetClean)
		r.Post("/data/clear", h.ClearData)
		r.Post("/database/switch", h.SwitchDatabase)
	})
}
