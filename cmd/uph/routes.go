package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	exportanomalies "uph-engine/http-server/anomalies/export"
	getanomalies "uph-engine/http-server/anomalies/get"
	"uph-engine/http-server/metrics"
	"uph-engine/http-server/recompute/start"
	"uph-engine/http-server/recompute/status"
	getuph "uph-engine/http-server/uph/get"
	"uph-engine/internal/config"
	"uph-engine/internal/middleware/auth"
	generate_excel "uph-engine/internal/service/generate-excel"
	"uph-engine/internal/service/recompute"
)

func routes(cfg config.Config, log *slog.Logger, manager *recompute.Manager, excel *generate_excel.GenerateExcelService) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTPServer.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/metrics", metrics.Metrics(log, manager))

	router.Route("/api/uph", func(r chi.Router) {
		r.Get("/", getuph.GetUph(log, manager))
		r.Get("/anomalies", getanomalies.GetAnomalies(log, manager))
		r.Get("/anomalies/excel", exportanomalies.ExportAnomalies(log, excel))
		r.Get("/jobs/{id}", status.GetJobStatus(log, manager))

		r.Group(func(r chi.Router) {
			r.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

			r.Post("/recompute", start.StartRecompute(log, manager))
			r.Delete("/jobs/{id}", status.CancelJob(log, manager))
		})
	})

	return router
}
