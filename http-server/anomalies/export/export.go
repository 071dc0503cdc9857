package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"uph-engine/http-server/params"
	"uph-engine/internal/service/recompute"
)

type AnomalyWorkbook interface {
	GenerateAnomalies(ctx context.Context, windowDays *int) ([]byte, error)
}

func ExportAnomalies(log *slog.Logger, gen AnomalyWorkbook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.anomalies.ExportAnomalies"

		window, err := params.Window(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		data, err := gen.GenerateAnomalies(ctx, window)
		if err != nil {
			if errors.Is(err, recompute.ErrInvalidWindow) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error("failed to generate excel",
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		scope := "all"
		if window != nil {
			scope = fmt.Sprintf("%dd", *window)
		}
		fileName := fmt.Sprintf("UPH_Anomalies_%s_%s.xlsx", scope, time.Now().Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		w.Write(data)
	}
}
