package get

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"uph-engine/http-server/params"
	"uph-engine/internal/service/recompute"
	"uph-engine/internal/storage"
)

type AnomalyLister interface {
	ListAnomalies(windowDays *int) ([]storage.RejectedAggregate, error)
}

type Response struct {
	WindowDays *int                        `json:"window_days"`
	Count      int                         `json:"count"`
	Anomalies  []storage.RejectedAggregate `json:"anomalies"`
}

// GetAnomalies lists rejected aggregates for review. Without a window the
// listing covers every rejection of the published run.
func GetAnomalies(log *slog.Logger, lister AnomalyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.anomalies.GetAnomalies"

		window, err := params.Window(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		anomalies, err := lister.ListAnomalies(window)
		if err != nil {
			if errors.Is(err, recompute.ErrInvalidWindow) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			).Error("Failed to list anomalies")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if anomalies == nil {
			anomalies = []storage.RejectedAggregate{}
		}

		render.JSON(w, r, Response{WindowDays: window, Count: len(anomalies), Anomalies: anomalies})
	}
}
