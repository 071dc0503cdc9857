package status

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"uph-engine/internal/service/recompute"
)

type JobTracker interface {
	JobStatus(handle recompute.JobHandle) (recompute.JobStatus, error)
	Cancel(handle recompute.JobHandle) error
}

func GetJobStatus(log *slog.Logger, jobs JobTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.recompute.GetJobStatus"

		id := recompute.JobHandle(chi.URLParam(r, "id"))

		status, err := jobs.JobStatus(id)
		if errors.Is(err, recompute.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			).Error("Failed to read job status")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, status)
	}
}

// CancelJob asks a running job to stop. Cancelling a finished job is a no-op
// and reports its final status.
func CancelJob(log *slog.Logger, jobs JobTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.recompute.CancelJob"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := recompute.JobHandle(chi.URLParam(r, "id"))

		if err := jobs.Cancel(id); err != nil {
			if errors.Is(err, recompute.ErrJobNotFound) {
				http.Error(w, "Job not found", http.StatusNotFound)
				return
			}
			log.Error("Failed to cancel job", slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.Info("job cancel requested", slog.String("job_id", string(id)))

		status, err := jobs.JobStatus(id)
		if err != nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, status)
	}
}
