package start

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"uph-engine/http-server/params"
	"uph-engine/internal/service/recompute"
)

type Recomputer interface {
	Recompute(windowDays *int) (recompute.JobHandle, error)
}

type Response struct {
	JobID  recompute.JobHandle `json:"job_id"`
	Status string              `json:"status"`
}

// StartRecompute triggers a background pipeline run and answers with the
// job handle to poll. A run already in progress is reported as 409 with
// that run's handle.
func StartRecompute(log *slog.Logger, rec Recomputer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.recompute.StartRecompute"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		window, err := params.Window(r)
		if err != nil {
			log.Warn("bad window", slog.String("error", err.Error()))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		handle, err := rec.Recompute(window)
		switch {
		case errors.Is(err, recompute.ErrRecomputeInProgress):
			log.Info("recompute already running", slog.String("job_id", string(handle)))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, Response{JobID: handle, Status: "running"})
			return
		case errors.Is(err, recompute.ErrInvalidWindow):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			log.Error("failed to start recompute", slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		log.Info("recompute accepted", slog.String("job_id", string(handle)))

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, Response{JobID: handle, Status: "started"})
	}
}
