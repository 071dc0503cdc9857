package get

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"uph-engine/http-server/params"
	"uph-engine/internal/service/recompute"
	"uph-engine/internal/service/uph"
	"uph-engine/internal/storage"
)

type UphQuerier interface {
	QueryUph(f uph.Filter, windowDays int) ([]storage.UphStatistic, error)
}

type Response struct {
	WindowDays int                    `json:"window_days"`
	Statistics []storage.UphStatistic `json:"statistics"`
}

// GetUph serves averaged UPH for a window. Filters are optional; a filter
// that matches nothing still answers 200 with data_available=false.
func GetUph(log *slog.Logger, q UphQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uph.GetUph"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		window, err := params.RequiredWindow(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		filter, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		stats, err := q.QueryUph(filter, window)
		if err != nil {
			if errors.Is(err, recompute.ErrInvalidWindow) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error("Failed to query uph", slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, Response{WindowDays: window, Statistics: stats})
	}
}

func parseFilter(r *http.Request) (uph.Filter, error) {
	q := r.URL.Query()

	f := uph.Filter{ProductName: strings.TrimSpace(q.Get("product"))}

	if raw := q.Get("category"); raw != "" {
		c, ok := storage.ParseCategory(raw)
		if !ok {
			return uph.Filter{}, errors.New("invalid category: expected Cutting, Assembly or Packaging")
		}
		f.Category = c
	}

	if raw := q.Get("operator_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return uph.Filter{}, errors.New("invalid operator_id")
		}
		f.OperatorID = id
	}

	return f, nil
}
