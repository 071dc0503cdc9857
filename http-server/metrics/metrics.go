package metrics

import (
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"uph-engine/internal/storage"
)

type RunReporter interface {
	LastRun() (*storage.Run, storage.RejectionCounters)
}

// Metrics exposes the counters of the last published run in the Prometheus
// text format. Before the first run only uph_published is emitted, as 0.
func Metrics(log *slog.Logger, runs RunReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.metrics.Metrics"

		run, counters := runs.LastRun()

		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))

		enc := expfmt.NewEncoder(w, format)
		for _, mf := range families(run, counters) {
			if err := enc.Encode(mf); err != nil {
				log.Error("failed to encode metrics", slog.String("op", op), slog.String("error", err.Error()))
				return
			}
		}
	}
}

func families(run *storage.Run, counters storage.RejectionCounters) []*dto.MetricFamily {
	published := 0.0
	if run != nil {
		published = 1
	}

	out := []*dto.MetricFamily{
		gauge("uph_published", "Whether a UPH result set has been published.", published, nil),
	}
	if run == nil {
		return out
	}

	out = append(out,
		gauge("uph_last_run_timestamp_seconds", "Unix time the published run was computed.",
			float64(run.ComputedAt.Unix()), nil),
		gauge("uph_last_run_duration_seconds", "Wall time of the published run.",
			run.CompletedAt.Sub(run.StartedAt).Seconds(), nil),
		gauge("uph_last_run_cycles_read", "Raw work cycles read by the published run.",
			float64(run.CyclesRead), nil),
		gauge("uph_last_run_info", "Identity of the published run.", 1,
			[]*dto.LabelPair{label("methodology", run.MethodologyVersion), label("run_id", run.ID)}),
	)

	reasons := make([]string, 0, len(counters))
	for reason := range counters {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	rejections := &dto.MetricFamily{
		Name: proto.String("uph_last_run_rejections"),
		Help: proto.String("Records and aggregates excluded by the published run, by reason."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, reason := range reasons {
		rejections.Metric = append(rejections.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("reason", reason)},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(counters[storage.RejectReason(reason)]))},
		})
	}
	if len(rejections.Metric) > 0 {
		out = append(out, rejections)
	}

	return out
}

func gauge(name, help string, value float64, labels []*dto.LabelPair) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Label: labels,
			Gauge: &dto.Gauge{Value: proto.Float64(value)},
		}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}
