package uph

import (
	"sort"
	"strings"
	"time"

	"uph-engine/internal/storage"
)

const (
	ReasonNoData          = "no data"
	ReasonAllDataOutliers = "all data filtered as outliers"
)

// Filter narrows a UPH query. Zero values match everything.
type Filter struct {
	ProductName string
	Category    storage.Category
	OperatorID  int64
}

func (f Filter) match(product string, category storage.Category, operatorID int64) bool {
	if f.ProductName != "" && !strings.EqualFold(f.ProductName, product) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(string(f.Category), string(category)) {
		return false
	}
	if f.OperatorID != 0 && f.OperatorID != operatorID {
		return false
	}
	return true
}

// InWindow reports whether t lies in [now - windowDays, now].
func InWindow(t time.Time, windowDays int, now time.Time) bool {
	if t.IsZero() {
		return false
	}
	from := now.AddDate(0, 0, -windowDays)
	return !t.Before(from) && !t.After(now)
}

type statKey struct {
	product    string
	category   storage.Category
	operatorID int64
}

// Summarize averages per-MO UPH values per (product, category, operator)
// for aggregates whose MO was created inside the window. The average is a
// mean of per-MO rates, not total quantity over total hours.
func Summarize(aggregates []storage.MOAggregate, windowDays int, f Filter, now time.Time) []storage.UphStatistic {
	type acc struct {
		operatorName string
		uph          []float64
		mos          map[string]struct{}
		cycles       int
	}

	groups := make(map[statKey]*acc)
	for _, a := range aggregates {
		if !InWindow(a.MOCreatedAt, windowDays, now) || !f.match(a.ProductName, a.Category, a.OperatorID) {
			continue
		}
		key := statKey{product: a.ProductName, category: a.Category, operatorID: a.OperatorID}
		g, ok := groups[key]
		if !ok {
			g = &acc{operatorName: a.OperatorName, mos: make(map[string]struct{})}
			groups[key] = g
		}
		g.uph = append(g.uph, a.UPH)
		g.mos[a.MONumber] = struct{}{}
		g.cycles += a.CycleCount
	}

	keys := make([]statKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].product != keys[j].product {
			return keys[i].product < keys[j].product
		}
		if keys[i].category != keys[j].category {
			return keys[i].category < keys[j].category
		}
		return keys[i].operatorID < keys[j].operatorID
	})

	stats := make([]storage.UphStatistic, 0, len(keys))
	for _, key := range keys {
		g := groups[key]

		var sum float64
		for _, v := range g.uph {
			sum += v
		}

		stats = append(stats, storage.UphStatistic{
			ProductName:       key.product,
			Category:          key.category,
			OperatorID:        key.operatorID,
			OperatorName:      g.operatorName,
			WindowDays:        windowDays,
			AverageUph:        sum / float64(len(g.uph)),
			MOCount:           len(g.mos),
			TotalObservations: g.cycles,
			DataAvailable:     len(g.mos) > 0,
		})
	}

	return stats
}

// Query selects published statistics matching f. When nothing matches it
// returns a single statistic with DataAvailable=false and a reason telling
// "never measured" apart from "measured but rejected".
func Query(stats []storage.UphStatistic, rejections []storage.RejectedAggregate, f Filter, windowDays int, now time.Time) []storage.UphStatistic {
	var out []storage.UphStatistic
	for _, s := range stats {
		if s.WindowDays == windowDays && f.match(s.ProductName, s.Category, s.OperatorID) {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}

	empty := storage.UphStatistic{
		ProductName: f.ProductName,
		Category:    f.Category,
		OperatorID:  f.OperatorID,
		WindowDays:  windowDays,
		Reason:      ReasonNoData,
	}

	for _, r := range rejections {
		if r.MOCreatedAt == nil || !InWindow(*r.MOCreatedAt, windowDays, now) {
			continue
		}
		if f.match(r.ProductName, r.Category, r.OperatorID) {
			empty.Reason = ReasonAllDataOutliers
			if f.OperatorID != 0 {
				empty.OperatorName = r.OperatorName
			}
			break
		}
	}

	return []storage.UphStatistic{empty}
}

// FilterRejections returns the anomalies whose MO was created inside the
// window. A nil window returns every anomaly, including those without a
// resolvable MO.
func FilterRejections(rejections []storage.RejectedAggregate, windowDays *int, now time.Time) []storage.RejectedAggregate {
	if windowDays == nil {
		out := make([]storage.RejectedAggregate, len(rejections))
		copy(out, rejections)
		return out
	}

	out := make([]storage.RejectedAggregate, 0)
	for _, r := range rejections {
		if r.MOCreatedAt != nil && InWindow(*r.MOCreatedAt, *windowDays, now) {
			out = append(out, r)
		}
	}
	return out
}
