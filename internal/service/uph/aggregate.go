package uph

import (
	"sort"
	"time"

	"uph-engine/internal/storage"
)

type moKey struct {
	operatorID int64
	moNumber   string
	category   storage.Category
}

type moGroup struct {
	operatorName string
	seconds      int64
	cycles       int
}

// AggregateByMO consolidates categorized cycles to one MOAggregate per
// (operator, MO, category). The MO quantity is attached once per group and
// never summed over cycles.
func AggregateByMO(cycles []storage.CanonicalCycle, orders map[string]storage.ManufacturingOrder) ([]storage.MOAggregate, []storage.RejectedAggregate) {
	groups := make(map[moKey]*moGroup)
	for _, c := range cycles {
		key := moKey{operatorID: c.OperatorID, moNumber: c.MONumber, category: c.Category}
		g, ok := groups[key]
		if !ok {
			g = &moGroup{operatorName: c.OperatorName}
			groups[key] = g
		}
		g.seconds += c.DurationSeconds
		g.cycles++
	}

	keys := make([]moKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sortMOKeys(keys)

	var (
		aggregates []storage.MOAggregate
		rejected   []storage.RejectedAggregate
	)

	for _, key := range keys {
		g := groups[key]
		mo, ok := orders[key.moNumber]

		if !ok || mo.Quantity <= 0 {
			r := storage.RejectedAggregate{
				MONumber:        key.moNumber,
				OperatorID:      key.operatorID,
				OperatorName:    g.operatorName,
				Category:        key.category,
				Reason:          storage.ReasonMissingMOQuantity,
				DurationSeconds: g.seconds,
				CycleCount:      g.cycles,
			}
			if ok {
				r.Value = mo.Quantity
				r.Quantity = mo.Quantity
				r.ProductName = mo.ProductName
				r.MOCreatedAt = timePtr(mo.CreatedAt)
			}
			rejected = append(rejected, r)
			continue
		}

		if g.seconds <= 0 {
			rejected = append(rejected, storage.RejectedAggregate{
				MONumber:     key.moNumber,
				OperatorID:   key.operatorID,
				OperatorName: g.operatorName,
				Category:     key.category,
				ProductName:  mo.ProductName,
				MOCreatedAt:  timePtr(mo.CreatedAt),
				Reason:       storage.ReasonZeroDuration,
				Quantity:     mo.Quantity,
				CycleCount:   g.cycles,
			})
			continue
		}

		hours := float64(g.seconds) / 3600
		aggregates = append(aggregates, storage.MOAggregate{
			OperatorID:           key.operatorID,
			OperatorName:         g.operatorName,
			MONumber:             key.moNumber,
			Category:             key.category,
			ProductName:          mo.ProductName,
			MOCreatedAt:          mo.CreatedAt,
			TotalDurationSeconds: g.seconds,
			Quantity:             mo.Quantity,
			CycleCount:           g.cycles,
			DurationHours:        hours,
			UPH:                  mo.Quantity / hours,
		})
	}

	return aggregates, rejected
}

// moNumbers returns the distinct MO references of the given cycles, sorted.
func moNumbers(cycles []storage.CanonicalCycle) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range cycles {
		if _, ok := seen[c.MONumber]; ok {
			continue
		}
		seen[c.MONumber] = struct{}{}
		out = append(out, c.MONumber)
	}
	sort.Strings(out)
	return out
}

func sortMOKeys(keys []moKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].moNumber != keys[j].moNumber {
			return keys[i].moNumber < keys[j].moNumber
		}
		if keys[i].operatorID != keys[j].operatorID {
			return keys[i].operatorID < keys[j].operatorID
		}
		return keys[i].category < keys[j].category
	})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
