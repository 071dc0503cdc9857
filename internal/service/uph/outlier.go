package uph

import "uph-engine/internal/storage"

// FilterOutliers applies the minimum duration and the per-category UPH
// ceiling. Both checks must pass; the minimum duration is inclusive.
func FilterOutliers(aggregates []storage.MOAggregate, m Methodology) ([]storage.MOAggregate, []storage.RejectedAggregate) {
	kept := make([]storage.MOAggregate, 0, len(aggregates))
	var rejected []storage.RejectedAggregate

	for _, a := range aggregates {
		if float64(a.TotalDurationSeconds) < m.MinDurationSeconds {
			rejected = append(rejected, rejectAggregate(a, storage.ReasonDurationTooShort, a.DurationHours))
			continue
		}

		if ceiling, ok := m.MaxUph[a.Category]; ok && a.UPH > ceiling {
			rejected = append(rejected, rejectAggregate(a, storage.ReasonUphTooHigh, a.UPH))
			continue
		}

		kept = append(kept, a)
	}

	return kept, rejected
}

func rejectAggregate(a storage.MOAggregate, reason storage.RejectReason, value float64) storage.RejectedAggregate {
	return storage.RejectedAggregate{
		MONumber:        a.MONumber,
		OperatorID:      a.OperatorID,
		OperatorName:    a.OperatorName,
		Category:        a.Category,
		ProductName:     a.ProductName,
		MOCreatedAt:     timePtr(a.MOCreatedAt),
		Reason:          reason,
		Value:           value,
		DurationSeconds: a.TotalDurationSeconds,
		Quantity:        a.Quantity,
		CycleCount:      a.CycleCount,
	}
}
