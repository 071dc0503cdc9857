package uph

import (
	"sort"

	"uph-engine/internal/storage"
)

type corruptionKey struct {
	moNumber   string
	operatorID int64
	seconds    int64
}

// DetectCorruption flags groups of cycles that repeat one short duration
// for the same MO and operator. Flagged cycles are removed from the
// returned slice and reported as CorruptedDuplicate anomalies.
func DetectCorruption(cycles []storage.CanonicalCycle, m Methodology) ([]storage.CanonicalCycle, []storage.RejectedAggregate) {
	groups := make(map[corruptionKey][]int)
	for i, c := range cycles {
		if c.DurationSeconds > m.CorruptionMaxSeconds {
			continue
		}
		key := corruptionKey{moNumber: c.MONumber, operatorID: c.OperatorID, seconds: c.DurationSeconds}
		groups[key] = append(groups[key], i)
	}

	keys := make([]corruptionKey, 0, len(groups))
	for key, members := range groups {
		if len(members) >= m.CorruptionMinGroupSize {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return cycles, nil
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].moNumber != keys[j].moNumber {
			return keys[i].moNumber < keys[j].moNumber
		}
		if keys[i].operatorID != keys[j].operatorID {
			return keys[i].operatorID < keys[j].operatorID
		}
		return keys[i].seconds < keys[j].seconds
	})

	flagged := make([]storage.CanonicalCycle, len(cycles))
	copy(flagged, cycles)

	rejected := make([]storage.RejectedAggregate, 0, len(keys))
	for _, key := range keys {
		members := groups[key]
		ids := make([]int64, 0, len(members))
		for _, i := range members {
			flagged[i].Corrupted = true
			ids = append(ids, flagged[i].CycleID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		first := flagged[members[0]]
		category, _ := Classify(first.WorkCenterName)

		rejected = append(rejected, storage.RejectedAggregate{
			MONumber:        key.moNumber,
			OperatorID:      key.operatorID,
			OperatorName:    first.OperatorName,
			Category:        category,
			Reason:          storage.ReasonCorruptedDuplicate,
			Value:           float64(key.seconds),
			DurationSeconds: key.seconds * int64(len(members)),
			CycleCount:      len(members),
			CycleIDs:        ids,
		})
	}

	kept := make([]storage.CanonicalCycle, 0, len(flagged))
	for _, c := range flagged {
		if !c.Corrupted {
			kept = append(kept, c)
		}
	}

	return kept, rejected
}
