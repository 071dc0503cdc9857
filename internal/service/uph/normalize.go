package uph

import (
	"strings"

	"uph-engine/internal/storage"
)

// IngestRejection is a raw record that did not survive normalization.
type IngestRejection struct {
	CycleID int64
	Reason  storage.RejectReason
}

// Normalize validates raw records and resolves operator names to ids.
// operators is keyed by trimmed display name. The returned cycles have no
// category yet and are not flagged as corrupted.
func Normalize(records []storage.WorkCycleRecord, operators map[string]storage.Operator) ([]storage.CanonicalCycle, []IngestRejection) {
	cycles := make([]storage.CanonicalCycle, 0, len(records))
	var rejected []IngestRejection

	for _, rec := range records {
		operatorName := strings.TrimSpace(rec.OperatorName)
		workCenter := strings.TrimSpace(rec.WorkCenterName)
		moNumber := strings.TrimSpace(rec.MONumber)

		if operatorName == "" || workCenter == "" || moNumber == "" {
			rejected = append(rejected, IngestRejection{CycleID: rec.ID, Reason: storage.ReasonMissingField})
			continue
		}

		seconds, err := ParseDuration(rec.Duration)
		if err != nil {
			rejected = append(rejected, IngestRejection{CycleID: rec.ID, Reason: storage.ReasonInvalidDuration})
			continue
		}

		operator, ok := operators[operatorName]
		if !ok {
			rejected = append(rejected, IngestRejection{CycleID: rec.ID, Reason: storage.ReasonUnresolvedOperator})
			continue
		}

		cycles = append(cycles, storage.CanonicalCycle{
			CycleID:         rec.ID,
			WorkOrderID:     rec.WorkOrderID,
			MONumber:        moNumber,
			OperatorID:      operator.ID,
			OperatorName:    operator.Name,
			WorkCenterName:  workCenter,
			DurationSeconds: seconds,
		})
	}

	return cycles, rejected
}

// operatorNames returns the distinct trimmed operator names of a page.
func operatorNames(records []storage.WorkCycleRecord) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, rec := range records {
		name := strings.TrimSpace(rec.OperatorName)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}
