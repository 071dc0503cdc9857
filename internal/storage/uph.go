package storage

import "time"

type RejectReason string

const (
	ReasonInvalidDuration    RejectReason = "InvalidDuration"
	ReasonMissingField       RejectReason = "MissingField"
	ReasonUnresolvedOperator RejectReason = "UnresolvedOperator"
	ReasonCorruptedDuplicate RejectReason = "CorruptedDuplicate"
	ReasonUnmappedWorkCenter RejectReason = "UnmappedWorkCenter"
	ReasonMissingMOQuantity  RejectReason = "MissingMOQuantity"
	ReasonZeroDuration       RejectReason = "ZeroDuration"
	ReasonDurationTooShort   RejectReason = "DurationTooShort"
	ReasonUphTooHigh         RejectReason = "UphTooHigh"
)

// MOAggregate is the consolidated (operator, MO, category) observation.
// Quantity is the MO quantity taken once, never a sum over cycles.
type MOAggregate struct {
	OperatorID           int64     `json:"operator_id"`
	OperatorName         string    `json:"operator_name"`
	MONumber             string    `json:"mo_number"`
	Category             Category  `json:"category"`
	ProductName          string    `json:"product_name"`
	MOCreatedAt          time.Time `json:"mo_created_at"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	Quantity             float64   `json:"quantity"`
	CycleCount           int       `json:"cycle_count"`
	DurationHours        float64   `json:"duration_hours"`
	UPH                  float64   `json:"uph"`
}

// RejectedAggregate is an anomaly kept for human review. Value holds the
// number that triggered the rejection (UPH, hours or repeated seconds).
type RejectedAggregate struct {
	MONumber        string       `json:"mo_number"`
	OperatorID      int64        `json:"operator_id"`
	OperatorName    string       `json:"operator_name"`
	Category        Category     `json:"category,omitempty"`
	ProductName     string       `json:"product_name,omitempty"`
	MOCreatedAt     *time.Time   `json:"mo_created_at,omitempty"`
	Reason          RejectReason `json:"reason"`
	Value           float64      `json:"value"`
	DurationSeconds int64        `json:"duration_seconds"`
	Quantity        float64      `json:"quantity"`
	CycleCount      int          `json:"cycle_count"`
	CycleIDs        []int64      `json:"cycle_ids,omitempty"`
}

type UphStatistic struct {
	ProductName       string   `json:"product_name"`
	Category          Category `json:"category"`
	OperatorID        int64    `json:"operator_id"`
	OperatorName      string   `json:"operator_name"`
	WindowDays        int      `json:"window_days"`
	AverageUph        float64  `json:"average_uph"`
	MOCount           int      `json:"mo_count"`
	TotalObservations int      `json:"total_observations"`
	DataAvailable     bool     `json:"data_available"`
	Reason            string   `json:"reason,omitempty"`
}

// RejectionCounters counts dropped rows and aggregates per reason for one run.
type RejectionCounters map[RejectReason]int

func (c RejectionCounters) Add(reason RejectReason, n int) {
	c[reason] += n
}

func (c RejectionCounters) Merge(other RejectionCounters) {
	for reason, n := range other {
		c[reason] += n
	}
}

// Run identifies a published result set. ComputedAt is the reference time
// windows are evaluated against; StartedAt and CompletedAt bound the job.
type Run struct {
	ID                 string    `json:"id"`
	MethodologyVersion string    `json:"methodology_version"`
	StartedAt          time.Time `json:"started_at"`
	ComputedAt         time.Time `json:"computed_at"`
	CompletedAt        time.Time `json:"completed_at"`
	CyclesRead         int       `json:"cycles_read"`
}

// Snapshot is one complete, published result set. Statistics hold every
// materialized window, each entry carrying its WindowDays.
type Snapshot struct {
	Run        Run                 `json:"run"`
	Aggregates []MOAggregate       `json:"aggregates"`
	Rejections []RejectedAggregate `json:"rejections"`
	Statistics []UphStatistic      `json:"statistics"`
	Counters   RejectionCounters   `json:"counters"`
	Windows    []int               `json:"windows"`
}
