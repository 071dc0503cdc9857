package storage

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryCutting   Category = "Cutting"
	CategoryAssembly  Category = "Assembly"
	CategoryPackaging Category = "Packaging"
)

// ParseCategory accepts a category name in any letter case.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryCutting, CategoryAssembly, CategoryPackaging} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// WorkCycleRecord is a raw cycle row as delivered by the MES connector.
// Duration keeps the source encoding: a number of seconds, a numeric string,
// an "HH:MM:SS" string or an object carrying a "seconds" field.
type WorkCycleRecord struct {
	ID             int64     `json:"id"`
	WorkOrderID    int64     `json:"workorder_id"`
	MONumber       string    `json:"mo_number"`
	OperatorName   string    `json:"operator_name"`
	WorkCenterName string    `json:"workcenter_name"`
	Duration       any       `json:"duration"`
	QuantityDone   float64   `json:"qty_done"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
}

// DurationValue is the structured duration shape some connectors emit.
type DurationValue struct {
	Seconds float64 `json:"seconds"`
}

type CanonicalCycle struct {
	CycleID         int64    `json:"cycle_id"`
	WorkOrderID     int64    `json:"workorder_id"`
	MONumber        string   `json:"mo_number"`
	OperatorID      int64    `json:"operator_id"`
	OperatorName    string   `json:"operator_name"`
	WorkCenterName  string   `json:"workcenter_name"`
	Category        Category `json:"category"`
	DurationSeconds int64    `json:"duration_seconds"`
	Corrupted       bool     `json:"corrupted"`
}
