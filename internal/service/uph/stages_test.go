package uph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uph-engine/internal/storage"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func cycle(id int64, mo string, operatorID int64, workCenter string, seconds int64) storage.CanonicalCycle {
	return storage.CanonicalCycle{
		CycleID:         id,
		MONumber:        mo,
		OperatorID:      operatorID,
		OperatorName:    "operator",
		WorkCenterName:  workCenter,
		DurationSeconds: seconds,
	}
}

func categorized(t *testing.T, cycles ...storage.CanonicalCycle) []storage.CanonicalCycle {
	t.Helper()
	out, rejected, _ := Categorize(cycles)
	require.Empty(t, rejected)
	return out
}

func order(mo string, qty float64, product string, created time.Time) storage.ManufacturingOrder {
	return storage.ManufacturingOrder{MONumber: mo, Quantity: qty, ProductName: product, CreatedAt: created}
}

func TestNormalize(t *testing.T) {
	operators := map[string]storage.Operator{
		"Anna": {ID: 1, Name: "Anna"},
	}
	records := []storage.WorkCycleRecord{
		{ID: 1, MONumber: " MO/001 ", OperatorName: " Anna ", WorkCenterName: "Sewing 1", Duration: "00:10:00"},
		{ID: 2, MONumber: "MO/001", OperatorName: "", WorkCenterName: "Sewing 1", Duration: 60},
		{ID: 3, MONumber: "", OperatorName: "Anna", WorkCenterName: "Sewing 1", Duration: 60},
		{ID: 4, MONumber: "MO/001", OperatorName: "Anna", WorkCenterName: "  ", Duration: 60},
		{ID: 5, MONumber: "MO/001", OperatorName: "Anna", WorkCenterName: "Sewing 1", Duration: "n/a"},
		{ID: 6, MONumber: "MO/001", OperatorName: "Ghost", WorkCenterName: "Sewing 1", Duration: 60},
	}

	cycles, rejected := Normalize(records, operators)

	require.Len(t, cycles, 1)
	assert.Equal(t, storage.CanonicalCycle{
		CycleID:         1,
		MONumber:        "MO/001",
		OperatorID:      1,
		OperatorName:    "Anna",
		WorkCenterName:  "Sewing 1",
		DurationSeconds: 600,
	}, cycles[0])

	assert.Equal(t, []IngestRejection{
		{CycleID: 2, Reason: storage.ReasonMissingField},
		{CycleID: 3, Reason: storage.ReasonMissingField},
		{CycleID: 4, Reason: storage.ReasonMissingField},
		{CycleID: 5, Reason: storage.ReasonInvalidDuration},
		{CycleID: 6, Reason: storage.ReasonUnresolvedOperator},
	}, rejected)
}

func TestClassify(t *testing.T) {
	cases := map[string]storage.Category{
		"Laser Cutter 2":       storage.CategoryCutting,
		"WEBBING cut":          storage.CategoryCutting,
		"cutting table":        storage.CategoryCutting,
		"Sewing line A":        storage.CategoryAssembly,
		"Final Assembly":       storage.CategoryAssembly,
		"Rope splicing":        storage.CategoryAssembly,
		"Embroidery":           storage.CategoryAssembly,
		"Grommet press":        storage.CategoryAssembly,
		"Zipper station":       storage.CategoryAssembly,
		"Packaging":            storage.CategoryPackaging,
		"Pack out":             storage.CategoryPackaging,
		"laser sewing combo":   storage.CategoryCutting,
		"assembly & packaging": storage.CategoryAssembly,
	}

	for name, want := range cases {
		got, ok := Classify(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := Classify("Quality control")
	assert.False(t, ok)
}

func TestCategorize_DropsUnmapped(t *testing.T) {
	cycles := []storage.CanonicalCycle{
		cycle(1, "MO1", 1, "Sewing", 600),
		cycle(2, "MO1", 1, "Inspection", 600),
		cycle(3, "MO1", 1, "Inspection", 600),
	}

	out, rejected, names := Categorize(cycles)

	require.Len(t, out, 1)
	assert.Equal(t, storage.CategoryAssembly, out[0].Category)
	assert.Len(t, rejected, 2)
	assert.Equal(t, storage.ReasonUnmappedWorkCenter, rejected[0].Reason)
	assert.Equal(t, []string{"Inspection"}, names)
}

func TestDetectCorruption(t *testing.T) {
	m := DefaultMethodology()
	cycles := []storage.CanonicalCycle{
		cycle(1, "MO1", 1, "Sewing", 5),
		cycle(2, "MO1", 1, "Sewing", 5),
		cycle(3, "MO1", 1, "Sewing", 5),
		cycle(4, "MO1", 1, "Sewing", 5),
		cycle(5, "MO1", 1, "Sewing", 5),
		cycle(6, "MO1", 1, "Sewing", 3600),
		// only two repeats: kept
		cycle(7, "MO1", 2, "Sewing", 10),
		cycle(8, "MO1", 2, "Sewing", 10),
		// long repeated durations are plausible
		cycle(9, "MO2", 1, "Sewing", 120),
		cycle(10, "MO2", 1, "Sewing", 120),
		cycle(11, "MO2", 1, "Sewing", 120),
	}

	kept, rejected := DetectCorruption(cycles, m)

	var keptIDs []int64
	for _, c := range kept {
		assert.False(t, c.Corrupted)
		keptIDs = append(keptIDs, c.CycleID)
	}
	assert.Equal(t, []int64{6, 7, 8, 9, 10, 11}, keptIDs)

	require.Len(t, rejected, 1)
	assert.Equal(t, storage.ReasonCorruptedDuplicate, rejected[0].Reason)
	assert.Equal(t, "MO1", rejected[0].MONumber)
	assert.Equal(t, int64(1), rejected[0].OperatorID)
	assert.Equal(t, storage.CategoryAssembly, rejected[0].Category)
	assert.Equal(t, 5.0, rejected[0].Value)
	assert.Equal(t, 5, rejected[0].CycleCount)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, rejected[0].CycleIDs)

	// input is not mutated
	assert.False(t, cycles[0].Corrupted)
}

func TestDetectCorruption_BoundaryAndOverrides(t *testing.T) {
	m := DefaultMethodology()
	atLimit := []storage.CanonicalCycle{
		cycle(1, "MO1", 1, "Sewing", 60),
		cycle(2, "MO1", 1, "Sewing", 60),
		cycle(3, "MO1", 1, "Sewing", 60),
	}
	kept, rejected := DetectCorruption(atLimit, m)
	assert.Empty(t, kept)
	assert.Len(t, rejected, 1)

	above := []storage.CanonicalCycle{
		cycle(1, "MO1", 1, "Sewing", 61),
		cycle(2, "MO1", 1, "Sewing", 61),
		cycle(3, "MO1", 1, "Sewing", 61),
	}
	kept, rejected = DetectCorruption(above, m)
	assert.Len(t, kept, 3)
	assert.Empty(t, rejected)

	m.CorruptionMinGroupSize = 4
	kept, rejected = DetectCorruption(atLimit, m)
	assert.Len(t, kept, 3)
	assert.Empty(t, rejected)
}

func TestAggregateByMO_QuantityCountedOncePerCategory(t *testing.T) {
	created := testNow.AddDate(0, 0, -3)
	orders := map[string]storage.ManufacturingOrder{
		"MO1": order("MO1", 75, "Harness", created),
	}

	cycles := categorized(t,
		cycle(1, "MO1", 1, "Sewing", 1800),
		cycle(2, "MO1", 1, "Sewing", 1800),
		cycle(3, "MO1", 1, "Sewing", 1800),
		cycle(4, "MO1", 1, "Sewing", 1800),
		cycle(5, "MO1", 1, "Laser", 900),
		cycle(6, "MO1", 1, "Laser", 900),
		cycle(7, "MO1", 1, "Packaging", 600),
	)

	aggregates, rejected := AggregateByMO(cycles, orders)
	require.Empty(t, rejected)
	require.Len(t, aggregates, 3)

	var total float64
	categories := make(map[storage.Category]bool)
	for _, a := range aggregates {
		assert.Equal(t, 75.0, a.Quantity)
		total += a.Quantity
		categories[a.Category] = true
	}
	assert.Equal(t, 75.0*float64(len(categories)), total)

	byCategory := make(map[storage.Category]storage.MOAggregate)
	for _, a := range aggregates {
		byCategory[a.Category] = a
	}
	assembly := byCategory[storage.CategoryAssembly]
	assert.Equal(t, int64(7200), assembly.TotalDurationSeconds)
	assert.Equal(t, 4, assembly.CycleCount)
	assert.Equal(t, 2.0, assembly.DurationHours)
	assert.Equal(t, 37.5, assembly.UPH)
	assert.Equal(t, "Harness", assembly.ProductName)
	assert.Equal(t, created, assembly.MOCreatedAt)
}

func TestAggregateByMO_SharedMOCountsQuantityPerOperator(t *testing.T) {
	created := testNow.AddDate(0, 0, -3)
	orders := map[string]storage.ManufacturingOrder{
		"MO1": order("MO1", 60, "Harness", created),
	}

	cycles := categorized(t,
		cycle(1, "MO1", 1, "Sewing", 3600),
		cycle(2, "MO1", 2, "Sewing", 1800),
		cycle(3, "MO1", 2, "Sewing", 1800),
	)

	aggregates, rejected := AggregateByMO(cycles, orders)
	require.Empty(t, rejected)
	require.Len(t, aggregates, 2)

	// each operator is credited with the full MO quantity for the category
	var total float64
	for _, a := range aggregates {
		assert.Equal(t, storage.CategoryAssembly, a.Category)
		assert.Equal(t, 60.0, a.Quantity)
		assert.Equal(t, 60.0, a.UPH)
		total += a.Quantity
	}
	assert.Equal(t, 120.0, total)
	assert.Equal(t, int64(1), aggregates[0].OperatorID)
	assert.Equal(t, int64(2), aggregates[1].OperatorID)
	assert.Equal(t, 2, aggregates[1].CycleCount)
}

func TestAggregateByMO_MissingQuantity(t *testing.T) {
	orders := map[string]storage.ManufacturingOrder{
		"MO-ZERO": order("MO-ZERO", 0, "Harness", testNow),
	}
	cycles := categorized(t,
		cycle(1, "MO-ZERO", 1, "Sewing", 600),
		cycle(2, "MO-GONE", 1, "Sewing", 600),
	)

	aggregates, rejected := AggregateByMO(cycles, orders)

	assert.Empty(t, aggregates)
	require.Len(t, rejected, 2)
	assert.Equal(t, "MO-GONE", rejected[0].MONumber)
	assert.Equal(t, storage.ReasonMissingMOQuantity, rejected[0].Reason)
	assert.Nil(t, rejected[0].MOCreatedAt)
	assert.Equal(t, "MO-ZERO", rejected[1].MONumber)
	assert.Equal(t, storage.ReasonMissingMOQuantity, rejected[1].Reason)
	assert.NotNil(t, rejected[1].MOCreatedAt)
}

func TestFilterOutliers_DurationBoundaryInclusive(t *testing.T) {
	m := DefaultMethodology()
	aggregates := []storage.MOAggregate{
		{MONumber: "ON", Category: storage.CategoryAssembly, TotalDurationSeconds: 300, DurationHours: 300.0 / 3600, Quantity: 5, UPH: 60},
		{MONumber: "UNDER", Category: storage.CategoryAssembly, TotalDurationSeconds: 299, DurationHours: 299.0 / 3600, Quantity: 5, UPH: 60.2},
	}

	kept, rejected := FilterOutliers(aggregates, m)

	require.Len(t, kept, 1)
	assert.Equal(t, "ON", kept[0].MONumber)
	require.Len(t, rejected, 1)
	assert.Equal(t, "UNDER", rejected[0].MONumber)
	assert.Equal(t, storage.ReasonDurationTooShort, rejected[0].Reason)
	assert.InDelta(t, 299.0/3600, rejected[0].Value, 1e-12)
}

func TestFilterOutliers_UphCeilingPerCategory(t *testing.T) {
	m := DefaultMethodology()
	mk := func(mo string, c storage.Category, uph float64) storage.MOAggregate {
		return storage.MOAggregate{MONumber: mo, Category: c, TotalDurationSeconds: 3600, DurationHours: 1, Quantity: uph, UPH: uph}
	}
	aggregates := []storage.MOAggregate{
		mk("A-OK", storage.CategoryAssembly, 100),
		mk("A-HIGH", storage.CategoryAssembly, 101),
		mk("C-OK", storage.CategoryCutting, 450),
		mk("C-HIGH", storage.CategoryCutting, 501),
		mk("P-OK", storage.CategoryPackaging, 300),
		mk("P-HIGH", storage.CategoryPackaging, 350),
	}

	kept, rejected := FilterOutliers(aggregates, m)

	var keptMOs, rejectedMOs []string
	for _, a := range kept {
		keptMOs = append(keptMOs, a.MONumber)
	}
	for _, r := range rejected {
		rejectedMOs = append(rejectedMOs, r.MONumber)
		assert.Equal(t, storage.ReasonUphTooHigh, r.Reason)
		assert.Equal(t, r.Quantity, r.Value)
	}
	assert.Equal(t, []string{"A-OK", "C-OK", "P-OK"}, keptMOs)
	assert.Equal(t, []string{"A-HIGH", "C-HIGH", "P-HIGH"}, rejectedMOs)
}
