package generate_excel

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"uph-engine/internal/storage"
)

const (
	anomaliesSheet = "Anomalies"
	summarySheet   = "Summary"
)

type AnomalySource interface {
	ListAnomalies(windowDays *int) ([]storage.RejectedAggregate, error)
}

type GenerateExcelService struct {
	source AnomalySource
}

func NewGenerateService(source AnomalySource) *GenerateExcelService {
	return &GenerateExcelService{source: source}
}

var anomalyHeaders = []string{
	"MO", "Operator ID", "Operator", "Category", "Product", "MO created",
	"Reason", "Value", "Duration, h", "Quantity", "Cycles", "Cycle IDs",
}

// GenerateAnomalies renders the rejected aggregates of the published run as
// a review workbook: one row per anomaly plus a per-reason summary sheet.
func (g *GenerateExcelService) GenerateAnomalies(ctx context.Context, windowDays *int) ([]byte, error) {
	const op = "service.generate_excel.GenerateAnomalies"

	anomalies, err := g.source.ListAnomalies(windowDays)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch anomalies: %w", op, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", anomaliesSheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	writeHeader(f, anomaliesSheet, anomalyHeaders, headerStyle)

	for i, a := range anomalies {
		row := i + 2

		created := ""
		if a.MOCreatedAt != nil {
			created = a.MOCreatedAt.Format("2006-01-02")
		}

		values := []any{
			a.MONumber,
			a.OperatorID,
			a.OperatorName,
			string(a.Category),
			a.ProductName,
			created,
			string(a.Reason),
			a.Value,
			float64(a.DurationSeconds) / 3600,
			a.Quantity,
			a.CycleCount,
			joinIDs(a.CycleIDs),
		}
		for col, v := range values {
			if err := f.SetCellValue(anomaliesSheet, cellName(col+1, row), v); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	writeHeader(f, summarySheet, []string{"Reason", "Aggregates"}, headerStyle)
	for i, s := range summarize(anomalies) {
		f.SetCellValue(summarySheet, cellName(1, i+2), string(s.reason))
		f.SetCellValue(summarySheet, cellName(2, i+2), s.count)
	}

	f.SetPanes(anomaliesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(anomaliesSheet, "A", "L", 15)
	f.SetColWidth(summarySheet, "A", "A", 25)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), style)
}

type reasonCount struct {
	reason storage.RejectReason
	count  int
}

func summarize(anomalies []storage.RejectedAggregate) []reasonCount {
	counts := make(map[storage.RejectReason]int)
	for _, a := range anomalies {
		counts[a.Reason]++
	}

	out := make([]reasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, reasonCount{reason: reason, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].reason < out[j].reason })
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
