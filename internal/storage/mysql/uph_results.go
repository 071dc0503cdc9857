package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"uph-engine/internal/storage"
)

var ErrNoPublishedRun = errors.New("no published run")

// PublishSnapshot writes a complete run and removes the rows of previous
// runs in one transaction, so readers see either the old or the new set.
func (s *Storage) PublishSnapshot(ctx context.Context, snap *storage.Snapshot) error {
	const op = "storage.mysql.PublishSnapshot"

	counters, err := json.Marshal(snap.Counters)
	if err != nil {
		return fmt.Errorf("%s: encode counters: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO uph_runs (id, methodology_version, started_at, computed_at, completed_at, cycles_read, counters)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Run.ID, snap.Run.MethodologyVersion, snap.Run.StartedAt, snap.Run.ComputedAt, snap.Run.CompletedAt,
		snap.Run.CyclesRead, string(counters))
	if err != nil {
		return wrapDBError(op, "insert run", err)
	}

	aggStmt, err := tx.PrepareContext(ctx, `INSERT INTO uph_mo_aggregates
		(run_id, operator_id, operator_name, mo_number, category, product_name, mo_created_at,
		 total_duration_seconds, quantity, cycle_count, duration_hours, uph)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrapDBError(op, "prepare aggregates", err)
	}
	defer aggStmt.Close()

	for _, a := range snap.Aggregates {
		_, err := aggStmt.ExecContext(ctx, snap.Run.ID, a.OperatorID, a.OperatorName, a.MONumber, string(a.Category),
			a.ProductName, a.MOCreatedAt, a.TotalDurationSeconds, a.Quantity, a.CycleCount, a.DurationHours, a.UPH)
		if err != nil {
			return wrapDBError(op, fmt.Sprintf("insert aggregate mo=%s operator=%d", a.MONumber, a.OperatorID), err)
		}
	}

	anomalyStmt, err := tx.PrepareContext(ctx, `INSERT INTO uph_anomalies
		(run_id, mo_number, operator_id, operator_name, category, product_name, mo_created_at,
		 reason, rejected_value, duration_seconds, quantity, cycle_count, cycle_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrapDBError(op, "prepare anomalies", err)
	}
	defer anomalyStmt.Close()

	for _, r := range snap.Rejections {
		var createdAt sql.NullTime
		if r.MOCreatedAt != nil {
			createdAt = sql.NullTime{Time: *r.MOCreatedAt, Valid: true}
		}

		var cycleIDs sql.NullString
		if len(r.CycleIDs) > 0 {
			raw, err := json.Marshal(r.CycleIDs)
			if err != nil {
				return fmt.Errorf("%s: encode cycle ids: %w", op, err)
			}
			cycleIDs = sql.NullString{String: string(raw), Valid: true}
		}

		_, err := anomalyStmt.ExecContext(ctx, snap.Run.ID, r.MONumber, r.OperatorID, r.OperatorName, string(r.Category),
			r.ProductName, createdAt, string(r.Reason), r.Value, r.DurationSeconds, r.Quantity, r.CycleCount, cycleIDs)
		if err != nil {
			return wrapDBError(op, fmt.Sprintf("insert anomaly mo=%s reason=%s", r.MONumber, r.Reason), err)
		}
	}

	statStmt, err := tx.PrepareContext(ctx, `INSERT INTO uph_statistics
		(run_id, product_name, category, operator_id, operator_name, window_days, average_uph, mo_count, total_observations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return wrapDBError(op, "prepare statistics", err)
	}
	defer statStmt.Close()

	for _, st := range snap.Statistics {
		_, err := statStmt.ExecContext(ctx, snap.Run.ID, st.ProductName, string(st.Category), st.OperatorID, st.OperatorName,
			st.WindowDays, st.AverageUph, st.MOCount, st.TotalObservations)
		if err != nil {
			return wrapDBError(op, "insert statistic", err)
		}
	}

	for _, table := range []string{"uph_mo_aggregates", "uph_anomalies", "uph_statistics"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id <> ?`, snap.Run.ID); err != nil {
			return wrapDBError(op, "clear previous "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit transaction: %w", op, err)
	}

	return nil
}

// LoadLatestSnapshot reads the last published run back. Statistics are not
// loaded; callers rebuild them from the aggregates.
func (s *Storage) LoadLatestSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	const op = "storage.mysql.LoadLatestSnapshot"

	snap := &storage.Snapshot{Counters: storage.RejectionCounters{}}
	var counters sql.NullString

	err := s.db.QueryRowContext(ctx, `SELECT id, methodology_version, started_at, computed_at, completed_at, cycles_read, counters
		FROM uph_runs ORDER BY computed_at DESC, started_at DESC LIMIT 1`).
		Scan(&snap.Run.ID, &snap.Run.MethodologyVersion, &snap.Run.StartedAt, &snap.Run.ComputedAt, &snap.Run.CompletedAt,
			&snap.Run.CyclesRead, &counters)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoPublishedRun)
		}
		return nil, wrapDBError(op, "query run", err)
	}

	snap.Run.StartedAt = snap.Run.StartedAt.UTC()
	snap.Run.ComputedAt = snap.Run.ComputedAt.UTC()
	snap.Run.CompletedAt = snap.Run.CompletedAt.UTC()

	if counters.Valid && counters.String != "" {
		if err := json.Unmarshal([]byte(counters.String), &snap.Counters); err != nil {
			return nil, fmt.Errorf("%s: decode counters: %w", op, err)
		}
	}

	if snap.Aggregates, err = s.loadAggregates(ctx, snap.Run.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if snap.Rejections, err = s.loadAnomalies(ctx, snap.Run.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}

func (s *Storage) loadAggregates(ctx context.Context, runID string) ([]storage.MOAggregate, error) {
	const op = "storage.mysql.loadAggregates"

	rows, err := s.db.QueryContext(ctx, `SELECT operator_id, operator_name, mo_number, category, product_name, mo_created_at,
			total_duration_seconds, quantity, cycle_count, duration_hours, uph
		FROM uph_mo_aggregates WHERE run_id = ?
		ORDER BY mo_number, operator_id, category`, runID)
	if err != nil {
		return nil, wrapDBError(op, "query aggregates", err)
	}
	defer rows.Close()

	var aggregates []storage.MOAggregate
	for rows.Next() {
		var (
			a        storage.MOAggregate
			category string
		)
		if err := rows.Scan(&a.OperatorID, &a.OperatorName, &a.MONumber, &category, &a.ProductName, &a.MOCreatedAt,
			&a.TotalDurationSeconds, &a.Quantity, &a.CycleCount, &a.DurationHours, &a.UPH); err != nil {
			return nil, wrapDBError(op, "scan aggregate", err)
		}
		a.Category = storage.Category(category)
		a.MOCreatedAt = a.MOCreatedAt.UTC()
		aggregates = append(aggregates, a)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBError(op, "read aggregates", err)
	}

	return aggregates, nil
}

func (s *Storage) loadAnomalies(ctx context.Context, runID string) ([]storage.RejectedAggregate, error) {
	const op = "storage.mysql.loadAnomalies"

	rows, err := s.db.QueryContext(ctx, `SELECT mo_number, operator_id, operator_name, category, product_name, mo_created_at,
			reason, rejected_value, duration_seconds, quantity, cycle_count, cycle_ids
		FROM uph_anomalies WHERE run_id = ?
		ORDER BY mo_number, operator_id, category, reason, rejected_value`, runID)
	if err != nil {
		return nil, wrapDBError(op, "query anomalies", err)
	}
	defer rows.Close()

	var anomalies []storage.RejectedAggregate
	for rows.Next() {
		var (
			r         storage.RejectedAggregate
			category  string
			reason    string
			createdAt sql.NullTime
			cycleIDs  sql.NullString
		)
		if err := rows.Scan(&r.MONumber, &r.OperatorID, &r.OperatorName, &category, &r.ProductName, &createdAt,
			&reason, &r.Value, &r.DurationSeconds, &r.Quantity, &r.CycleCount, &cycleIDs); err != nil {
			return nil, wrapDBError(op, "scan anomaly", err)
		}
		r.Category = storage.Category(category)
		r.Reason = storage.RejectReason(reason)
		if createdAt.Valid {
			t := createdAt.Time.UTC()
			r.MOCreatedAt = &t
		}
		if cycleIDs.Valid && cycleIDs.String != "" {
			if err := json.Unmarshal([]byte(cycleIDs.String), &r.CycleIDs); err != nil {
				return nil, fmt.Errorf("%s: decode cycle ids: %w", op, err)
			}
		}
		anomalies = append(anomalies, r)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBError(op, "read anomalies", err)
	}

	return anomalies, nil
}
