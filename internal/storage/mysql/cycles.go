package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"

	"uph-engine/internal/storage"
)

// ListCycles returns up to limit cycles in the given states with id greater
// than afterID, ordered by id. An empty states slice matches every state.
func (s *Storage) ListCycles(ctx context.Context, states []string, afterID int64, limit int) ([]storage.WorkCycleRecord, error) {
	const op = "storage.mysql.ListCycles"

	query := `SELECT id, workorder_id, mo_number, operator_name, workcenter_name, duration, qty_done, state, created_at
		FROM work_cycles WHERE id > ?`
	args := []interface{}{afterID}

	if len(states) > 0 {
		query += ` AND state IN (` + placeholders(len(states)) + `)`
		for _, st := range states {
			args = append(args, st)
		}
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(op, "query cycles", err)
	}
	defer rows.Close()

	var records []storage.WorkCycleRecord
	for rows.Next() {
		var (
			rec          storage.WorkCycleRecord
			workOrderID  sql.NullInt64
			moNumber     sql.NullString
			operatorName sql.NullString
			workCenter   sql.NullString
			duration     sql.NullString
			qtyDone      sql.NullFloat64
		)

		if err := rows.Scan(&rec.ID, &workOrderID, &moNumber, &operatorName, &workCenter, &duration, &qtyDone, &rec.State, &rec.CreatedAt); err != nil {
			return nil, wrapDBError(op, "scan cycle", err)
		}

		rec.WorkOrderID = workOrderID.Int64
		rec.MONumber = moNumber.String
		rec.OperatorName = operatorName.String
		rec.WorkCenterName = workCenter.String
		rec.Duration = decodeDuration(duration)
		rec.QuantityDone = qtyDone.Float64

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBError(op, "read cycles", err)
	}

	return records, nil
}

// decodeDuration keeps the connector's encoding: JSON numbers and objects
// are decoded, anything else (e.g. "01:30:00") stays a plain string.
func decodeDuration(raw sql.NullString) any {
	if !raw.Valid {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw.String)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw.String
	}

	return v
}
