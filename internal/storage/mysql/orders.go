package mysql

import (
	"context"
	"database/sql"
	"strings"

	"uph-engine/internal/storage"
)

const lookupChunk = 500

// GetOrders looks up MOs by number. Unknown numbers are absent from the map.
func (s *Storage) GetOrders(ctx context.Context, moNumbers []string) (map[string]storage.ManufacturingOrder, error) {
	const op = "storage.mysql.GetOrders"

	orders := make(map[string]storage.ManufacturingOrder, len(moNumbers))

	for start := 0; start < len(moNumbers); start += lookupChunk {
		end := min(start+lookupChunk, len(moNumbers))
		chunk := moNumbers[start:end]

		query := `SELECT id, mo_number, quantity, product_name, routing_name, created_at
			FROM manufacturing_orders WHERE mo_number IN (` + placeholders(len(chunk)) + `)`

		args := make([]interface{}, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, wrapDBError(op, "query orders", err)
		}

		for rows.Next() {
			var (
				mo       storage.ManufacturingOrder
				quantity sql.NullFloat64
				product  sql.NullString
				routing  sql.NullString
			)
			if err := rows.Scan(&mo.ID, &mo.MONumber, &quantity, &product, &routing, &mo.CreatedAt); err != nil {
				rows.Close()
				return nil, wrapDBError(op, "scan order", err)
			}
			mo.Quantity = quantity.Float64
			mo.ProductName = product.String
			mo.RoutingName = routing.String

			orders[strings.TrimSpace(mo.MONumber)] = mo
		}

		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, wrapDBError(op, "read orders", err)
		}
	}

	return orders, nil
}

// ResolveOperators maps display names to registered operators.
func (s *Storage) ResolveOperators(ctx context.Context, names []string) (map[string]storage.Operator, error) {
	const op = "storage.mysql.ResolveOperators"

	operators := make(map[string]storage.Operator, len(names))

	for start := 0; start < len(names); start += lookupChunk {
		end := min(start+lookupChunk, len(names))
		chunk := names[start:end]

		args := make([]interface{}, len(chunk))
		requested := make(map[string][]string, len(chunk))
		for i, n := range chunk {
			args[i] = n
			key := foldName(n)
			requested[key] = append(requested[key], n)
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT id, name FROM operators WHERE name IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, wrapDBError(op, "query operators", err)
		}

		for rows.Next() {
			var o storage.Operator
			if err := rows.Scan(&o.ID, &o.Name); err != nil {
				rows.Close()
				return nil, wrapDBError(op, "scan operator", err)
			}
			// the collation may match case- or pad-insensitively, results are
			// keyed by the name that was asked for
			for _, name := range requested[foldName(o.Name)] {
				operators[name] = o
			}
		}

		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, wrapDBError(op, "read operators", err)
		}
	}

	return operators, nil
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
