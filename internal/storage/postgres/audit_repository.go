package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type auditRepository struct {
	q queryer
}

func (r *auditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	names, err := json.Marshal(nonNil(record.ItemNames))
	if err != nil {
		return fmt.Errorf("marshal audit item names: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO audit_records (order_id, venue_id, action, staff_id, reason, amount, item_names, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, record.OrderID, record.VenueID, string(record.Action), record.StaffID, record.Reason, record.Amount, names, record.Occurred)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", mapPgError(err))
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, orderID string) ([]domain.AuditRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT venue_id, action, staff_id, reason, amount, item_names, occurred_at
		FROM audit_records
		WHERE order_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", mapPgError(err))
	}
	defer rows.Close()

	result := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			rec    = domain.AuditRecord{OrderID: orderID}
			action string
			names  []byte
		)
		if err := rows.Scan(&rec.VenueID, &action, &rec.StaffID, &rec.Reason, &rec.Amount, &names, &rec.Occurred); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Action = domain.AuditAction(action)
		if err := json.Unmarshal(names, &rec.ItemNames); err != nil {
			return nil, fmt.Errorf("decode audit item names: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return result, nil
}

var _ domain.AuditRepository = (*auditRepository)(nil)
