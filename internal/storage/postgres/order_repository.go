package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type orderRepository struct {
	q queryer
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (
			id, venue_id, version, status, payment_status,
			subtotal, discount_amount, tax_amount, total, paid_amount, remaining_balance,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		order.ID, order.VenueID, order.Version, string(order.Status), string(order.PaymentStatus),
		order.Subtotal, order.DiscountAmount, order.TaxAmount, order.Total, order.PaidAmount, order.RemainingBalance,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapPgError(err))
	}

	if err := r.writeChildren(ctx, order); err != nil {
		return err
	}
	return r.insertPayments(ctx, order)
}

func (r *orderRepository) Get(ctx context.Context, venueID, orderID string) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentStatus string
	)

	err := r.q.QueryRowContext(ctx, `
		SELECT id, venue_id, version, status, payment_status,
		       subtotal, discount_amount, tax_amount, total, paid_amount, remaining_balance,
		       created_at, updated_at
		FROM orders
		WHERE id = $1 AND venue_id = $2
	`, orderID, venueID).Scan(
		&order.ID, &order.VenueID, &order.Version, &status, &paymentStatus,
		&order.Subtotal, &order.DiscountAmount, &order.TaxAmount, &order.Total, &order.PaidAmount, &order.RemainingBalance,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", mapPgError(err))
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	if order.Items, err = r.loadItems(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Discounts, err = r.loadDiscounts(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Customers, err = r.loadCustomers(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}
	if order.Payments, err = r.loadPayments(ctx, order.ID); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (r *orderRepository) FindByItem(ctx context.Context, itemID string) (domain.Order, error) {
	var venueID, orderID string
	err := r.q.QueryRowContext(ctx, `
		SELECT o.venue_id, o.id
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE i.id = $1
	`, itemID).Scan(&venueID, &orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order by item: %w", mapPgError(err))
	}
	return r.Get(ctx, venueID, orderID)
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    subtotal = $3,
		    discount_amount = $4,
		    tax_amount = $5,
		    total = $6,
		    paid_amount = $7,
		    remaining_balance = $8,
		    version = version + 1,
		    updated_at = $9
		WHERE id = $10
		  AND version = $11
	`,
		string(order.Status), string(order.PaymentStatus),
		order.Subtotal, order.DiscountAmount, order.TaxAmount, order.Total, order.PaidAmount, order.RemainingBalance,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", mapPgError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	for _, stmt := range []string{
		`DELETE FROM order_items WHERE order_id = $1`,
		`DELETE FROM order_discounts WHERE order_id = $1`,
	} {
		if _, err := r.q.ExecContext(ctx, stmt, order.ID); err != nil {
			return fmt.Errorf("reset order children: %w", mapPgError(err))
		}
	}
	if err := r.writeChildren(ctx, order); err != nil {
		return err
	}
	return r.insertPayments(ctx, order)
}

func (r *orderRepository) AddCustomer(ctx context.Context, link domain.OrderCustomer) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO order_customers (order_id, customer_id, is_primary, added_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id, customer_id) DO NOTHING
	`, link.OrderID, link.CustomerID, link.IsPrimary, link.AddedAt)
	if err != nil {
		return fmt.Errorf("insert order customer: %w", mapPgError(err))
	}
	return nil
}

func (r *orderRepository) RemoveCustomer(ctx context.Context, orderID, customerID string) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM order_customers WHERE order_id = $1 AND customer_id = $2
	`, orderID, customerID)
	if err != nil {
		return fmt.Errorf("delete order customer: %w", mapPgError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

func (r *orderRepository) SetPrimary(ctx context.Context, orderID, customerID string) error {
	// Сначала снимаем флаг, иначе частичный уникальный индекс не даст назначить нового.
	if _, err := r.q.ExecContext(ctx, `
		UPDATE order_customers SET is_primary = FALSE
		WHERE order_id = $1 AND customer_id <> $2 AND is_primary
	`, orderID, customerID); err != nil {
		return fmt.Errorf("clear primary customer: %w", mapPgError(err))
	}

	res, err := r.q.ExecContext(ctx, `
		UPDATE order_customers SET is_primary = TRUE
		WHERE order_id = $1 AND customer_id = $2
	`, orderID, customerID)
	if err != nil {
		return fmt.Errorf("set primary customer: %w", mapPgError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

func (r *orderRepository) ClearCustomers(ctx context.Context, orderID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM order_customers WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("clear order customers: %w", mapPgError(err))
	}
	return nil
}

func (r *orderRepository) writeChildren(ctx context.Context, order domain.Order) error {
	for pos, item := range order.Items {
		modifiers, err := json.Marshal(nonNil(item.Modifiers))
		if err != nil {
			return fmt.Errorf("marshal item modifiers: %w", err)
		}
		paymentIDs, err := json.Marshal(nonNil(item.PaymentIDs))
		if err != nil {
			return fmt.Errorf("marshal item payments: %w", err)
		}

		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, position, product_id, name, code, category,
				quantity, unit_price, modifiers, total, notes, sent_to_prep_at,
				serialized_unit_id, comped, payment_ids, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`,
			item.ID, order.ID, pos, nullString(item.ProductID), item.Snapshot.Name, item.Snapshot.Code, item.Snapshot.Category,
			item.Quantity, item.UnitPrice, modifiers, item.Total, item.Notes, item.SentToPrepAt,
			nullString(item.SerializedUnitID), item.Comped, paymentIDs, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", mapPgError(err))
		}
	}

	for _, d := range order.Discounts {
		itemIDs, err := json.Marshal(nonNil(d.ItemIDs))
		if err != nil {
			return fmt.Errorf("marshal discount scope: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_discounts (
				id, order_id, type, value, item_ids, amount, code, applied_by, reason, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			d.ID, order.ID, string(d.Type), d.Value, itemIDs, d.Amount, d.Code, d.AppliedBy, d.Reason, d.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order discount: %w", mapPgError(err))
		}
	}
	return nil
}

// insertPayments дописывает новые платежи; существующие не меняются.
func (r *orderRepository) insertPayments(ctx context.Context, order domain.Order) error {
	for _, p := range order.Payments {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO order_payments (id, order_id, amount, reference, staff_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, order.ID, p.Amount, p.Reference, p.StaffID, p.CreatedAt); err != nil {
			return fmt.Errorf("insert order payment: %w", mapPgError(err))
		}
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, product_id, name, code, category, quantity, unit_price, modifiers,
		       total, notes, sent_to_prep_at, serialized_unit_id, comped, payment_ids, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", mapPgError(err))
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item       domain.OrderItem
			productID  sql.NullString
			unitID     sql.NullString
			sentAt     sql.NullTime
			modifiers  []byte
			paymentIDs []byte
		)
		if err := rows.Scan(
			&item.ID, &productID, &item.Snapshot.Name, &item.Snapshot.Code, &item.Snapshot.Category,
			&item.Quantity, &item.UnitPrice, &modifiers, &item.Total, &item.Notes, &sentAt,
			&unitID, &item.Comped, &paymentIDs, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = orderID
		item.ProductID = productID.String
		item.SerializedUnitID = unitID.String
		if sentAt.Valid {
			ts := sentAt.Time
			item.SentToPrepAt = &ts
		}
		if err := json.Unmarshal(modifiers, &item.Modifiers); err != nil {
			return nil, fmt.Errorf("decode item modifiers: %w", err)
		}
		if err := json.Unmarshal(paymentIDs, &item.PaymentIDs); err != nil {
			return nil, fmt.Errorf("decode item payments: %w", err)
		}
		if len(item.Modifiers) == 0 {
			item.Modifiers = nil
		}
		if len(item.PaymentIDs) == 0 {
			item.PaymentIDs = nil
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) loadDiscounts(ctx context.Context, orderID string) ([]domain.OrderDiscount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, type, value, item_ids, amount, code, applied_by, reason, created_at
		FROM order_discounts
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order discounts: %w", mapPgError(err))
	}
	defer rows.Close()

	var discounts []domain.OrderDiscount
	for rows.Next() {
		var (
			d       domain.OrderDiscount
			dtype   string
			itemIDs []byte
		)
		if err := rows.Scan(&d.ID, &dtype, &d.Value, &itemIDs, &d.Amount, &d.Code, &d.AppliedBy, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order discount: %w", err)
		}
		d.Type = domain.DiscountType(dtype)
		if err := json.Unmarshal(itemIDs, &d.ItemIDs); err != nil {
			return nil, fmt.Errorf("decode discount scope: %w", err)
		}
		if len(d.ItemIDs) == 0 {
			d.ItemIDs = nil
		}
		discounts = append(discounts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order discounts: %w", err)
	}
	return discounts, nil
}

func (r *orderRepository) loadCustomers(ctx context.Context, orderID string) ([]domain.OrderCustomer, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT customer_id, is_primary, added_at
		FROM order_customers
		WHERE order_id = $1
		ORDER BY added_at ASC, customer_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order customers: %w", mapPgError(err))
	}
	defer rows.Close()

	var customers []domain.OrderCustomer
	for rows.Next() {
		c := domain.OrderCustomer{OrderID: orderID}
		if err := rows.Scan(&c.CustomerID, &c.IsPrimary, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("scan order customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order customers: %w", err)
	}
	return customers, nil
}

func (r *orderRepository) loadPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, amount, reference, staff_id, created_at
		FROM order_payments
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order payments: %w", mapPgError(err))
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p := domain.Payment{OrderID: orderID}
		if err := rows.Scan(&p.ID, &p.Amount, &p.Reference, &p.StaffID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order payments: %w", err)
	}
	return payments, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", mapPgError(err))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ domain.OrderRepository = (*orderRepository)(nil)
