package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

type catalogRepository struct {
	q queryer
}

func (r *catalogRepository) Venue(ctx context.Context, venueID string) (domain.Venue, error) {
	var v domain.Venue
	err := r.q.QueryRowContext(ctx, `
		SELECT id, organization_id, name FROM venues WHERE id = $1
	`, venueID).Scan(&v.ID, &v.OrganizationID, &v.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Venue{}, domain.ErrVenueNotFound
		}
		return domain.Venue{}, fmt.Errorf("select venue: %w", mapPgError(err))
	}
	return v, nil
}

func (r *catalogRepository) Product(ctx context.Context, venueID, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, venue_id, name, code, category, price, active
		FROM products
		WHERE id = $1 AND venue_id = $2 AND active
	`, productID, venueID).Scan(&p.ID, &p.VenueID, &p.Name, &p.Code, &p.Category, &p.Price, &p.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", mapPgError(err))
	}
	return p, nil
}

func (r *catalogRepository) Modifiers(ctx context.Context, venueID string, ids []string) ([]domain.Modifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, venue_id, name, price
		FROM modifiers
		WHERE venue_id = $1 AND id = ANY($2)
	`, venueID, ids)
	if err != nil {
		return nil, fmt.Errorf("select modifiers: %w", mapPgError(err))
	}
	defer rows.Close()

	byID := make(map[string]domain.Modifier, len(ids))
	for rows.Next() {
		var m domain.Modifier
		if err := rows.Scan(&m.ID, &m.VenueID, &m.Name, &m.Price); err != nil {
			return nil, fmt.Errorf("scan modifier: %w", err)
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modifiers: %w", err)
	}

	result := make([]domain.Modifier, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, domain.ErrModifierNotFound
		}
		result = append(result, m)
	}
	return result, nil
}

type customerRepository struct {
	q queryer
}

func (r *customerRepository) Create(ctx context.Context, c domain.Customer) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, venue_id, name, phone, email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, c.ID, c.VenueID, c.Name, c.Phone, c.Email, c.CreatedAt); err != nil {
		return fmt.Errorf("insert customer: %w", mapPgError(err))
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, venueID, customerID string) (domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, venue_id, name, phone, email, created_at
		FROM customers
		WHERE id = $1 AND venue_id = $2
	`, customerID, venueID).Scan(&c.ID, &c.VenueID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", mapPgError(err))
	}
	return c, nil
}

var (
	_ domain.CatalogRepository  = (*catalogRepository)(nil)
	_ domain.CustomerRepository = (*customerRepository)(nil)
)
