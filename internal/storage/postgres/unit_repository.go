package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const unitColumns = `id, code, venue_id, organization_id, category, price, status,
	order_item_id, sold_at, created_at, updated_at`

type unitRepository struct {
	q queryer
	// lock добавляет FOR UPDATE; в read-only транзакции PostgreSQL запрещает блокировки строк.
	lock bool
}

// selectUnit собирает выборку единицы по условию where.
func selectUnit(where string, lock bool) string {
	query := `SELECT ` + unitColumns + ` FROM serialized_units WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	return query
}

// FindAtVenue в пишущей транзакции блокирует строку единицы до её конца.
func (r *unitRepository) FindAtVenue(ctx context.Context, venueID, code string) (domain.SerializedUnit, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, selectUnit(`venue_id = $1 AND code = $2`, r.lock), venueID, code))
}

func (r *unitRepository) FindShared(ctx context.Context, organizationID, code string) (domain.SerializedUnit, error) {
	return r.scanOne(r.q.QueryRowContext(ctx,
		selectUnit(`venue_id IS NULL AND organization_id = $1 AND code = $2`, r.lock), organizationID, code))
}

func (r *unitRepository) Get(ctx context.Context, id string) (domain.SerializedUnit, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, selectUnit(`id = $1`, r.lock), id))
}

func (r *unitRepository) Create(ctx context.Context, u domain.SerializedUnit) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO serialized_units (`+unitColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		u.ID, u.Code, nullString(u.VenueID), u.OrganizationID, u.Category, u.Price, string(u.Status),
		nullString(u.OrderItemID), u.SoldAt, u.CreatedAt, u.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert serialized unit: %w", mapPgError(err))
	}
	return nil
}

func (r *unitRepository) Update(ctx context.Context, u domain.SerializedUnit) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE serialized_units
		SET category = $2,
		    price = $3,
		    status = $4,
		    order_item_id = $5,
		    sold_at = $6,
		    updated_at = $7
		WHERE id = $1
	`, u.ID, u.Category, u.Price, string(u.Status), nullString(u.OrderItemID), u.SoldAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update serialized unit: %w", mapPgError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrUnitNotFound
	}
	return nil
}

func (r *unitRepository) scanOne(row *sql.Row) (domain.SerializedUnit, error) {
	var (
		u           domain.SerializedUnit
		venueID     sql.NullString
		orderItemID sql.NullString
		soldAt      sql.NullTime
		status      string
	)
	err := row.Scan(
		&u.ID, &u.Code, &venueID, &u.OrganizationID, &u.Category, &u.Price, &status,
		&orderItemID, &soldAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SerializedUnit{}, domain.ErrUnitNotFound
		}
		return domain.SerializedUnit{}, fmt.Errorf("select serialized unit: %w", mapPgError(err))
	}
	u.VenueID = venueID.String
	u.OrderItemID = orderItemID.String
	u.Status = domain.UnitStatus(status)
	if soldAt.Valid {
		ts := soldAt.Time
		u.SoldAt = &ts
	}
	return u, nil
}

var _ domain.UnitRepository = (*unitRepository)(nil)
