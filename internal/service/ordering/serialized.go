package ordering

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// SerializedSaleInput - продажа единицы по коду на кассе.
type SerializedSaleInput struct {
	Code string
	// Category нужна только для регистрации неизвестного кода.
	Category string
	// Price переопределяет цену единицы, если задана.
	Price   decimal.NullDecimal
	StaffID string
}

// BulkImportInput - партия кодов одной категории.
type BulkImportInput struct {
	Category string
	Price    decimal.Decimal
	Codes    []string
	// Shared кладёт единицы в общий пул организации вместо площадки.
	Shared bool
}

// AttachSerializedUnit продаёт серийную единицу в существующий заказ.
// Неизвестный код регистрируется на площадке, если передана категория.
func (s *Service) AttachSerializedUnit(ctx context.Context, venueID, orderID string, expectedVersion int64, in SerializedSaleInput) (domain.Order, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return domain.Order{}, domain.ErrCodeRequired
	}

	return s.mutate(ctx, "attach_serialized_unit", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		unit, registered, err := s.resolveUnit(ctx, tx, venueID, code, in)
		if err != nil {
			return effect{}, err
		}
		if unit.Status == domain.UnitStatusSold {
			return effect{}, domain.ErrUnitAlreadySold
		}

		now := s.clock.Now()
		line := s.serializedLine(order.ID, unit, in.Price, now)
		order.Items = append(order.Items, line)

		unit.OrderItemID = line.ID
		if err := unit.Transition(domain.UnitStatusSold, now); err != nil {
			return effect{}, err
		}
		if err := tx.Units().Update(ctx, unit); err != nil {
			return effect{}, err
		}

		eff := effect{change: domain.ChangeSerializedAdded, affected: []string{line.ID}, unitsSold: 1}
		if registered {
			eff.unitsRegistered = 1
		}
		return eff, nil
	})
}

// QuickSale создаёт новый заказ из одной серийной единицы. Единица остаётся
// AVAILABLE до полной оплаты заказа.
func (s *Service) QuickSale(ctx context.Context, venueID string, in SerializedSaleInput) (order domain.Order, err error) {
	done := s.observe("quick_sale")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.Order{}, domain.ErrVenueRequired
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return domain.Order{}, domain.ErrCodeRequired
	}

	var registered bool
	err = s.store.WithinTx(ctx, domain.TxOptions{}, func(ctx context.Context, tx domain.Tx) error {
		var unit domain.SerializedUnit
		var err error
		unit, registered, err = s.resolveUnit(ctx, tx, venueID, code, in)
		if err != nil {
			return err
		}
		if unit.Status != domain.UnitStatusAvailable {
			if unit.Status == domain.UnitStatusSold {
				return domain.ErrUnitAlreadySold
			}
			return domain.ErrInventoryUnavailable
		}

		now := s.clock.Now()
		order = domain.NewOrder(s.newID(), venueID, now)
		order.Items = []domain.OrderItem{s.serializedLine(order.ID, unit, in.Price, now)}
		domain.Recalculate(&order)
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		s.logFailure("quick_sale", venueID, "", err)
		return domain.Order{}, err
	}

	eff := effect{change: domain.ChangeOrderCreated, affected: []string{order.Items[0].ID}}
	if registered {
		eff.unitsRegistered = 1
	}
	s.afterCommit(ctx, order, eff)
	return order, nil
}

// resolveUnit ищет код на площадке, затем в общем пуле организации.
// Отсутствующий код регистрируется как единица площадки.
func (s *Service) resolveUnit(ctx context.Context, tx domain.Tx, venueID, code string, in SerializedSaleInput) (domain.SerializedUnit, bool, error) {
	venue, err := tx.Catalog().Venue(ctx, venueID)
	if err != nil {
		return domain.SerializedUnit{}, false, err
	}

	unit, err := findUnit(ctx, tx, venue, code)
	if err == nil {
		return unit, false, nil
	}
	if !errors.Is(err, domain.ErrUnitNotFound) {
		return domain.SerializedUnit{}, false, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return domain.SerializedUnit{}, false, domain.ErrCategoryRequired
	}
	price := decimal.Zero
	if in.Price.Valid {
		if in.Price.Decimal.IsNegative() {
			return domain.SerializedUnit{}, false, domain.ErrPriceInvalid
		}
		price = in.Price.Decimal
	}

	now := s.clock.Now()
	unit = domain.SerializedUnit{
		ID:             s.newID(),
		Code:           code,
		VenueID:        venue.ID,
		OrganizationID: venue.OrganizationID,
		Category:       category,
		Price:          price,
		Status:         domain.UnitStatusAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Units().Create(ctx, unit); err != nil {
		return domain.SerializedUnit{}, false, err
	}

	s.logger.WithFields(log.Fields{
		"venue_id": venueID,
		"unit_id":  unit.ID,
		"category": category,
	}).Info("serialized unit registered at point of sale")
	return unit, true, nil
}

func findUnit(ctx context.Context, tx domain.Tx, venue domain.Venue, code string) (domain.SerializedUnit, error) {
	unit, err := tx.Units().FindAtVenue(ctx, venue.ID, code)
	if err == nil || !errors.Is(err, domain.ErrUnitNotFound) || venue.OrganizationID == "" {
		return unit, err
	}
	return tx.Units().FindShared(ctx, venue.OrganizationID, code)
}

func (s *Service) serializedLine(orderID string, unit domain.SerializedUnit, override decimal.NullDecimal, now time.Time) domain.OrderItem {
	price := unit.Price
	if override.Valid {
		price = override.Decimal
	}
	return domain.OrderItem{
		ID:      s.newID(),
		OrderID: orderID,
		Snapshot: domain.ItemSnapshot{
			Name:     unit.Code,
			Code:     unit.Code,
			Category: unit.Category,
		},
		Quantity:         1,
		UnitPrice:        price,
		SerializedUnitID: unit.ID,
		CreatedAt:        now,
	}
}

// LookupSerial сообщает статус кода для кассира.
func (s *Service) LookupSerial(ctx context.Context, venueID, code string) (domain.SerialLookupStatus, domain.SerializedUnit, error) {
	if strings.TrimSpace(venueID) == "" {
		return "", domain.SerializedUnit{}, domain.ErrVenueRequired
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", domain.SerializedUnit{}, domain.ErrCodeRequired
	}

	var unit domain.SerializedUnit
	var status domain.SerialLookupStatus
	err := s.store.WithinTx(ctx, domain.TxOptions{ReadOnly: true}, func(ctx context.Context, tx domain.Tx) error {
		venue, err := tx.Catalog().Venue(ctx, venueID)
		if err != nil {
			return err
		}
		unit, err = findUnit(ctx, tx, venue, code)
		switch {
		case errors.Is(err, domain.ErrUnitNotFound):
			status = domain.SerialUnregistered
			return nil
		case err != nil:
			return err
		}
		switch unit.Status {
		case domain.UnitStatusAvailable:
			status = domain.SerialAvailable
		case domain.UnitStatusSold:
			status = domain.SerialSold
		default:
			status = domain.SerialUnavailable
		}
		return nil
	})
	if err != nil {
		return "", domain.SerializedUnit{}, err
	}
	return status, unit, nil
}

// BulkImportUnits регистрирует партию кодов. Каждый код сохраняется в своей
// транзакции: дубликаты попадают в отчёт и не отменяют остальные.
func (s *Service) BulkImportUnits(ctx context.Context, venueID string, in BulkImportInput) (result domain.BulkImportResult, err error) {
	done := s.observe("bulk_import_units")
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.BulkImportResult{}, domain.ErrVenueRequired
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return domain.BulkImportResult{}, domain.ErrCategoryRequired
	}
	if in.Price.IsNegative() {
		return domain.BulkImportResult{}, domain.ErrPriceInvalid
	}

	var venue domain.Venue
	err = s.store.WithinTx(ctx, domain.TxOptions{ReadOnly: true}, func(ctx context.Context, tx domain.Tx) error {
		var err error
		venue, err = tx.Catalog().Venue(ctx, venueID)
		return err
	})
	if err != nil {
		return domain.BulkImportResult{}, err
	}

	seen := make(map[string]struct{}, len(in.Codes))
	for _, raw := range in.Codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			result.Duplicates = append(result.Duplicates, code)
			continue
		}
		seen[code] = struct{}{}

		now := s.clock.Now()
		unit := domain.SerializedUnit{
			ID:             s.newID(),
			Code:           code,
			VenueID:        venue.ID,
			OrganizationID: venue.OrganizationID,
			Category:       category,
			Price:          in.Price,
			Status:         domain.UnitStatusAvailable,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if in.Shared {
			unit.VenueID = ""
		}

		err := s.store.WithinTx(ctx, domain.TxOptions{}, func(ctx context.Context, tx domain.Tx) error {
			return tx.Units().Create(ctx, unit)
		})
		switch {
		case errors.Is(err, domain.ErrDuplicateCode):
			result.Duplicates = append(result.Duplicates, code)
		case err != nil:
			s.logFailure("bulk_import_units", venueID, "", err)
			return result, err
		default:
			result.Created++
		}
	}

	s.metrics.RecordUnitsRegistered(result.Created)
	s.logger.WithFields(log.Fields{
		"venue_id":   venueID,
		"category":   category,
		"created":    result.Created,
		"duplicates": len(result.Duplicates),
	}).Info("serialized units imported")
	return result, nil
}

// ReturnUnit принимает проданную единицу обратно. restock сразу возвращает её в продажу.
func (s *Service) ReturnUnit(ctx context.Context, venueID, code string, restock bool) (domain.SerializedUnit, error) {
	return s.transitionUnit(ctx, "return_unit", venueID, code, func(unit *domain.SerializedUnit, now time.Time) error {
		if err := unit.Transition(domain.UnitStatusReturned, now); err != nil {
			return err
		}
		if restock {
			return unit.Transition(domain.UnitStatusAvailable, now)
		}
		return nil
	})
}

// MarkUnitDamaged списывает единицу как повреждённую.
func (s *Service) MarkUnitDamaged(ctx context.Context, venueID, code string) (domain.SerializedUnit, error) {
	return s.transitionUnit(ctx, "mark_unit_damaged", venueID, code, func(unit *domain.SerializedUnit, now time.Time) error {
		return unit.Transition(domain.UnitStatusDamaged, now)
	})
}

func (s *Service) transitionUnit(ctx context.Context, operation, venueID, code string, fn func(*domain.SerializedUnit, time.Time) error) (unit domain.SerializedUnit, err error) {
	done := s.observe(operation)
	defer func() { done(err) }()

	if strings.TrimSpace(venueID) == "" {
		return domain.SerializedUnit{}, domain.ErrVenueRequired
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.SerializedUnit{}, domain.ErrCodeRequired
	}

	err = s.store.WithinTx(ctx, domain.TxOptions{}, func(ctx context.Context, tx domain.Tx) error {
		venue, err := tx.Catalog().Venue(ctx, venueID)
		if err != nil {
			return err
		}
		unit, err = findUnit(ctx, tx, venue, code)
		if err != nil {
			return err
		}
		if err := ensureUnitReleasable(ctx, tx, unit); err != nil {
			return err
		}
		if err := fn(&unit, s.clock.Now()); err != nil {
			return err
		}
		return tx.Units().Update(ctx, unit)
	})
	if err != nil {
		s.logFailure(operation, venueID, "", err)
		return domain.SerializedUnit{}, err
	}
	return unit, nil
}

// ensureUnitReleasable не даёт вернуть или списать единицу, пока её позиция
// живёт в неоплаченном заказе. Такую единицу освобождает VoidItems или RemoveItem.
func ensureUnitReleasable(ctx context.Context, tx domain.Tx, unit domain.SerializedUnit) error {
	if unit.Status != domain.UnitStatusSold || unit.OrderItemID == "" {
		return nil
	}
	order, err := tx.Orders().FindByItem(ctx, unit.OrderItemID)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return nil
	case err != nil:
		return err
	}
	if order.Status == domain.OrderStatusCompleted || order.PaymentStatus == domain.PaymentStatusPaid {
		return nil
	}
	return domain.ErrUnitInOpenOrder
}
