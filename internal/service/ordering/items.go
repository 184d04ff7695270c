package ordering

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// AddItemInput - запрошенная позиция.
type AddItemInput struct {
	ProductID   string
	ModifierIDs []string
	Quantity    int32
	// Notes заменяет заметку существующей строки, если не пусто.
	Notes string
}

// DiscountInput - параметры скидки.
type DiscountInput struct {
	Type  domain.DiscountType
	Value decimal.Decimal
	// ItemIDs ограничивает скидку позициями; пусто - на весь заказ.
	ItemIDs []string
	Code    string
	StaffID string
	Reason  string
}

// AddItems добавляет позиции. Совпадающая активная строка (тот же товар и тот же
// набор модификаторов) увеличивает количество вместо создания дубликата.
func (s *Service) AddItems(ctx context.Context, venueID, orderID string, expectedVersion int64, items []AddItemInput) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for _, in := range items {
		if in.Quantity <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
		if strings.TrimSpace(in.ProductID) == "" {
			return domain.Order{}, domain.ErrProductNotFound
		}
	}

	return s.mutate(ctx, "add_items", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		now := s.clock.Now()
		affected := make([]string, 0, len(items))
		for _, in := range items {
			product, err := tx.Catalog().Product(ctx, order.VenueID, in.ProductID)
			if err != nil {
				return effect{}, err
			}
			modifiers, err := tx.Catalog().Modifiers(ctx, order.VenueID, in.ModifierIDs)
			if err != nil {
				return effect{}, err
			}

			applied := make([]domain.ItemModifier, 0, len(modifiers))
			for _, m := range modifiers {
				applied = append(applied, domain.ItemModifier{ModifierID: m.ID, Name: m.Name, Price: m.Price})
			}
			slices.SortFunc(applied, func(a, b domain.ItemModifier) int { return strings.Compare(a.ModifierID, b.ModifierID) })

			candidate := domain.OrderItem{ProductID: product.ID, Modifiers: applied}
			if idx := findUpsertTarget(order, candidate); idx >= 0 {
				line := &order.Items[idx]
				line.Quantity += in.Quantity
				if in.Notes != "" {
					line.Notes = in.Notes
				}
				affected = append(affected, line.ID)
				continue
			}

			if len(applied) == 0 {
				applied = nil
			}
			line := domain.OrderItem{
				ID:        s.newID(),
				OrderID:   order.ID,
				ProductID: product.ID,
				Snapshot: domain.ItemSnapshot{
					Name:     product.Name,
					Code:     product.Code,
					Category: product.Category,
				},
				Quantity:  in.Quantity,
				UnitPrice: product.Price,
				Modifiers: applied,
				Notes:     in.Notes,
				CreatedAt: now,
			}
			order.Items = append(order.Items, line)
			affected = append(affected, line.ID)
		}

		return effect{change: domain.ChangeItemsAdded, affected: affected}, nil
	})
}

// findUpsertTarget ищет активную строку с тем же товаром и набором модификаторов.
// Списанные и уже отправленные на приготовление строки не считаются активными.
func findUpsertTarget(order *domain.Order, candidate domain.OrderItem) int {
	key := candidate.ModifierKey()
	for i, item := range order.Items {
		if item.ProductID == "" || item.ProductID != candidate.ProductID {
			continue
		}
		if item.Comped || item.SentToPrepAt != nil || item.SerializedUnitID != "" {
			continue
		}
		if slices.Equal(item.ModifierKey(), key) {
			return i
		}
	}
	return -1
}

// RemoveItem удаляет одну строку вместе с её модификаторами.
func (s *Service) RemoveItem(ctx context.Context, venueID, orderID string, expectedVersion int64, itemID string) (domain.Order, error) {
	return s.mutate(ctx, "remove_item", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		idx := order.ItemIndex(itemID)
		if idx < 0 {
			return effect{}, domain.ErrItemNotFound
		}
		if err := s.releaseUnit(ctx, tx, order.Items[idx]); err != nil {
			return effect{}, err
		}
		order.Items = slices.Delete(order.Items, idx, idx+1)

		return effect{change: domain.ChangeItemRemoved, affected: []string{itemID}}, nil
	})
}

// VoidItems удаляет строки как "никогда не пробитые" с обязательной причиной.
// Если после этого заказ пуст, он отменяется и теряет всех клиентов.
func (s *Service) VoidItems(ctx context.Context, venueID, orderID string, expectedVersion int64, itemIDs []string, staffID, reason string) (domain.Order, error) {
	if strings.TrimSpace(staffID) == "" {
		return domain.Order{}, domain.ErrStaffRequired
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Order{}, domain.ErrReasonRequired
	}

	return s.mutate(ctx, "void_items", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		matched := matchItems(order, itemIDs)
		if len(matched) == 0 {
			return effect{}, domain.ErrNoItemsMatched
		}

		now := s.clock.Now()
		amount := decimal.Zero
		names := make([]string, 0, len(matched))
		affected := make([]string, 0, len(matched))
		for _, idx := range matched {
			item := order.Items[idx]
			if err := s.releaseUnit(ctx, tx, item); err != nil {
				return effect{}, err
			}
			amount = amount.Add(item.LineTotal())
			names = append(names, item.Snapshot.Name)
			affected = append(affected, item.ID)
		}
		order.Items = slices.DeleteFunc(order.Items, func(item domain.OrderItem) bool {
			return slices.Contains(affected, item.ID)
		})

		if err := tx.Audit().Append(ctx, domain.AuditRecord{
			OrderID:   order.ID,
			VenueID:   order.VenueID,
			Action:    domain.AuditVoid,
			StaffID:   staffID,
			Reason:    reason,
			Amount:    amount,
			ItemNames: names,
			Occurred:  now,
		}); err != nil {
			return effect{}, err
		}

		if len(order.Items) > 0 {
			return effect{change: domain.ChangeItemsVoided, affected: affected}, nil
		}

		// Пустой заказ не может оставаться дебиторской задолженностью клиента.
		order.Status = domain.OrderStatusCancelled
		if err := tx.Orders().ClearCustomers(ctx, order.ID); err != nil {
			return effect{}, err
		}
		order.Customers = nil
		if err := tx.Audit().Append(ctx, domain.AuditRecord{
			OrderID:  order.ID,
			VenueID:  order.VenueID,
			Action:   domain.AuditCancel,
			StaffID:  staffID,
			Reason:   reason,
			Occurred: now,
		}); err != nil {
			return effect{}, err
		}

		return effect{change: domain.ChangeOrderCancelled, affected: affected}, nil
	})
}

// CompItems списывает стоимость строк, сохраняя их в заказе.
func (s *Service) CompItems(ctx context.Context, venueID, orderID string, expectedVersion int64, itemIDs []string, staffID, reason string) (domain.Order, error) {
	if strings.TrimSpace(staffID) == "" {
		return domain.Order{}, domain.ErrStaffRequired
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Order{}, domain.ErrReasonRequired
	}

	return s.mutate(ctx, "comp_items", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		matched := matchItems(order, itemIDs)
		if len(matched) == 0 {
			return effect{}, domain.ErrNoItemsMatched
		}

		amount := decimal.Zero
		names := make([]string, 0, len(matched))
		affected := make([]string, 0, len(matched))
		for _, idx := range matched {
			if order.Items[idx].Comped {
				return effect{}, domain.ErrItemAlreadyComped
			}
		}
		for _, idx := range matched {
			item := &order.Items[idx]
			item.Comped = true
			amount = amount.Add(item.LineTotal())
			names = append(names, item.Snapshot.Name)
			affected = append(affected, item.ID)
		}

		now := s.clock.Now()
		order.Discounts = append(order.Discounts, domain.OrderDiscount{
			ID:        s.newID(),
			Type:      domain.DiscountComp,
			Value:     amount,
			ItemIDs:   affected,
			Amount:    amount,
			AppliedBy: staffID,
			Reason:    reason,
			CreatedAt: now,
		})

		if err := tx.Audit().Append(ctx, domain.AuditRecord{
			OrderID:   order.ID,
			VenueID:   order.VenueID,
			Action:    domain.AuditComp,
			StaffID:   staffID,
			Reason:    reason,
			Amount:    amount,
			ItemNames: names,
			Occurred:  now,
		}); err != nil {
			return effect{}, err
		}

		return effect{change: domain.ChangeItemsComped, affected: affected}, nil
	})
}

// ApplyDiscount добавляет скидку. Процент пересчитывается при каждом изменении
// позиций, фиксированная сумма и купон ограничиваются суммой области действия.
func (s *Service) ApplyDiscount(ctx context.Context, venueID, orderID string, expectedVersion int64, in DiscountInput) (domain.Order, error) {
	if strings.TrimSpace(in.StaffID) == "" {
		return domain.Order{}, domain.ErrStaffRequired
	}
	if !in.Type.Valid() {
		return domain.Order{}, domain.ErrDiscountTypeInvalid
	}
	if in.Value.IsNegative() {
		return domain.Order{}, domain.ErrDiscountOutOfRange
	}
	if in.Type == domain.DiscountPercentage && in.Value.GreaterThan(decimal.NewFromInt(100)) {
		return domain.Order{}, domain.ErrDiscountOutOfRange
	}

	return s.mutate(ctx, "apply_discount", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}
		for _, id := range in.ItemIDs {
			if order.ItemIndex(id) < 0 {
				return effect{}, domain.ErrItemNotFound
			}
		}

		// Суммы строк должны быть актуальны до расчёта области действия.
		domain.Recalculate(order)

		discount := domain.OrderDiscount{
			ID:        s.newID(),
			Type:      in.Type,
			Value:     in.Value,
			ItemIDs:   slices.Clone(in.ItemIDs),
			Code:      in.Code,
			AppliedBy: in.StaffID,
			Reason:    in.Reason,
			CreatedAt: s.clock.Now(),
		}
		if in.Type != domain.DiscountPercentage {
			scoped := domain.ScopedSubtotal(order, in.ItemIDs)
			discount.Amount = decimal.Min(in.Value, scoped).Round(2)
		}
		order.Discounts = append(order.Discounts, discount)

		domain.Recalculate(order)
		if err := tx.Audit().Append(ctx, domain.AuditRecord{
			OrderID:  order.ID,
			VenueID:  order.VenueID,
			Action:   domain.AuditDiscount,
			StaffID:  in.StaffID,
			Reason:   in.Reason,
			Amount:   order.Discounts[len(order.Discounts)-1].Amount,
			Occurred: discount.CreatedAt,
		}); err != nil {
			return effect{}, err
		}

		return effect{change: domain.ChangeDiscountApplied, affected: discount.ItemIDs}, nil
	})
}

// RemoveDiscount удаляет скидку. Удаление comp-скидки возвращает строкам обычный статус.
func (s *Service) RemoveDiscount(ctx context.Context, venueID, orderID string, expectedVersion int64, discountID string) (domain.Order, error) {
	return s.mutate(ctx, "remove_discount", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		idx := slices.IndexFunc(order.Discounts, func(d domain.OrderDiscount) bool { return d.ID == discountID })
		if idx < 0 {
			return effect{}, domain.ErrDiscountNotFound
		}
		removed := order.Discounts[idx]
		if removed.Type == domain.DiscountComp {
			for i := range order.Items {
				if slices.Contains(removed.ItemIDs, order.Items[i].ID) {
					order.Items[i].Comped = false
				}
			}
		}
		order.Discounts = slices.Delete(order.Discounts, idx, idx+1)
		if len(order.Discounts) == 0 {
			order.Discounts = nil
		}

		return effect{change: domain.ChangeDiscountRemoved, affected: removed.ItemIDs}, nil
	})
}

// UpdateItemNotes заменяет заметку персонала у строки.
func (s *Service) UpdateItemNotes(ctx context.Context, venueID, orderID string, expectedVersion int64, itemID, notes string) (domain.Order, error) {
	return s.mutate(ctx, "update_item_notes", venueID, orderID, expectedVersion, func(_ context.Context, _ domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}
		idx := order.ItemIndex(itemID)
		if idx < 0 {
			return effect{}, domain.ErrItemNotFound
		}
		order.Items[idx].Notes = notes
		return effect{change: domain.ChangeItemsUpdated, affected: []string{itemID}}, nil
	})
}

// MarkItemsSent отмечает строки отправленными на приготовление.
// Повторная отправка строки не меняет её отметку времени.
func (s *Service) MarkItemsSent(ctx context.Context, venueID, orderID string, expectedVersion int64, itemIDs []string) (domain.Order, error) {
	return s.mutate(ctx, "mark_items_sent", venueID, orderID, expectedVersion, func(_ context.Context, _ domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		matched := matchItems(order, itemIDs)
		if len(matched) == 0 {
			return effect{}, domain.ErrNoItemsMatched
		}

		now := s.clock.Now()
		affected := make([]string, 0, len(matched))
		for _, idx := range matched {
			item := &order.Items[idx]
			if item.SentToPrepAt == nil {
				ts := now
				item.SentToPrepAt = &ts
				affected = append(affected, item.ID)
			}
		}
		if order.Status == domain.OrderStatusOpen {
			order.Status = domain.OrderStatusInProgress
		}

		return effect{change: domain.ChangeItemsUpdated, affected: affected}, nil
	})
}

// matchItems возвращает индексы строк из списка; неизвестные идентификаторы пропускаются.
func matchItems(order *domain.Order, itemIDs []string) []int {
	matched := make([]int, 0, len(itemIDs))
	for i, item := range order.Items {
		if slices.Contains(itemIDs, item.ID) {
			matched = append(matched, i)
		}
	}
	return matched
}

// releaseUnit возвращает на склад серийную единицу удаляемой строки.
// Единица быстрой продажи ещё не продана, её трогать не нужно.
func (s *Service) releaseUnit(ctx context.Context, tx domain.Tx, item domain.OrderItem) error {
	if item.SerializedUnitID == "" {
		return nil
	}
	unit, err := tx.Units().Get(ctx, item.SerializedUnitID)
	if err != nil {
		return err
	}
	if unit.Status != domain.UnitStatusSold || unit.OrderItemID != item.ID {
		return nil
	}

	now := s.clock.Now()
	if err := unit.Transition(domain.UnitStatusReturned, now); err != nil {
		return err
	}
	if err := unit.Transition(domain.UnitStatusAvailable, now); err != nil {
		return err
	}
	return tx.Units().Update(ctx, unit)
}
