package ordering

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// PaymentInput - принятый платёж.
type PaymentInput struct {
	// PaymentID делает приём идемпотентным; пусто - ID будет сгенерирован.
	PaymentID string
	Amount    decimal.Decimal
	Reference string
	StaffID   string
}

// RecordPayment принимает платёж по заказу.
//
// Перед изменением проверяются остатки. Статус оплаты выводит mutate: при полной
// оплате отложенные серийные единицы помечаются проданными в той же транзакции,
// а заказ закрывается. Заказ с нулевым остатком закрывает CloseOrder.
func (s *Service) RecordPayment(ctx context.Context, venueID, orderID string, expectedVersion int64, in PaymentInput) (domain.Order, error) {
	if !in.Amount.IsPositive() {
		return domain.Order{}, domain.ErrPaymentAmountInvalid
	}

	current, err := s.GetOrder(ctx, venueID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if in.PaymentID != "" && hasPayment(current, in.PaymentID) {
		return current, nil
	}
	// Проверка вне транзакции: изменения позиций после неё отсечёт сверка версии.
	if current.Version == expectedVersion {
		if err := s.preflightInventory(ctx, current); err != nil {
			s.logFailure("record_payment", venueID, orderID, err)
			return domain.Order{}, err
		}
	}

	paymentID := in.PaymentID
	if paymentID == "" {
		paymentID = s.newID()
	}

	return s.mutate(ctx, "record_payment", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if err := order.EnsureMutable(); err != nil {
			return effect{}, err
		}

		domain.Recalculate(order)
		if in.Amount.GreaterThan(order.RemainingBalance) {
			return effect{}, domain.ErrOverpayment
		}

		// Недоступная серийная единица отклоняет и частичный платёж.
		if _, err := s.checkSerializedLines(ctx, tx, order); err != nil {
			return effect{}, err
		}

		order.Payments = append(order.Payments, domain.Payment{
			ID:        paymentID,
			OrderID:   order.ID,
			Amount:    in.Amount,
			Reference: in.Reference,
			StaffID:   in.StaffID,
			CreatedAt: s.clock.Now(),
		})
		order.PaidAmount = order.PaidAmount.Add(in.Amount)
		affected := make([]string, 0, len(order.Items))
		for i := range order.Items {
			order.Items[i].PaymentIDs = append(order.Items[i].PaymentIDs, paymentID)
			affected = append(affected, order.Items[i].ID)
		}
		return effect{change: domain.ChangePaymentRecorded, affected: affected}, nil
	})
}

// CloseOrder закрывает заказ, которому нечего оплачивать: полностью списанный
// через comp, проданный по нулевой цене или уже покрытый платежами.
// Отложенные серийные единицы переходят в SOLD так же, как при оплате.
func (s *Service) CloseOrder(ctx context.Context, venueID, orderID string, expectedVersion int64) (domain.Order, error) {
	return s.mutate(ctx, "close_order", venueID, orderID, expectedVersion, func(ctx context.Context, tx domain.Tx, order *domain.Order) (effect, error) {
		if order.Status.IsTerminal() {
			return effect{}, domain.ErrOrderClosed
		}
		if len(order.Items) == 0 {
			return effect{}, domain.ErrOrderEmpty
		}

		domain.Recalculate(order)
		if order.RemainingBalance.IsPositive() {
			return effect{}, domain.ErrBalanceOutstanding
		}

		sold, err := s.completeOrder(ctx, tx, order)
		if err != nil {
			return effect{}, err
		}
		return effect{change: domain.ChangeOrderCompleted, unitsSold: sold}, nil
	})
}

// settle выводит статус оплаты из оплаченной суммы после любого пересчёта.
// Заказ, остаток которого закрыт платежами, завершается.
func (s *Service) settle(ctx context.Context, tx domain.Tx, order *domain.Order) (int, error) {
	if order.Status.IsTerminal() || !order.PaidAmount.IsPositive() {
		return 0, nil
	}
	order.PaymentStatus = domain.DerivePaymentStatus(order.PaidAmount, order.Total)
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return 0, nil
	}
	return s.completeOrder(ctx, tx, order)
}

// completeOrder помечает отложенные серийные единицы проданными и закрывает заказ.
func (s *Service) completeOrder(ctx context.Context, tx domain.Tx, order *domain.Order) (int, error) {
	deferred, err := s.checkSerializedLines(ctx, tx, order)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	for _, unit := range deferred {
		unit.OrderItemID = lineForUnit(order, unit.ID)
		if err := unit.Transition(domain.UnitStatusSold, now); err != nil {
			return 0, err
		}
		if err := tx.Units().Update(ctx, unit); err != nil {
			return 0, err
		}
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.Status = domain.OrderStatusCompleted
	return len(deferred), nil
}

// SettlePayment применяет платёж, пришедший извне (подтверждение от шлюза).
// Версия заказа берётся актуальная, конфликт версий перечитывается и повторяется.
func (s *Service) SettlePayment(ctx context.Context, venueID, orderID string, in PaymentInput) (domain.Order, error) {
	if strings.TrimSpace(in.PaymentID) == "" {
		in.PaymentID = s.newID()
	}

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		current, err := s.GetOrder(ctx, venueID, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		order, err := s.RecordPayment(ctx, venueID, orderID, current.Version, in)
		if err == nil {
			return order, nil
		}
		if !domain.IsVersionConflict(err) {
			return domain.Order{}, err
		}
		lastErr = err
		s.logger.WithFields(log.Fields{
			"order_id":   orderID,
			"payment_id": in.PaymentID,
			"attempt":    attempt,
		}).Debug("payment settlement hit version conflict, refetching")
	}
	return domain.Order{}, lastErr
}

func hasPayment(order domain.Order, paymentID string) bool {
	return slices.ContainsFunc(order.Payments, func(p domain.Payment) bool { return p.ID == paymentID })
}

// preflightInventory опрашивает сервис остатков по обычным позициям заказа.
func (s *Service) preflightInventory(ctx context.Context, order domain.Order) error {
	if s.inventory == nil {
		return nil
	}

	qty := make(map[string]int32)
	var products []string
	for _, item := range order.Items {
		if item.ProductID == "" || item.Comped {
			continue
		}
		if _, ok := qty[item.ProductID]; !ok {
			products = append(products, item.ProductID)
		}
		qty[item.ProductID] += item.Quantity
	}

	for _, productID := range products {
		ok, err := s.inventory.Available(ctx, order.VenueID, productID, qty[productID])
		if err != nil {
			return err
		}
		if !ok {
			s.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": productID,
				"quantity":   qty[productID],
			}).Info("inventory unavailable for payment")
			return domain.ErrInventoryUnavailable
		}
	}
	return nil
}

// checkSerializedLines проверяет, что каждая серийная единица заказа ещё
// доступна или уже продана именно в эту позицию. Возвращает единицы быстрой
// продажи, ожидающие перевода в SOLD.
func (s *Service) checkSerializedLines(ctx context.Context, tx domain.Tx, order *domain.Order) ([]domain.SerializedUnit, error) {
	var deferred []domain.SerializedUnit
	for _, item := range order.Items {
		if item.SerializedUnitID == "" {
			continue
		}
		unit, err := tx.Units().Get(ctx, item.SerializedUnitID)
		if err != nil {
			return nil, err
		}
		switch {
		case unit.Status == domain.UnitStatusSold && unit.OrderItemID == item.ID:
		case unit.Status == domain.UnitStatusAvailable:
			deferred = append(deferred, unit)
		default:
			return nil, domain.ErrInventoryUnavailable
		}
	}
	return deferred, nil
}

func lineForUnit(order *domain.Order, unitID string) string {
	for _, item := range order.Items {
		if item.SerializedUnitID == unitID {
			return item.ID
		}
	}
	return ""
}
