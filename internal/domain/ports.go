package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryStatusProvider - внешний сервис остатков, опрашивается перед приёмом оплаты.
type InventoryStatusProvider interface {
	// Available сообщает, хватает ли остатка. Товар без складской записи всегда доступен.
	Available(ctx context.Context, venueID, productID string, qty int32) (bool, error)
}

// ChangePublisher доставляет события об изменении заказа после коммита.
// Доставка best-effort: ошибки публикации не возвращаются вызывающему.
type ChangePublisher interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxRetention удаляет доставленные сообщения outbox.
type OutboxRetention interface {
	// DeleteSent удаляет до limit отправленных сообщений, обновлённых не позже before.
	DeleteSent(before time.Time, limit int) (int, error)
}

// ChangeType - вид изменения заказа.
type ChangeType string

const (
	ChangeItemsAdded       ChangeType = "order.items_added"
	ChangeItemRemoved      ChangeType = "order.item_removed"
	ChangeItemsVoided      ChangeType = "order.items_voided"
	ChangeItemsComped      ChangeType = "order.items_comped"
	ChangeItemsUpdated     ChangeType = "order.items_updated"
	ChangeDiscountApplied  ChangeType = "order.discount_applied"
	ChangeDiscountRemoved  ChangeType = "order.discount_removed"
	ChangeCustomerAttached ChangeType = "order.customer_attached"
	ChangeCustomerDetached ChangeType = "order.customer_detached"
	ChangeSerializedAdded  ChangeType = "order.serialized_unit_added"
	ChangeOrderCreated     ChangeType = "order.created"
	ChangePaymentRecorded  ChangeType = "order.payment_recorded"
	ChangeOrderCancelled   ChangeType = "order.cancelled"
	ChangeOrderCompleted   ChangeType = "order.completed"
)

// ChangeEvent - доменное событие: затронутые позиции, новые суммы и версия.
type ChangeEvent struct {
	Type             ChangeType      `json:"type"`
	OrderID          string          `json:"order_id"`
	VenueID          string          `json:"venue_id"`
	Version          int64           `json:"version"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	AffectedItemIDs  []string        `json:"affected_item_ids,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Total            decimal.Decimal `json:"total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Occurred         time.Time       `json:"occurred"`
}

// NewChangeEvent собирает событие из зафиксированного состояния заказа.
func NewChangeEvent(t ChangeType, order Order, affected []string, now time.Time) ChangeEvent {
	return ChangeEvent{
		Type:             t,
		OrderID:          order.ID,
		VenueID:          order.VenueID,
		Version:          order.Version,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		AffectedItemIDs:  affected,
		Subtotal:         order.Subtotal,
		DiscountAmount:   order.DiscountAmount,
		Total:            order.Total,
		RemainingBalance: order.RemainingBalance,
		Occurred:         now,
	}
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
