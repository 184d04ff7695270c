package kafka

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EventType определяет тип события
type EventType string

const (
	// EventTypePaymentSettled - платёжный шлюз подтвердил оплату по заказу.
	EventTypePaymentSettled EventType = "payment.settled"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "pos.order.events"
	TopicPaymentEvents   = "pos.payment.events"
	TopicDeadLetterQueue = "pos.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Заголовки событий заказа: подписчик фильтрует и проверяет порядок версий,
// не разбирая payload.
const (
	HeaderEventType    = "x-event-type"
	HeaderOrderVersion = "x-order-version"
)

// OrderEnvelope - конверт, в котором событие заказа из outbox уходит в брокер.
// Payload содержит domain.ChangeEvent в JSON.
type OrderEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// PaymentSettledEvent приходит от платёжного шлюза.
type PaymentSettledEvent struct {
	EventType EventType       `json:"event_type"`
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	VenueID   string          `json:"venue_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	StaffID   string          `json:"staff_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewPaymentSettledEvent создает событие подтверждённой оплаты
func NewPaymentSettledEvent(paymentID, venueID, orderID string, amount decimal.Decimal, reference string) *PaymentSettledEvent {
	return &PaymentSettledEvent{
		EventType: EventTypePaymentSettled,
		PaymentID: paymentID,
		OrderID:   orderID,
		VenueID:   venueID,
		Amount:    amount,
		Reference: reference,
		Timestamp: time.Now().UTC(),
	}
}
