package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/ordering"
)

// PaymentSettler применяет подтверждённый платёж к заказу.
type PaymentSettler interface {
	SettlePayment(ctx context.Context, venueID, orderID string, in ordering.PaymentInput) (domain.Order, error)
}

// ParsePaymentSettled парсит PaymentSettledEvent из сообщения
func ParsePaymentSettled(message *sarama.ConsumerMessage) (*PaymentSettledEvent, error) {
	var event PaymentSettledEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment event: %w", err)
	}
	return &event, nil
}

// NewPaymentSettlementHandler возвращает обработчик topic-а платежей.
//
// Некорректные сообщения и отказы бизнес-валидации (NotFound, BadRequest)
// помечаются Permanent и уходят в DLQ сразу. Конфликты и сбои хранилища повторяются.
func NewPaymentSettlementHandler(settler PaymentSettler, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "payment-settlement")
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParsePaymentSettled(message)
		if err != nil {
			return Permanent(err)
		}
		if event.EventType != EventTypePaymentSettled {
			logger.WithField("event_type", event.EventType).Debug("skipping unrelated payment event")
			return nil
		}
		if event.OrderID == "" || event.VenueID == "" || event.PaymentID == "" {
			return Permanent(fmt.Errorf("payment event %q is missing identifiers", event.PaymentID))
		}

		order, err := settler.SettlePayment(ctx, event.VenueID, event.OrderID, ordering.PaymentInput{
			PaymentID: event.PaymentID,
			Amount:    event.Amount,
			Reference: event.Reference,
			StaffID:   event.StaffID,
		})
		if err != nil {
			if domain.IsNotFound(err) || domain.IsBadRequest(err) {
				return Permanent(fmt.Errorf("settle payment %s: %w", event.PaymentID, err))
			}
			return fmt.Errorf("settle payment %s: %w", event.PaymentID, err)
		}

		logger.WithFields(log.Fields{
			"order_id":       order.ID,
			"payment_id":     event.PaymentID,
			"payment_status": order.PaymentStatus,
			"version":        order.Version,
		}).Info("payment settled")
		return nil
	}
}
