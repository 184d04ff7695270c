package outbox

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// LogPublisher пишет сообщения outbox в лог. Используется, когда брокер не настроен,
// чтобы очередь не росла без доставки.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish всегда успешен.
func (p *LogPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"message_id": msg.ID,
		"order_id":   msg.AggregateID,
		"event_type": msg.EventType,
	}).Debug("change event delivered to log")
	return nil
}
