package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/metrics"
)

// AggregateOrder - тип агрегата для событий заказа.
const AggregateOrder = "order"

// ChangePublisher кладёт события об изменении заказа в outbox, откуда их забирает Worker.
// Ошибки записи логируются и считаются, но не возвращаются вызывающему.
type ChangePublisher struct {
	repo    domain.OutboxRepository
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewChangePublisher создаёт publisher поверх outbox-репозитория.
func NewChangePublisher(repo domain.OutboxRepository, m *metrics.OrderMetrics, logger *log.Entry) *ChangePublisher {
	if logger == nil {
		logger = log.WithField("component", "change-publisher")
	}
	return &ChangePublisher{repo: repo, metrics: m, logger: logger}
}

// Publish сериализует событие и ставит его в очередь outbox.
func (p *ChangePublisher) Publish(_ context.Context, event domain.ChangeEvent) {
	if err := p.enqueue(event); err != nil {
		p.metrics.RecordPublishFailure()
		p.logger.WithError(err).WithFields(log.Fields{
			"order_id":   event.OrderID,
			"event_type": event.Type,
			"version":    event.Version,
		}).Warn("failed to enqueue order change event")
	}
}

func (p *ChangePublisher) enqueue(event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	_, err = p.repo.Enqueue(domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: AggregateOrder,
		AggregateID:   event.OrderID,
		EventType:     string(event.Type),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue change event: %w", err)
	}
	return nil
}

var _ domain.ChangePublisher = (*ChangePublisher)(nil)
