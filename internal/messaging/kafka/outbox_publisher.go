package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
// Ключ сообщения - ID заказа, поэтому события одного заказа попадают в одну
// партицию и читаются в порядке версий.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish отправляет сообщение в topic в конверте OrderEnvelope.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := OrderEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	headers := []sarama.RecordHeader{{Key: []byte(HeaderEventType), Value: []byte(event.EventType)}}
	if version := OrderVersion(event.Payload); version > 0 {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(HeaderOrderVersion),
			Value: []byte(strconv.FormatInt(version, 10)),
		})
	}
	return p.producer.publish(p.topic, key, envelope, headers)
}

// OrderVersion достаёт версию заказа из payload события. 0 - версия неизвестна.
func OrderVersion(payload []byte) int64 {
	var event struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return 0
	}
	return event.Version
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
