package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConsumerDLQRecord - входящее сообщение, которое consumer так и не смог обработать.
type ConsumerDLQRecord struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// OutboxDLQRecord - payload, который outbox worker кладёт в DLQ после исчерпания попыток.
// Сам record приходит внутри OrderEnvelope.
type OutboxDLQRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	// OrderVersion - версия заказа в потерянном событии. Подписчик, увидевший
	// разрыв версий, находит по ней недостающее событие.
	OrderVersion int64 `json:"order_version,omitempty"`
	// HeldBackEvents - сколько более поздних событий заказа worker придержал
	// до следующего цикла.
	HeldBackEvents int `json:"held_back_events,omitempty"`
}

// ReplayMessage - сообщение, восстановленное из DLQ для повторной отправки.
type ReplayMessage struct {
	Topic        string
	Key          string
	Value        []byte
	OrderVersion int64
}

// ErrNotDLQRecord - сообщение в DLQ не похоже ни на один известный формат.
var ErrNotDLQRecord = errors.New("unsupported dlq record")

// ReplayFromDLQ восстанавливает исходное сообщение из записи DLQ.
// Записи consumer-а возвращаются в исходный topic, записи outbox - в orderTopic
// в исходном конверте с новым PublishedAt.
func ReplayFromDLQ(value []byte, orderTopic string, now time.Time) (ReplayMessage, error) {
	var consumerRecord ConsumerDLQRecord
	if err := json.Unmarshal(value, &consumerRecord); err == nil && consumerRecord.OriginalValue != "" {
		topic := strings.TrimSpace(consumerRecord.OriginalTopic)
		if topic == "" {
			topic = orderTopic
		}
		return ReplayMessage{
			Topic: topic,
			Key:   consumerRecord.OriginalKey,
			Value: []byte(consumerRecord.OriginalValue),
		}, nil
	}

	var envelope OrderEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return ReplayMessage{}, ErrNotDLQRecord
	}

	var record OutboxDLQRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		return ReplayMessage{}, fmt.Errorf("decode outbox dlq record: %w", err)
	}
	if len(record.Payload) == 0 {
		return ReplayMessage{}, fmt.Errorf("outbox dlq record %s has no original payload", envelope.ID)
	}

	replay := OrderEnvelope{
		ID:            firstNonEmpty(record.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(record.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(record.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(record.EventType, envelope.EventType),
		Payload:       record.Payload,
		PublishedAt:   now.UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return ReplayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}

	return ReplayMessage{
		Topic:        orderTopic,
		Key:          firstNonEmpty(replay.AggregateID, replay.ID),
		Value:        encoded,
		OrderVersion: record.OrderVersion,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
