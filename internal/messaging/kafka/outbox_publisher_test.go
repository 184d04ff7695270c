package kafka

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func headerValue(msg *sarama.ProducerMessage, key string) (string, bool) {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func TestOutboxPublisher_OrderEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		msg         domain.OutboxMessage
		wantKey     string
		wantVersion string
	}{
		{
			name: "keyed by order with version header",
			msg: domain.OutboxMessage{
				ID:            "outbox-1",
				AggregateType: "order",
				AggregateID:   "order-123",
				EventType:     string(domain.ChangePaymentRecorded),
				Payload:       []byte(`{"order_id":"order-123","version":7}`),
			},
			wantKey:     "order-123",
			wantVersion: "7",
		},
		{
			name:    "no aggregate falls back to message id",
			msg:     domain.OutboxMessage{ID: "outbox-2", EventType: "order.opened", Payload: []byte(`{}`)},
			wantKey: "outbox-2",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockProducer := mocks.NewSyncProducer(t, nil)
			mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
				key, err := msg.Key.Encode()
				if err != nil {
					return err
				}
				if string(key) != tt.wantKey {
					return fmt.Errorf("unexpected key %q", key)
				}
				if got, _ := headerValue(msg, HeaderEventType); got != tt.msg.EventType {
					return fmt.Errorf("unexpected event type header %q", got)
				}
				got, ok := headerValue(msg, HeaderOrderVersion)
				if ok != (tt.wantVersion != "") || got != tt.wantVersion {
					return fmt.Errorf("unexpected version header %q", got)
				}

				value, err := msg.Value.Encode()
				if err != nil {
					return err
				}
				var envelope OrderEnvelope
				if err := json.Unmarshal(value, &envelope); err != nil {
					return err
				}
				if envelope.ID != tt.msg.ID || string(envelope.Payload) != string(tt.msg.Payload) {
					return fmt.Errorf("unexpected envelope %+v", envelope)
				}
				return nil
			})

			producer := &Producer{producer: mockProducer, logger: log.WithField("test", tt.name)}
			if err := NewOutboxPublisher(producer, "").Publish(tt.msg); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if err := mockProducer.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestOutboxPublisher_Failures(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer := &Producer{producer: mockProducer, logger: log.WithField("test", "broker-down")}

	msg := domain.OutboxMessage{ID: "outbox-3", AggregateID: "order-234", EventType: "order.items_added", Payload: []byte(`{"version":3}`)}
	if err := NewOutboxPublisher(producer, TopicOrderEvents).Publish(msg); err == nil {
		t.Fatal("expected broker error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}

	if err := NewOutboxPublisher(nil, TopicOrderEvents).Publish(msg); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestOrderVersion(t *testing.T) {
	t.Parallel()

	cases := map[string]int64{
		`{"order_id":"o","version":12}`: 12,
		`{"order_id":"o"}`:              0,
		`not json`:                      0,
	}
	for payload, want := range cases {
		if got := OrderVersion([]byte(payload)); got != want {
			t.Fatalf("OrderVersion(%s) = %d, want %d", payload, got, want)
		}
	}
}
