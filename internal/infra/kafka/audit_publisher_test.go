package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func TestPublishPermissionDenied(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "studio"}, zaptest.NewLogger(t))
	defer producer.Close()

	publisher := NewAuditPublisher(producer, config.AppSettings{Name: "studio-admin", Env: "test"}, zaptest.NewLogger(t))

	occurredAt := time.Date(2024, 6, 2, 15, 4, 5, 0, time.UTC)
	event := domain.PermissionDeniedEvent{
		EventID:        "event-1",
		Path:           "bookings",
		Operation:      domain.OperationCreate,
		RequestPayload: map[string]any{"name": "Ada"},
		SubjectID:      "user-9",
		OccurredAt:     occurredAt,
	}

	if err := publisher.PublishPermissionDenied(context.Background(), event); err != nil {
		t.Fatalf("PublishPermissionDenied returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "studio.permission.denied" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "bookings" {
			t.Fatalf("unexpected key %q (err %v)", key, err)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		if got := envelope["event_type"]; got != "permission.denied" {
			t.Fatalf("unexpected event_type: %v", got)
		}
		if got := envelope["subject_id"]; got != "user-9" {
			t.Fatalf("unexpected subject_id: %v", got)
		}
		if got := envelope["timestamp"]; got != occurredAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %v", got)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not an object: %T", envelope["payload"])
		}
		if payload["operation"] != "create" || payload["path"] != "bookings" {
			t.Fatalf("unexpected payload: %v", payload)
		}
		request, _ := payload["request_payload"].(map[string]any)
		if request["name"] != "Ada" {
			t.Fatalf("expected request payload to be forwarded, got %v", payload["request_payload"])
		}
	case <-time.After(time.Second):
		t.Fatalf("expected message to be published")
	}
}

func TestPublishPermissionDeniedHonoursContext(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	asyncProducer.input = make(chan *sarama.ProducerMessage)
	producer := newProducer(asyncProducer, config.KafkaSettings{}, zaptest.NewLogger(t))
	defer producer.Close()

	publisher := NewAuditPublisher(producer, config.AppSettings{}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.PublishPermissionDenied(ctx, domain.PermissionDeniedEvent{Path: "users/u1"}); err == nil {
		t.Fatalf("expected context error when producer input is blocked")
	}
}

func TestTopicName(t *testing.T) {
	p := &Producer{cfg: config.KafkaSettings{TopicPrefix: "studio"}}
	if got := p.TopicName("permission.denied"); got != "studio.permission.denied" {
		t.Fatalf("unexpected topic %s", got)
	}
	if got := p.TopicName("studio.permission.denied"); got != "studio.permission.denied" {
		t.Fatalf("prefix should not be doubled, got %s", got)
	}
}

func TestStubPublisherNeverFails(t *testing.T) {
	stub := NewStubPublisher(zaptest.NewLogger(t))
	if err := stub.PublishPermissionDenied(context.Background(), domain.PermissionDeniedEvent{Path: "bookings"}); err != nil {
		t.Fatalf("stub publisher returned error: %v", err)
	}
}
