// Package publisher announces stored contact submissions to downstream
// consumers (the office mailer, the CRM sync).
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"autoscuola/internal/site/contact/models"
	"autoscuola/pkg/requestcontext"
)

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes one record per submission, keyed by reference.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.SubmittedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal contact event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Reference),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte("contact.submitted")},
			{Key: "request_id", Value: []byte(requestcontext.RequestID(ctx))},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce contact event: %w", err)
	}
	return nil
}
