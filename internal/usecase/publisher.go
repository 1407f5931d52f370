package usecase

import (
	"context"

	pkgkafka "StockSentinel/pkg/kafka"
)

// KafkaPublisher emits cycle events to a Kafka topic, keyed by mode so
// downstream reporters read each mode's cycles in order. It also
// satisfies logger.Publisher so the aggregated-log collector can share
// the producer.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishCycle(ctx context.Context, event *CycleEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(event.Mode), event)
}

// PublishMessage implements logger.Publisher.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
