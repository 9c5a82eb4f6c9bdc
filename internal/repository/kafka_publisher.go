package repository

import (
	"context"

	"OmniSpectrum/internal/domain/models"
	pkgkafka "OmniSpectrum/pkg/kafka"
)

// KafkaEventPublisher sends snapshot events keyed by refresh id.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, ev models.SnapshotEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.ID), ev)
}

// Close is a no-op; the producer is shared with the log collector and closed by its owner.
func (p *KafkaEventPublisher) Close() error { return nil }
