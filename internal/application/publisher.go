package application

import (
	"context"
	"time"

	"github.com/autovoyage/service-rental/internal/platform/kafka"
	"go.uber.org/zap"
)

// EventSource is the CloudEvents source attribute of everything this service publishes.
const EventSource = "service-rental"

// EventPublisher publishes domain events. Implementations must not fail the
// caller's operation; delivery problems are logged.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, key string, data any)
}

// KafkaEventPublisher wraps domain events in CloudEvents and writes them to Kafka.
type KafkaEventPublisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewKafkaEventPublisher creates a publisher backed by producer.
func NewKafkaEventPublisher(producer *kafka.Producer, logger *zap.Logger) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, logger: logger}
}

// Publish sends the event, detached from the request's cancellation.
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic, eventType, key string, data any) {
	cloudEvent, err := kafka.NewCloudEvent(EventSource, eventType, key, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.producer.PublishEvent(pubCtx, topic, cloudEvent); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// NoopEventPublisher drops every event. Used when no brokers are configured.
type NoopEventPublisher struct{}

// Publish does nothing.
func (NoopEventPublisher) Publish(context.Context, string, string, string, any) {}
