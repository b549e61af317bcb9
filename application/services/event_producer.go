package services

import (
	"context"

	"go.uber.org/zap"

	"ping/application/ports"
	"ping/domain/events"
	"ping/pkg/observability"
)

// EventProducer publishes typed envelopes onto the event bus. Publishing is
// fire-and-forget: a rejected publish is logged and counted, never retried
// here, and never fails the HTTP action that triggered it. Once the bus
// accepts a message, durability is the bus's problem.
type EventProducer struct {
	publisher ports.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewEventProducer creates a producer over the given publisher.
func NewEventProducer(publisher ports.Publisher, logger *zap.Logger, metrics *observability.Metrics) *EventProducer {
	return &EventProducer{
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// PostAdded publishes a PostAdded envelope keyed by the sender.
func (p *EventProducer) PostAdded(ctx context.Context, event events.PostAdded) {
	p.publish(ctx, events.TopicPostAdded, event.Sender, event)
}

// FriendRequestCreated publishes a FriendRequestCreated envelope keyed by
// the receiver.
func (p *EventProducer) FriendRequestCreated(ctx context.Context, event events.FriendRequestCreated) {
	p.publish(ctx, events.TopicFriendRequest, event.Receiver, event)
}

// CommentAdded publishes a CommentAdded envelope keyed by the receiver.
func (p *EventProducer) CommentAdded(ctx context.Context, event events.CommentAdded) {
	p.publish(ctx, events.TopicCommentAdded, event.Receiver, event)
}

func (p *EventProducer) publish(ctx context.Context, topic, key string, event any) {
	if err := p.publisher.Publish(ctx, topic, key, event); err != nil {
		p.metrics.PublishFailures.WithLabelValues(topic).Inc()
		p.logger.Error("Failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	p.metrics.EventsPublished.WithLabelValues(topic).Inc()
	p.logger.Info("Published event",
		zap.String("topic", topic),
		zap.String("key", key),
	)
}
