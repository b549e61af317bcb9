package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ping/domain/events"
	infraevents "ping/infrastructure/events"
	"ping/pkg/observability"
)

// Consumer decodes envelopes off the bus and dispatches them to the engine.
// It is transport-agnostic: the same Dispatch handler serves the Kafka
// reader and the in-process bus.
type Consumer struct {
	engine  *Engine
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewConsumer creates a consumer over the engine.
func NewConsumer(engine *Engine, logger *zap.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		engine:  engine,
		logger:  logger,
		metrics: metrics,
	}
}

// Dispatch decodes one message by topic and runs the matching fanout.
// Errors are logged and counted; the message is considered consumed either
// way (no retry loop on a poison message).
func (c *Consumer) Dispatch(ctx context.Context, msg infraevents.Message) error {
	c.metrics.EventsConsumed.WithLabelValues(msg.Topic).Inc()

	var err error
	switch msg.Topic {
	case events.TopicPostAdded:
		var event events.PostAdded
		if err = json.Unmarshal(msg.Payload, &event); err == nil {
			c.logger.Info("Received post event", zap.String("sender", event.Sender))
			err = c.engine.HandlePostAdded(ctx, event)
		}
	case events.TopicFriendRequest:
		var event events.FriendRequestCreated
		if err = json.Unmarshal(msg.Payload, &event); err == nil {
			c.logger.Info("Received friend request event",
				zap.String("sender", event.Sender),
				zap.String("receiver", event.Receiver),
			)
			err = c.engine.HandleFriendRequest(ctx, event)
		}
	case events.TopicCommentAdded:
		var event events.CommentAdded
		if err = json.Unmarshal(msg.Payload, &event); err == nil {
			c.logger.Info("Received comment event",
				zap.String("sender", event.Sender),
				zap.String("receiver", event.Receiver),
			)
			err = c.engine.HandleCommentAdded(ctx, event)
		}
	default:
		err = fmt.Errorf("unknown topic %q", msg.Topic)
	}

	if err != nil {
		c.metrics.ConsumeFailures.WithLabelValues(msg.Topic).Inc()
		c.logger.Error("Fanout failed",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return err
	}
	return nil
}
