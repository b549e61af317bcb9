package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one envelope read off the bus.
type Message struct {
	Topic   string
	Key     []byte
	Payload []byte
}

// Handler processes one message. Returning an error does not stop the
// consumer; delivery is at-least-once and handlers must tolerate redelivery.
type Handler func(ctx context.Context, msg Message) error

// KafkaConsumer reads the pipeline topics with a shared group id.
type KafkaConsumer struct {
	reader *kafka.Reader
}

// NewKafkaConsumer creates a consumer group subscription over the topics.
func NewKafkaConsumer(brokers []string, groupID string, topics []string) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires a group id")
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	return &KafkaConsumer{reader: reader}, nil
}

// Run blocks, feeding messages to the handler until the context is
// cancelled. Handler errors are swallowed here; the handler owns logging.
func (c *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		_ = handle(ctx, Message{
			Topic:   msg.Topic,
			Key:     msg.Key,
			Payload: msg.Value,
		})
	}
}

// Close closes the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
