package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// LocalBus is an in-process pub/sub used when no Kafka brokers are
// configured (development mode and tests). Delivery is asynchronous per
// message, mirroring the publish-returns-before-fanout contract of the
// real bus, but carries none of its durability.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *LocalBus) Subscribe(topic string, handle Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handle)
}

// Publish marshals the event and dispatches it to the topic's subscribers
// on a separate goroutine. The caller never blocks on fanout work.
func (b *LocalBus) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for topic %s: %w", topic, err)
	}

	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	msg := Message{Topic: topic, Key: []byte(key), Payload: payload}
	b.wg.Add(len(handlers))
	for _, handle := range handlers {
		go func(h Handler) {
			defer b.wg.Done()
			_ = h(context.WithoutCancel(ctx), msg)
		}(handle)
	}
	return nil
}

// Wait blocks until all in-flight deliveries have completed. Test helper.
func (b *LocalBus) Wait() {
	b.wg.Wait()
}
