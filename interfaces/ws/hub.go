package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"ping/pkg/observability"
)

// Hub maintains the live connections and routes push payloads to them. It
// implements ports.Pusher: a destination owned by a username is delivered
// to every connection of that user; anything else goes to explicit
// subscribers. Offline recipients are dropped silently.
type Hub struct {
	// One user can hold multiple simultaneous connections.
	connections   map[string]map[*Client]bool // username -> clients
	subscriptions map[string]map[*Client]bool // destination -> clients
	mu            sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *pushFrame

	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *observability.Metrics
}

type pushFrame struct {
	destination string
	data        []byte
}

// NewHub creates a hub. Call Run on its own goroutine.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		connections:   make(map[string]map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client, 100),
		unregister:    make(chan *Client, 100),
		broadcast:     make(chan *pushFrame, 1000),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() {
	h.cancel()
}

// Send delivers a payload to a destination as a MESSAGE frame. Implements
// ports.Pusher; errors never propagate to the caller because push delivery
// is best-effort by contract.
func (h *Hub) Send(destination string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal push payload",
			zap.String("destination", destination),
			zap.Error(err),
		)
		return
	}
	data, err := json.Marshal(Frame{
		Type:        FrameMessage,
		Destination: destination,
		Payload:     raw,
	})
	if err != nil {
		h.logger.Error("Failed to marshal push frame", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- &pushFrame{destination: destination, data: data}:
	case <-time.After(5 * time.Second):
		h.logger.Warn("Broadcast channel full, push dropped",
			zap.String("destination", destination),
		)
	}
}

// Subscribe adds a client to a destination's subscriber set.
func (h *Hub) Subscribe(client *Client, destination string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscriptions[destination] == nil {
		h.subscriptions[destination] = make(map[*Client]bool)
	}
	h.subscriptions[destination][client] = true
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[username])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.username] == nil {
		h.connections[client.username] = make(map[*Client]bool)
	}
	h.connections[client.username][client] = true

	h.logger.Info("Client registered",
		zap.String("username", client.username),
		zap.String("connectionID", client.id),
		zap.Int("userConnections", len(h.connections[client.username])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for destination, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, destination)
		}
	}

	clients, ok := h.connections[client.username]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.connections, client.username)
	}

	h.logger.Info("Client unregistered",
		zap.String("username", client.username),
		zap.String("connectionID", client.id),
	)
}

// deliver fans a frame out to its recipients: all connections of the
// owning user for per-user destinations, explicit subscribers otherwise.
func (h *Hub) deliver(frame *pushFrame) {
	h.mu.RLock()
	var recipients map[*Client]bool
	if owner, ok := DestinationOwner(frame.destination); ok {
		recipients = h.connections[owner]
	} else {
		recipients = h.subscriptions[frame.destination]
	}
	targets := make([]*Client, 0, len(recipients))
	for client := range recipients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		// Recipient offline. The durable notification record is the fallback.
		h.metrics.PushesDropped.Inc()
		h.logger.Debug("No live connections for destination",
			zap.String("destination", frame.destination),
		)
		return
	}

	delivered := false
	for _, client := range targets {
		select {
		case client.send <- frame.data:
			delivered = true
		default:
			h.logger.Warn("Closing slow client",
				zap.String("username", client.username),
				zap.String("connectionID", client.id),
			)
			go func(c *Client) {
				h.unregister <- c
				c.conn.Close()
			}(client)
		}
	}
	if delivered {
		h.metrics.PushesDelivered.Inc()
	} else {
		h.metrics.PushesDropped.Inc()
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for username, clients := range h.connections {
		for client := range clients {
			close(client.send)
			client.conn.Close()
		}
		delete(h.connections, username)
	}
	h.subscriptions = make(map[string]map[*Client]bool)
}
