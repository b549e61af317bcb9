package ws

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ping/pkg/auth"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Send buffer size.
	sendBufferSize = 256
)

// Client is one WebSocket connection. It starts unauthenticated; a CONNECT
// frame carrying a valid bearer token binds an identity for the lifetime of
// the connection. The identity is checked once; a token expiring later
// does not revoke the live connection. Without an identity the connection
// stays open but every SUBSCRIBE/SEND is refused.
type Client struct {
	id       string
	username string
	identity *auth.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tokens   *auth.TokenService
	logger   *zap.Logger
}

// NewClient wraps a fresh connection.
func NewClient(hub *Hub, conn *websocket.Conn, tokens *auth.TokenService, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		tokens: tokens,
		logger: logger.With(zap.String("connectionID", id)),
	}
}

// Start begins the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps frames from the connection into the handshake and
// subscription logic.
func (c *Client) readPump() {
	defer func() {
		if c.identity != nil {
			c.hub.unregister <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logger.Warn("Binary messages not supported")
			continue
		}
		c.handleFrame(message)
	}
}

// writePump pumps queued frames to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.sendError("malformed frame")
		return
	}

	switch frame.Type {
	case FrameConnect:
		c.handleConnect(frame)
	case FrameSubscribe:
		c.handleSubscribe(frame)
	case FrameSend:
		c.handleSend(frame)
	default:
		c.logger.Debug("Ignoring frame", zap.String("type", frame.Type))
	}
}

// handleConnect runs the handshake interceptor: the CONNECT frame's header
// block is inspected for a bearer token, once per connection. On failure
// the connection stays open without an identity.
func (c *Client) handleConnect(frame Frame) {
	if c.identity != nil {
		c.sendError("already connected")
		return
	}

	authHeader := frame.Headers["Authorization"]
	if !strings.HasPrefix(authHeader, "Bearer ") {
		c.sendError("authentication failed")
		return
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	username, err := c.tokens.ExtractSubject(token)
	if err != nil {
		c.sendError("authentication failed")
		return
	}
	identity, err := c.tokens.Validate(token)
	if err != nil {
		c.sendError("authentication failed")
		return
	}

	c.identity = identity
	c.username = username
	c.logger = c.logger.With(zap.String("username", username))
	c.hub.register <- c

	c.sendFrame(Frame{
		Type:    FrameConnected,
		Headers: map[string]string{"user": username},
	})
}

func (c *Client) handleSubscribe(frame Frame) {
	if c.identity == nil {
		c.sendError("unauthenticated")
		return
	}
	if frame.Destination == "" {
		c.sendError("destination required")
		return
	}
	// A per-user destination may only be subscribed by its owner; the hub
	// already routes those to every connection of the owner.
	if owner, ok := DestinationOwner(frame.Destination); ok && owner != c.username {
		c.sendError("forbidden destination")
		return
	}
	c.hub.Subscribe(c, frame.Destination)
}

func (c *Client) handleSend(frame Frame) {
	if c.identity == nil {
		c.sendError("unauthenticated")
		return
	}
	if frame.Destination == "" {
		c.sendError("destination required")
		return
	}
	var payload any
	if len(frame.Payload) > 0 {
		payload = json.RawMessage(frame.Payload)
	}
	c.hub.Send(frame.Destination, payload)
}

func (c *Client) sendFrame(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Send buffer full, frame dropped", zap.String("type", frame.Type))
	}
}

func (c *Client) sendError(message string) {
	c.sendFrame(Frame{Type: FrameError, Message: message})
}
