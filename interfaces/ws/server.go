package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ping/pkg/auth"
)

// Server upgrades HTTP requests to WebSocket connections. Upgrading is open
// to everyone; identity arrives later on the CONNECT frame, so the upgrade
// endpoint sits on the public allowlist.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	tokens   *auth.TokenService
	logger   *zap.Logger
}

// ServerConfig holds WebSocket server configuration.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultServerConfig returns default WebSocket server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: restrict origins once the client origins are fixed.
			return true
		},
	}
}

// NewServer creates a WebSocket server over the hub.
func NewServer(hub *Hub, tokens *auth.TokenService, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		tokens: tokens,
		logger: logger,
	}
}

// HandleConnection upgrades the request and starts the client pumps.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(s.hub, conn, s.tokens, s.logger)
	client.Start()
}
