// Package di wires the application together. Construction is eager and
// ordered by dependency; Shutdown tears everything down in reverse.
package di

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ping/application/fanout"
	"ping/application/ports"
	"ping/application/services"
	"ping/domain/events"
	"ping/infrastructure/config"
	infraevents "ping/infrastructure/events"
	"ping/infrastructure/persistence/memory"
	"ping/infrastructure/persistence/postgres"
	"ping/interfaces/http/rest"
	"ping/interfaces/http/rest/handlers"
	"ping/interfaces/ws"
	"ping/pkg/auth"
	"ping/pkg/observability"
)

// Container holds every constructed component.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Tokens  *auth.TokenService

	Users         ports.UserStore
	Friends       ports.FriendshipStore
	Notifications ports.NotificationStore
	Posts         ports.PostStore

	Publisher ports.Publisher
	Producer  *services.EventProducer
	Engine    *fanout.Engine
	Consumer  *fanout.Consumer

	Hub           *ws.Hub
	KafkaConsumer *infraevents.KafkaConsumer
	Router        http.Handler

	pg       *postgres.Store
	localBus *infraevents.LocalBus
	registry *prometheus.Registry
}

// InitializeContainer constructs the full dependency graph from config.
func InitializeContainer(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}
	c.Logger = logger

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(collectors.NewGoCollector())
	c.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = observability.NewMetrics(c.registry)

	secret := cfg.JWTSecret
	if secret == "" {
		// Development only; config.Validate rejects this in production.
		// Tokens do not survive a restart with an ephemeral key.
		secret, err = ephemeralSecret()
		if err != nil {
			return nil, err
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}
	c.Tokens, err = auth.NewTokenService(secret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	if err := c.buildStores(); err != nil {
		return nil, err
	}

	c.Hub = ws.NewHub(logger, c.Metrics)
	c.Engine = fanout.NewEngine(c.Friends, c.Notifications, c.Hub, logger, c.Metrics)
	c.Consumer = fanout.NewConsumer(c.Engine, logger, c.Metrics)

	if err := c.buildBus(); err != nil {
		return nil, err
	}
	c.Producer = services.NewEventProducer(c.Publisher, logger, c.Metrics)

	wsServer := ws.NewServer(c.Hub, c.Tokens, nil, logger)
	c.Router = rest.NewRouter(cfg, c.Tokens, c.registry, rest.Handlers{
		Auth:          handlers.NewAuthHandler(c.Users, c.Tokens, logger),
		Friends:       handlers.NewFriendsHandler(c.Users, c.Friends, c.Producer, logger),
		Posts:         handlers.NewPostsHandler(c.Users, c.Posts, c.Producer, logger),
		Notifications: handlers.NewNotificationsHandler(c.Notifications, logger),
		Admin:         handlers.NewAdminHandler(c.Users, logger),
		WebSocket:     wsServer,
	}, logger)

	return c, nil
}

// buildStores selects postgres when a database URL is configured and the
// in-memory stores otherwise.
func (c *Container) buildStores() error {
	if c.Config.DatabaseURL == "" {
		store := memory.NewStore()
		c.Users = store
		c.Friends = store
		c.Notifications = store
		c.Posts = store
		c.Logger.Info("Using in-memory stores")
		return nil
	}

	if c.Config.MigrateOnStart {
		if err := postgres.Migrate(c.Config.DatabaseURL); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}
	store, err := postgres.Open(c.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	c.pg = store
	c.Users = store
	c.Friends = store
	c.Notifications = store
	c.Posts = store
	c.Logger.Info("Connected to postgres")
	return nil
}

// buildBus selects Kafka when brokers are configured; otherwise the
// in-process bus, with the consumer subscribed directly.
func (c *Container) buildBus() error {
	if len(c.Config.KafkaBrokers) == 0 {
		bus := infraevents.NewLocalBus()
		for _, topic := range events.Topics() {
			bus.Subscribe(topic, c.Consumer.Dispatch)
		}
		c.localBus = bus
		c.Publisher = bus
		c.Logger.Info("Using in-process event bus")
		return nil
	}

	publisher, err := infraevents.NewKafkaPublisher(c.Config.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("kafka publisher: %w", err)
	}
	c.Publisher = publisher

	consumer, err := infraevents.NewKafkaConsumer(c.Config.KafkaBrokers, c.Config.KafkaGroupID, events.Topics())
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	c.KafkaConsumer = consumer
	c.Logger.Info("Connected to kafka", zap.Strings("brokers", c.Config.KafkaBrokers))
	return nil
}

// Shutdown releases resources in reverse construction order.
func (c *Container) Shutdown() {
	if c.localBus != nil {
		c.localBus.Wait()
	}
	if c.KafkaConsumer != nil {
		if err := c.KafkaConsumer.Close(); err != nil {
			c.Logger.Error("Failed to close kafka consumer", zap.Error(err))
		}
	}
	if closer, ok := c.Publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.Logger.Error("Failed to close publisher", zap.Error(err))
		}
	}
	c.Hub.Stop()
	if c.pg != nil {
		if err := c.pg.Close(); err != nil {
			c.Logger.Error("Failed to close database", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
}

func ephemeralSecret() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate signing key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
