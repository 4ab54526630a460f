package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultChannelPrefix = "allocation"

// RedisConfig holds connection settings for the forwarder's own client
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisEventForwarder republishes domain events on Redis Pub/Sub. Each event
// goes to the channel "<prefix>:<event type>" as a JSON envelope.
type RedisEventForwarder struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	serializer *EventSerializer
	logger     *zap.Logger
}

// RedisEventForwarderOption configures a RedisEventForwarder
type RedisEventForwarderOption func(*RedisEventForwarder)

// WithChannelPrefix sets the channel prefix
func WithChannelPrefix(prefix string) RedisEventForwarderOption {
	return func(f *RedisEventForwarder) {
		if prefix != "" {
			f.prefix = prefix
		}
	}
}

// WithForwarderLogger sets the logger
func WithForwarderLogger(logger *zap.Logger) RedisEventForwarderOption {
	return func(f *RedisEventForwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSerializer replaces the default allocation event serializer
func WithSerializer(s *EventSerializer) RedisEventForwarderOption {
	return func(f *RedisEventForwarder) {
		f.serializer = s
	}
}

// NewRedisEventForwarder dials Redis and fails if it does not answer a ping
func NewRedisEventForwarder(cfg RedisConfig, opts ...RedisEventForwarderOption) (*RedisEventForwarder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	f := NewRedisEventForwarderWithClient(client, opts...)
	f.ownsClient = true
	return f, nil
}

// NewRedisEventForwarderWithClient uses an existing client.
// The caller keeps ownership of the client.
func NewRedisEventForwarderWithClient(client *redis.Client, opts ...RedisEventForwarderOption) *RedisEventForwarder {
	f := &RedisEventForwarder{
		client:     client,
		prefix:     defaultChannelPrefix,
		serializer: NewAllocationEventSerializer(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Channel returns the channel an event type is published on
func (f *RedisEventForwarder) Channel(eventType string) string {
	return f.prefix + ":" + eventType
}

// Handle publishes the event
func (f *RedisEventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	data, err := f.serializer.Serialize(event)
	if err != nil {
		return err
	}

	channel := f.Channel(event.EventType())
	if err := f.client.Publish(ctx, channel, data).Err(); err != nil {
		f.logger.Error("Failed to publish event",
			zap.String("channel", channel),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	f.logger.Debug("Event forwarded",
		zap.String("channel", channel),
		zap.String("event_id", event.EventID().String()))
	return nil
}

// EventTypes returns nil: the forwarder wants every event
func (f *RedisEventForwarder) EventTypes() []string {
	return nil
}

// Close releases the client if the forwarder created it
func (f *RedisEventForwarder) Close() error {
	if f.ownsClient {
		return f.client.Close()
	}
	return nil
}

var _ shared.EventHandler = (*RedisEventForwarder)(nil)
