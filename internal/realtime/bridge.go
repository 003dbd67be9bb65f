package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
)

const publishTimeout = 2 * time.Second

type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects and pings. It returns nil when no address is set.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Address == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// Bridge relays events between board instances over one Redis channel.
// Dispatch publishes local events; Run feeds events published by other
// instances into the local hub.
type Bridge struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *zap.Logger
}

var _ events.Dispatcher = (*Bridge)(nil)

func NewBridge(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger.Named("bridge"),
	}
}

func (b *Bridge) Dispatch(ctx context.Context, evs ...events.Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, ev := range evs {
		payload, err := b.encode(ev)
		if err != nil {
			b.logger.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
			b.logger.Warn("failed to publish event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}

func (b *Bridge) encode(ev events.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Origin: b.origin, Event: raw})
}

// Run subscribes to the channel until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("relaying events", zap.String("channel", b.channel), zap.String("origin", b.origin))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.handle([]byte(msg.Payload))
		}
	}
}

// handle forwards a foreign event to local subscribers. Our own events were
// already delivered by the hub.
func (b *Bridge) handle(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Warn("dropping malformed relay message", zap.Error(err))
		return
	}
	if env.Origin == b.origin || len(env.Event) == 0 {
		return
	}
	b.hub.broadcast(env.Event)
}
