package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultChannel = "facility:realtime"
	publishTimeout = 2 * time.Second
)

// RedisBridge relays messages through a Redis Pub/Sub channel so every
// instance replays them into its own Hub. Cache invalidations from other
// instances are applied to the registered Evictor.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	evictor Evictor
	origin  string
	logger  *zap.Logger
}

// NewRedisBridge binds hub to channel on client.
func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = defaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, origin: uuid.NewString(), logger: logger}
}

// HandleInvalidations applies cache invalidations published by other instances to e.
// It must be called before Run.
func (b *RedisBridge) HandleInvalidations(e Evictor) {
	b.evictor = e
}

// Publish sends msg to the shared channel.
func (b *RedisBridge) Publish(ctx context.Context, msg Message) error {
	body, err := b.envelope(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, b.channel, body).Err()
}

// Run forwards channel messages into the local hub until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("realtime bridge subscribed", zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return errors.New("realtime: redis channel closed")
			}
			b.deliver(ctx, raw.Payload)
		}
	}
}

// envelope stamps msg with this instance's origin and encodes it.
func (b *RedisBridge) envelope(msg Message) ([]byte, error) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	msg.Origin = b.origin
	return json.Marshal(msg)
}

func (b *RedisBridge) deliver(ctx context.Context, payload string) {
	msg, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Warn("realtime: dropping malformed message", zap.String("channel", b.channel), zap.Error(err))
		return
	}
	if msg.Kind == KindCacheInvalidate {
		// the publishing instance already evicted locally
		if b.evictor != nil && msg.Origin != b.origin {
			b.evictor.InvalidatePrefix(msg.CachePrefix)
		}
		return
	}
	_ = b.hub.Publish(ctx, msg)
}

func decodeEnvelope(payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, err
	}
	if msg.Kind == KindCacheInvalidate {
		if msg.CachePrefix == "" {
			return Message{}, errors.New("realtime: invalidation missing prefix")
		}
		return msg, nil
	}
	if msg.RecipientID == "" || msg.Kind == "" {
		return Message{}, errors.New("realtime: envelope missing recipient or kind")
	}
	return msg, nil
}
