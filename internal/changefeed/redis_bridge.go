package changefeed

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportsphere/helpdesk/internal/observability"
)

// RedisBridge relays signals between processes. Publish sends to a redis
// channel; Run forwards everything on that channel to the local target.
type RedisBridge struct {
	client    *redis.Client
	channel   string
	target    Publisher
	reconnect time.Duration
	logger    *zap.Logger
}

// NewRedisBridge builds a bridge over channel.
func NewRedisBridge(client *redis.Client, channel string, target Publisher, reconnect time.Duration, logger *zap.Logger) *RedisBridge {
	if reconnect <= 0 {
		reconnect = 2 * time.Second
	}
	return &RedisBridge{
		client:    client,
		channel:   channel,
		target:    target,
		reconnect: reconnect,
		logger:    observability.OrNop(logger),
	}
}

// Publish implements Publisher.
func (b *RedisBridge) Publish(ctx context.Context, s Signal) error {
	payload, err := EncodeSignal(s)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run relays redis messages into the target until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	for {
		err := b.relay(ctx)
		if ctx.Err() != nil {
			return nil
		}
		b.logger.Warn("redis change relay interrupted", zap.String("channel", b.channel), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.reconnect):
		}
	}
}

func (b *RedisBridge) relay(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("relaying redis changes", zap.String("channel", b.channel))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		signal, err := DecodeSignal([]byte(msg.Payload))
		if err != nil {
			b.logger.Warn("dropping malformed change payload", zap.String("payload", msg.Payload), zap.Error(err))
			continue
		}
		if err := b.target.Publish(ctx, signal); err != nil {
			b.logger.Warn("publish change signal", zap.String("table", signal.Table), zap.Error(err))
		}
	}
}
