package tariff

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/acme/call-billing/pkg/logger"
)

// RedisBroadcaster fans rule-cache invalidations out over a Redis pub/sub
// channel so every process pricing calls reloads its snapshot.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster constructs a broadcaster on the given channel.
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

// BroadcastInvalidation publishes an invalidation marker.
func (b *RedisBroadcaster) BroadcastInvalidation(ctx context.Context) error {
	if err := b.client.Publish(ctx, b.channel, "invalidate").Err(); err != nil {
		return fmt.Errorf("tariff broadcast: publish: %w", err)
	}
	return nil
}

// InvalidationListener drops the local rule cache whenever an invalidation
// arrives on the channel.
type InvalidationListener struct {
	client  *redis.Client
	channel string
	cache   Invalidator
	log     *logger.Logger
}

// NewInvalidationListener constructs a listener.
func NewInvalidationListener(client *redis.Client, channel string, cache Invalidator, log *logger.Logger) *InvalidationListener {
	return &InvalidationListener{client: client, channel: channel, cache: cache, log: log}
}

// Run subscribes and invalidates until ctx is done.
func (l *InvalidationListener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.cache.Invalidate()
			l.log.Debug("tariff cache invalidated", zap.String("channel", msg.Channel))
		}
	}
}
