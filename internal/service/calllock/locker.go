package calllock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Locker serializes per-call read-modify-write cycles across processes using
// a Redis mutex. Two writers racing on the same call id would otherwise both
// observe "no existing call" and create it twice.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewLocker constructs a call locker.
func NewLocker(client *redis.Client, ttl, retry time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Locker{client: client, ttl: ttl, retry: retry}
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Acquire blocks until the call's lock is held or ctx is done, and returns
// the release function. The token guard in the release script ensures a
// holder whose TTL expired cannot delete a successor's lock.
func (l *Locker) Acquire(ctx context.Context, callID int64) (func(), error) {
	key := l.key(callID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("call lock acquire: %w", err)
		}
		if ok {
			release := func() {
				if _, err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Result(); err != nil && err != redis.Nil {
					// Lock expires on its own; nothing more to do.
					return
				}
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) key(callID int64) string {
	return fmt.Sprintf("billing:call:%d:lock", callID)
}
