package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

// ErrLockNotAcquired matches series.ErrSeriesBusy with errors.Is.
var ErrLockNotAcquired = fmt.Errorf("%w: lock not acquired", series.ErrSeriesBusy)

// SeriesLocker guards commits and cancellations with one Redis key per
// series (or per preview, before a series identifier exists).
type SeriesLocker struct {
	client *redis.Client
	ttl    time.Duration
}

var _ series.Locker = (*SeriesLocker)(nil)

func NewSeriesLocker(client *redis.Client, ttl time.Duration) *SeriesLocker {
	return &SeriesLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *SeriesLocker) WithSeriesLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockKey := "lock:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire series lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// released with a fresh context so a cancelled request still unlocks
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.release(relCtx, lockKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *SeriesLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release series lock: %w", err)
	}
	return nil
}
