package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

// holdTTL bounds how long a crashed holder can pin a key.
const holdTTL = 2 * time.Minute

// pollInterval is the retry cadence for contended keys. Redis SET NX gives
// no arrival-order queue, so fairness is approximated by bounded polling.
const pollInterval = 50 * time.Millisecond

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// RedisLocker implements Locker across service instances with a SET NX
// token and a compare-and-delete unlock. Same contract as KeyedLocker.
type RedisLocker struct {
	cli    *redis.Client
	logger *zap.Logger
}

// NewRedisLocker creates a Redis-backed lock broker.
func NewRedisLocker(cli *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{cli: cli, logger: logger}
}

// WithLock implements Locker.
func (l *RedisLocker) WithLock(ctx context.Context, key string, timeout time.Duration, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		ok, err := l.cli.SetNX(ctx, key, token, holdTTL).Result()
		if err == nil && ok {
			break
		}
		if err != nil {
			l.logger.Warn("redis lock attempt failed", zap.String("key", key), zap.Error(err))
		}
		if time.Now().After(deadline) {
			lockTimeoutsTotal.Inc()
			return domain.NewLockTimeoutError(key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	lockWaitSeconds.Observe(time.Since(start).Seconds())
	lockAcquisitionsTotal.Inc()
	locksActive.Inc()

	defer func() {
		locksActive.Dec()
		// Unlock on a fresh context so a cancelled request still releases.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := unlockScript.Run(unlockCtx, l.cli, []string{key}, token).Result(); err != nil {
			l.logger.Error("redis unlock failed", zap.String("key", key), zap.Error(err))
		}
	}()

	return fn(ctx)
}
