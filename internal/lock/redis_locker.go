package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "installer:lock:"

// Release only when the stored token is still ours; an expired lock may have been
// taken over by another replica.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// ErrLockNotAcquired is returned when the lock could not be taken before ctx expired.
var ErrLockNotAcquired = errors.New("lock not acquired")

// RedisLocker serializes per-request operations across orchestrator replicas.
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryEvery time.Duration
	logger     *zap.Logger
}

// NewRedisLocker builds a distributed locker. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, retryEvery: 50 * time.Millisecond, logger: logger}
}

// Lock spins on SET NX until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(key, redisKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("release request lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// keepAlive extends the TTL while the holder runs, so a slow operation keeps the lock.
// The TTL still bounds how long a crashed holder blocks others.
func (l *RedisLocker) keepAlive(key, redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(refreshInterval(l.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval(l.ttl))
		extended, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.Warn("extend request lock", zap.String("key", key), zap.Error(err))
			continue
		}
		if extended == 0 {
			l.logger.Error("request lock lost before release", zap.String("key", key))
			return
		}
	}
}

func refreshInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}
