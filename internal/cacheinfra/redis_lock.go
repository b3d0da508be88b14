package cacheinfra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock defaults.
const (
	LockKeyPrefix         = "lock:"
	DefaultLockTTL        = 30 * time.Second
	DefaultLockRetryTimes = 3
	DefaultLockRetryDelay = 100 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held distributed lock. Token identifies the holder.
type Lock struct {
	Name  string        `json:"name"`
	Key   string        `json:"key"`
	Token string        `json:"token"`
	TTL   time.Duration `json:"ttl"`
}

// LockKey returns the store key guarding name.
func LockKey(name string) string {
	return LockKeyPrefix + name
}

// AcquireLock tries to create the lock with SET NX and an expiry. It makes up
// to retryTimes attempts with a fixed retryDelay between them and gives up
// early when ctx is done. It never returns an error: a store failure simply
// means the lock was not acquired.
func (s *RedisService) AcquireLock(ctx context.Context, name string, ttl time.Duration, retryTimes int, retryDelay time.Duration) (Lock, bool) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if retryTimes <= 0 {
		retryTimes = 1
	}
	if retryDelay < 0 {
		retryDelay = 0
	}

	lock := Lock{
		Name:  name,
		Key:   LockKey(name),
		Token: fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()),
		TTL:   ttl,
	}

	for attempt := 1; attempt <= retryTimes; attempt++ {
		client, err := s.conn(ctx)
		if err == nil {
			ok, setErr := client.SetNX(ctx, lock.Key, lock.Token, ttl).Result()
			if setErr != nil {
				_ = s.fail(ctx, "acquirelock", lock.Key, setErr)
			} else if ok {
				return lock, true
			}
		}

		if attempt == retryTimes {
			break
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Lock{}, false
		case <-timer.C:
		}
	}

	s.logger.DebugContext(ctx, "lock not acquired",
		slog.String("key", lock.Key),
		slog.Int("attempts", retryTimes),
	)
	return Lock{}, false
}

// ReleaseLock deletes the lock if it is still held with lock.Token. It
// returns false with ErrLockNotHeld when the lock expired or was taken over.
func (s *RedisService) ReleaseLock(ctx context.Context, lock Lock) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	n, err := releaseScript.Run(ctx, client, []string{lock.Key}, lock.Token).Int64()
	if err != nil {
		return false, s.fail(ctx, "releaselock", lock.Key, err)
	}
	if n == 0 {
		return false, &OpError{Op: "releaselock", Key: lock.Key, Err: ErrLockNotHeld}
	}
	return true, nil
}

// ForceReleaseLock deletes the lock for name regardless of holder. It is meant
// for operators clearing a lock left behind by a crashed process.
func (s *RedisService) ForceReleaseLock(ctx context.Context, name string) (bool, error) {
	n, err := s.Del(ctx, LockKey(name))
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.WarnContext(ctx, "lock force released", slog.String("key", LockKey(name)))
	}
	return n > 0, nil
}
