package cache

import (
	"context"
	"errors"
	"time"
)

// KeySerializer builds a cache key from a prefix and arbitrary args.
// It is responsible for producing keys that are stable across processes.
type KeySerializer interface {
	SerializeKey(prefix string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// LoadFn loads a value for ReadThrough. cacheable reports whether the result
// may be written back; a transient or suspicious result should not be.
type LoadFn[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// Store is the scalar cache contract. Consumers outside the permission cache
// only ever need these four operations.
type Store interface {
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	DelPattern(ctx context.Context, pattern string) (int64, error)
}

// KeyScanner lists keys with a cursor based scan.
type KeyScanner interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// BatchReader reads many keys in one round trip.
type BatchReader interface {
	MGetRaw(ctx context.Context, keys ...string) ([]Value, error)
}

// KVService is the full Redis wrapper surface.
type KVService interface {
	Store
	KeyScanner
	BatchReader

	Connect(ctx context.Context) error
	EnsureConnected(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	GetBytes(ctx context.Context, key string) (Value, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (int64, error)

	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	HSet(ctx context.Context, key, field string, value any) error
	HGet(ctx context.Context, key, field string, dest any) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]Value, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)

	// Set and sorted set members are raw strings, never codec encoded.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SCard(ctx context.Context, key string) (int64, error)

	ZAdd(ctx context.Context, key string, members ...ScoredMember) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	ZRevRank(ctx context.Context, key, member string) (int64, bool, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error)
	ZRangeByScoreWithScores(ctx context.Context, key, min, max string) ([]ScoredMember, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) (int64, error)
	ZRem(ctx context.Context, key string, members ...string) (int64, error)
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)

	MSet(ctx context.Context, values map[string]any, ttl time.Duration) error
	ScanAllKeys(ctx context.Context, pattern string, batchSize int64) ([]string, error)

	AcquireLock(ctx context.Context, name string, ttl time.Duration, retryTimes int, retryDelay time.Duration) (Lock, bool)
	ReleaseLock(ctx context.Context, lock Lock) (bool, error)
	ForceReleaseLock(ctx context.Context, name string) (bool, error)

	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) Health
	Info(ctx context.Context, sections ...string) (string, error)
	FlushDB(ctx context.Context) error
}

// CacheService exposes the in-process read-through operations.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper around CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// Get decodes key into a T. found is false when the key is absent.
func Get[T any](ctx context.Context, store Store, key string) (value T, found bool, err error) {
	found, err = store.Get(ctx, key, &value)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return value, true, nil
}

// HashReader reads single hash fields.
type HashReader interface {
	HGet(ctx context.Context, key, field string, dest any) (bool, error)
}

// HGet decodes one hash field into a T. found is false when the key or the
// field is absent.
func HGet[T any](ctx context.Context, reader HashReader, key, field string) (value T, found bool, err error) {
	found, err = reader.HGet(ctx, key, field, &value)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return value, true, nil
}

// MGet decodes many keys at once. Missing keys are nil in the result.
func MGet[T any](ctx context.Context, reader BatchReader, keys ...string) ([]*T, error) {
	raw, err := reader.MGetRaw(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(raw))
	for i, v := range raw {
		if !v.Found() {
			continue
		}
		var item T
		if err := v.Decode(&item); err != nil {
			return nil, &OpError{Op: "mget", Key: keys[i], Err: err}
		}
		out[i] = &item
	}
	return out, nil
}

// ReadThrough returns the cached value at key or runs load and caches what it
// returns for ttl. Store failures are treated as a miss on read and ignored on
// write, so an unreachable store degrades to always loading. Errors from load
// are returned unchanged and nothing is cached.
func ReadThrough[T any](ctx context.Context, store Store, key string, ttl time.Duration, load LoadFn[T]) (value T, fromCache bool, err error) {
	if cached, found, getErr := Get[T](ctx, store, key); getErr == nil && found {
		return cached, true, nil
	}

	value, cacheable, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if cacheable {
		// write failures are logged by the store
		_ = store.Set(ctx, key, value, ttl)
	}
	return value, false, nil
}

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
