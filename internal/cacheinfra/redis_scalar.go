package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Get decodes the value stored at key into dest. found is false when the key
// does not exist, which is distinct from a stored false or null.
func (s *RedisService) Get(ctx context.Context, key string, dest any) (bool, error) {
	value, err := s.GetBytes(ctx, key)
	if err != nil || !value.Found() {
		return false, err
	}
	if err := value.Decode(dest); err != nil {
		return false, s.fail(ctx, "get", key, err)
	}
	return true, nil
}

// GetBytes returns the raw tagged payload. A nil Value means the key is absent.
func (s *RedisService) GetBytes(ctx context.Context, key string) (Value, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.logger.DebugContext(ctx, "cache miss", slog.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(ctx, "get", key, err)
	}
	return Value(data), nil
}

// Set encodes value and stores it. A ttl of zero or less stores the key
// without expiry.
func (s *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := Encode(s.codec, value)
	if err != nil {
		return &OpError{Op: "set", Key: key, Err: err}
	}

	client, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := client.Set(ctx, key, data, expiration(ttl)).Err(); err != nil {
		return s.fail(ctx, "set", key, err)
	}
	return nil
}

// Del removes keys and returns how many existed.
func (s *RedisService) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	n, err := s.del(ctx, client, keys)
	if err != nil {
		return 0, s.fail(ctx, "del", strings.Join(keys, ","), err)
	}
	return n, nil
}

// del issues DEL, splitting per key on a cluster where keys may hash to
// different slots.
func (s *RedisService) del(ctx context.Context, client redis.UniversalClient, keys []string) (int64, error) {
	if !s.isCluster() || len(keys) == 1 {
		return client.Del(ctx, keys...).Result()
	}

	cmds, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, cmd := range cmds {
		total += cmd.(*redis.IntCmd).Val()
	}
	return total, nil
}

// Exists reports whether key is present.
func (s *RedisService) Exists(ctx context.Context, key string) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.fail(ctx, "exists", key, err)
	}
	return n > 0, nil
}

// Expire sets a ttl on key. It returns false when the key does not exist.
func (s *RedisService) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	ok, err := client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, s.fail(ctx, "expire", key, err)
	}
	return ok, nil
}

// TTL returns the remaining time to live in seconds, -1 for a key without
// expiry and -2 for a missing key.
func (s *RedisService) TTL(ctx context.Context, key string) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return -2, err
	}
	d, err := client.TTL(ctx, key).Result()
	if err != nil {
		return -2, s.fail(ctx, "ttl", key, err)
	}
	if d < 0 {
		return int64(d), nil
	}
	return int64(d / time.Second), nil
}

// Incr increments the counter at key by one.
func (s *RedisService) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

// Decr decrements the counter at key by one.
func (s *RedisService) Decr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, -1)
}

// IncrBy adds delta to the counter at key. Counters are stored as plain
// integers, not through the codec.
func (s *RedisService) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, s.fail(ctx, "incrby", key, err)
	}
	return n, nil
}

// MGetRaw returns one Value per key, nil for keys that do not exist.
func (s *RedisService) MGetRaw(ctx context.Context, keys ...string) ([]Value, error) {
	if len(keys) == 0 {
		return []Value{}, nil
	}

	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Value, len(keys))

	if s.isCluster() {
		cmds, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range keys {
				pipe.Get(ctx, key)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, s.fail(ctx, "mget", strings.Join(keys, ","), err)
		}
		for i, cmd := range cmds {
			if data, err := cmd.(*redis.StringCmd).Bytes(); err == nil {
				out[i] = Value(data)
			}
		}
		return out, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.fail(ctx, "mget", strings.Join(keys, ","), err)
	}
	for i, v := range values {
		switch raw := v.(type) {
		case string:
			out[i] = Value(raw)
		case []byte:
			out[i] = Value(raw)
		}
	}
	return out, nil
}

// MSet encodes and stores every entry. With a positive ttl the writes are
// pipelined SETs so each key gets the expiry.
func (s *RedisService) MSet(ctx context.Context, values map[string]any, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		data, err := Encode(s.codec, value)
		if err != nil {
			return &OpError{Op: "mset", Key: key, Err: err}
		}
		encoded[key] = data
	}

	client, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 && !s.isCluster() {
		pairs := make([]any, 0, len(encoded)*2)
		for key, data := range encoded {
			pairs = append(pairs, key, data)
		}
		if err := client.MSet(ctx, pairs...).Err(); err != nil {
			return s.fail(ctx, "mset", fmt.Sprintf("%d keys", len(encoded)), err)
		}
		return nil
	}

	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range encoded {
			pipe.Set(ctx, key, data, expiration(ttl))
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, "mset", fmt.Sprintf("%d keys", len(encoded)), err)
	}
	return nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
