package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ScoredMember is a sorted set member with its score.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// HSet encodes value and stores it under field.
func (s *RedisService) HSet(ctx context.Context, key, field string, value any) error {
	data, err := Encode(s.codec, value)
	if err != nil {
		return &OpError{Op: "hset", Key: key, Err: err}
	}
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := client.HSet(ctx, key, field, data).Err(); err != nil {
		return s.fail(ctx, "hset", key, err)
	}
	return nil
}

// HGet decodes field into dest. found is false when the key or field is absent.
func (s *RedisService) HGet(ctx context.Context, key, field string, dest any) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	data, err := client.HGet(ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(ctx, "hget", key, err)
	}
	if err := Decode(data, dest); err != nil {
		return false, s.fail(ctx, "hget", key, err)
	}
	return true, nil
}

// HGetAll returns every field of the hash as raw tagged values.
func (s *RedisService) HGetAll(ctx context.Context, key string) (map[string]Value, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.fail(ctx, "hgetall", key, err)
	}
	out := make(map[string]Value, len(fields))
	for field, raw := range fields {
		out[field] = Value(raw)
	}
	return out, nil
}

// HDel removes fields from the hash.
func (s *RedisService) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.HDel(ctx, key, fields...).Result()
	if err != nil {
		return 0, s.fail(ctx, "hdel", key, err)
	}
	return n, nil
}

// SAdd adds members to the set. Members are raw string identities stored
// verbatim, not codec encoded values; encode structured data before adding it.
func (s *RedisService) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.SAdd(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, s.fail(ctx, "sadd", key, err)
	}
	return n, nil
}

// SMembers returns all members of the set.
func (s *RedisService) SMembers(ctx context.Context, key string) ([]string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []string{}, err
	}
	members, err := client.SMembers(ctx, key).Result()
	if err != nil {
		return []string{}, s.fail(ctx, "smembers", key, err)
	}
	return members, nil
}

// SIsMember reports whether member belongs to the set.
func (s *RedisService) SIsMember(ctx context.Context, key, member string) (bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	ok, err := client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, s.fail(ctx, "sismember", key, err)
	}
	return ok, nil
}

// SRem removes members from the set.
func (s *RedisService) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.SRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, s.fail(ctx, "srem", key, err)
	}
	return n, nil
}

// SCard returns the set cardinality.
func (s *RedisService) SCard(ctx context.Context, key string) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.SCard(ctx, key).Result()
	if err != nil {
		return 0, s.fail(ctx, "scard", key, err)
	}
	return n, nil
}

// ZAdd adds or updates scored members. Like SAdd, each member is a raw string
// identity stored verbatim and is not passed through the codec.
func (s *RedisService) ZAdd(ctx context.Context, key string, members ...ScoredMember) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	zs := make([]redis.Z, len(members))
	for i, m := range members {
		zs[i] = redis.Z{Score: m.Score, Member: m.Member}
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.ZAdd(ctx, key, zs...).Result()
	if err != nil {
		return 0, s.fail(ctx, "zadd", key, err)
	}
	return n, nil
}

// ZRange returns members by ascending rank, stop inclusive.
func (s *RedisService) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []string{}, err
	}
	members, err := client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return []string{}, s.fail(ctx, "zrange", key, err)
	}
	return members, nil
}

// ZRangeWithScores is ZRange with scores.
func (s *RedisService) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []ScoredMember{}, err
	}
	zs, err := client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return []ScoredMember{}, s.fail(ctx, "zrange", key, err)
	}
	return fromZ(zs), nil
}

// ZRevRange returns members by descending rank, stop inclusive.
func (s *RedisService) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []string{}, err
	}
	members, err := client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return []string{}, s.fail(ctx, "zrevrange", key, err)
	}
	return members, nil
}

// ZRevRangeWithScores is ZRevRange with scores.
func (s *RedisService) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []ScoredMember{}, err
	}
	zs, err := client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return []ScoredMember{}, s.fail(ctx, "zrevrange", key, err)
	}
	return fromZ(zs), nil
}

// ZRevRank returns the zero based descending rank of member. found is false
// when the member is not in the set.
func (s *RedisService) ZRevRank(ctx context.Context, key, member string) (int64, bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, false, err
	}
	rank, err := client.ZRevRank(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.fail(ctx, "zrevrank", key, err)
	}
	return rank, true, nil
}

// ZScore returns the score of member. found is false when it is absent.
func (s *RedisService) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, false, err
	}
	score, err := client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.fail(ctx, "zscore", key, err)
	}
	return score, true, nil
}

// ZCard returns the sorted set cardinality.
func (s *RedisService) ZCard(ctx context.Context, key string) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, s.fail(ctx, "zcard", key, err)
	}
	return n, nil
}

// ZRangeByScore returns members with min <= score <= max in ascending order.
// Bounds use Redis syntax, so "-inf", "+inf" and "(5" are accepted.
func (s *RedisService) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []string{}, err
	}
	members, err := client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return []string{}, s.fail(ctx, "zrangebyscore", key, err)
	}
	return members, nil
}

// ZRangeByScoreWithScores is ZRangeByScore with scores.
func (s *RedisService) ZRangeByScoreWithScores(ctx context.Context, key, min, max string) ([]ScoredMember, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return []ScoredMember{}, err
	}
	zs, err := client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return []ScoredMember{}, s.fail(ctx, "zrangebyscore", key, err)
	}
	return fromZ(zs), nil
}

// ZRemRangeByRank removes members between the ranks, stop inclusive.
func (s *RedisService) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.ZRemRangeByRank(ctx, key, start, stop).Result()
	if err != nil {
		return 0, s.fail(ctx, "zremrangebyrank", key, err)
	}
	return n, nil
}

// ZRem removes members from the sorted set.
func (s *RedisService) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.ZRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, s.fail(ctx, "zrem", key, err)
	}
	return n, nil
}

// ZIncrBy adds delta to the score of member and returns the new score.
func (s *RedisService) ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	score, err := client.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, s.fail(ctx, "zincrby", key, err)
	}
	return score, nil
}

func fromZ(zs []redis.Z) []ScoredMember {
	out := make([]ScoredMember, len(zs))
	for i, z := range zs {
		out[i] = ScoredMember{Member: memberString(z.Member), Score: z.Score}
	}
	return out
}

func memberString(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case []byte:
		return string(m)
	case int64:
		return strconv.FormatInt(m, 10)
	default:
		return fmt.Sprint(m)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
