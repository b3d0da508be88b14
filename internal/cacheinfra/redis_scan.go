package cacheinfra

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultScanBatchSize is the SCAN COUNT hint used when none is configured.
const DefaultScanBatchSize int64 = 100

// ScanAllKeys walks the keyspace with SCAN until the cursor returns to zero
// and collects every key matching pattern. On a cluster every master is
// scanned. KEYS is never used.
func (s *RedisService) ScanAllKeys(ctx context.Context, pattern string, batchSize int64) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if batchSize <= 0 {
		batchSize = DefaultScanBatchSize
	}

	client, err := s.conn(ctx)
	if err != nil {
		return []string{}, err
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		keys = make([]string, 0)
	)
	err = s.scanPages(ctx, client, pattern, batchSize, func(_ redis.Cmdable, page []string) error {
		mu.Lock()
		defer mu.Unlock()
		for _, key := range page {
			// SCAN may return a key more than once.
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return []string{}, s.fail(ctx, "scan", pattern, err)
	}
	return keys, nil
}

// Keys is ScanAllKeys with the configured batch size.
func (s *RedisService) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.ScanAllKeys(ctx, pattern, s.cfg.scanCount())
}

// DelPattern deletes every key matching pattern, one SCAN page at a time, and
// returns the number of keys removed.
func (s *RedisService) DelPattern(ctx context.Context, pattern string) (int64, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var (
		mu    sync.Mutex
		total int64
	)
	err = s.scanPages(ctx, client, pattern, s.cfg.scanCount(), func(node redis.Cmdable, page []string) error {
		if len(page) == 0 {
			return nil
		}
		cmds, err := node.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range page {
				pipe.Del(ctx, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		var n int64
		for _, cmd := range cmds {
			n += cmd.(*redis.IntCmd).Val()
		}
		mu.Lock()
		total += n
		mu.Unlock()
		return nil
	})
	if err != nil {
		return total, s.fail(ctx, "delpattern", pattern, err)
	}
	return total, nil
}

// scanPages runs the SCAN cursor loop on every node that owns keys and hands
// each page to fn together with the node it came from. fn may run
// concurrently on a cluster.
func (s *RedisService) scanPages(ctx context.Context, client redis.UniversalClient, pattern string, count int64, fn func(node redis.Cmdable, page []string) error) error {
	if cluster, ok := client.(*redis.ClusterClient); ok {
		return cluster.ForEachMaster(ctx, func(ctx context.Context, shard *redis.Client) error {
			return scanNode(ctx, shard, pattern, count, fn)
		})
	}
	return scanNode(ctx, client, pattern, count, fn)
}

func scanNode(ctx context.Context, node redis.Cmdable, pattern string, count int64, fn func(node redis.Cmdable, page []string) error) error {
	var cursor uint64
	for {
		page, next, err := node.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return err
		}
		if err := fn(node, page); err != nil {
			return err
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
