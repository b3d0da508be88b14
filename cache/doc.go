// Package cache provides the caching contracts used by the permission cache
// and its consumers.
//
// # Overview
//
// The package exports three service interfaces and their default implementations:
//
//   - Store: the scalar contract (Get, Set, Del, DelPattern) that dashboard style
//     consumers depend on
//   - KVService: the full Redis wrapper, adding hashes, sets, sorted sets,
//     counters, batch reads, cursor scans and a distributed lock
//   - CacheService: an in-process read-through cache backed by sturdyc
//
// # Basic Usage
//
//	kv, err := cache.NewKVService(cache.DefaultRedisConfig())
//	if err != nil {
//		return err // configuration errors only
//	}
//
//	routes, fromCache, err := cache.ReadThrough(ctx, kv, "dynamicRoutes:42", 30*time.Minute,
//		func(ctx context.Context) ([]Route, bool, error) {
//			routes, err := db.Routes(ctx, 42)
//			return routes, len(routes) > 0, err
//		})
//
// # Availability
//
// NewKVService never dials. The first operation connects and concurrent
// callers share that attempt. When the server is unreachable every operation
// returns an error wrapping ErrUnavailable and the next call tries again, so a
// Redis outage turns every read into a miss instead of failing the caller.
// ReadThrough builds on that: store errors count as a miss and are never
// returned.
//
// # Values
//
// Values go through one codec chosen by configuration (JSON by default,
// msgpack optionally). Every payload carries a one byte codec tag, so a string
// that happens to look like JSON is read back as a string, and a reader
// configured for a different codec still decodes older entries. Set and sorted
// set members are identities and are stored verbatim.
//
// Absence is reported through a found flag and is distinct from a stored
// false, which lets callers cache negative answers.
//
// # Keys
//
// NewDefaultKeySerializer renders key segments joined by ":". Keys are shared
// between processes, so values without a stable rendering (functions,
// channels) are rendered by type name only.
package cache
