// Package centercache caches center page payloads (dashboard, task,
// activity and so on) in three tiers on top of the scalar cache contract:
//
//	center:stats:{center}           statistics shared by every user
//	center:role:{center}:{role}     lists shared by a role
//	center:user:{center}:{userId}   data owned by one user
//
// A request is served from the cache when any tier is present, so a new user
// of a warm center gets the shared statistics without touching the source.
// Pass WithForceRefresh to reload and rewrite all tiers.
//
// Only Get, Set, Del and DelPattern are used, so any cache.Store works,
// including the Redis backed KV service.
package centercache
