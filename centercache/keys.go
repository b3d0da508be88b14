package centercache

import (
	"time"

	"github.com/goliatone/go-permission-cache/cache"
)

// Key prefixes for the three tiers.
const (
	PrefixStats = "center:stats:"
	PrefixRole  = "center:role:"
	PrefixUser  = "center:user:"
)

// Known centers.
const (
	Dashboard    = "dashboard"
	Task         = "task"
	Activity     = "activity"
	Personnel    = "personnel"
	Marketing    = "marketing"
	Enrollment   = "enrollment"
	CustomerPool = "customer-pool"
	System       = "system"
)

// DefaultTTL applies to centers missing from the TTL table.
const DefaultTTL = 5 * time.Minute

// DefaultTTLs returns the lifetime of each known center.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		Dashboard:    5 * time.Minute,
		Task:         3 * time.Minute,
		Activity:     5 * time.Minute,
		Personnel:    10 * time.Minute,
		Marketing:    10 * time.Minute,
		Enrollment:   5 * time.Minute,
		CustomerPool: 5 * time.Minute,
		System:       30 * time.Minute,
	}
}

var keys = cache.NewDefaultKeySerializer()

// StatsKey is "center:stats:{center}".
func StatsKey(center string) string {
	return keys.SerializeKey(PrefixStats, canonicalCenter(center))
}

// RoleKey is "center:role:{center}:{role}".
func RoleKey(center, role string) string {
	return keys.SerializeKey(PrefixRole, canonicalCenter(center), role)
}

// UserKey is "center:user:{center}:{userId}".
func UserKey(center string, userID int64) string {
	return keys.SerializeKey(PrefixUser, canonicalCenter(center), userID)
}
