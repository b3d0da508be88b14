package cache

import "github.com/goliatone/go-permission-cache/internal/cacheinfra"

// Types shared with the Redis implementation.
type (
	Value        = cacheinfra.Value
	ScoredMember = cacheinfra.ScoredMember
	Lock         = cacheinfra.Lock
	Health       = cacheinfra.Health
	Codec        = cacheinfra.Codec
	OpError      = cacheinfra.OpError
	ConfigError  = cacheinfra.ConfigError
)

var (
	ErrUnavailable       = cacheinfra.ErrUnavailable
	ErrCorruptValue      = cacheinfra.ErrCorruptValue
	ErrNotFound          = cacheinfra.ErrNotFound
	ErrInvalidResultType = cacheinfra.ErrInvalidResultType
	ErrLockNotHeld       = cacheinfra.ErrLockNotHeld
)

// Health statuses.
const (
	HealthUp   = cacheinfra.HealthUp
	HealthDown = cacheinfra.HealthDown
)

// Lock defaults.
const (
	DefaultLockTTL        = cacheinfra.DefaultLockTTL
	DefaultLockRetryTimes = cacheinfra.DefaultLockRetryTimes
	DefaultLockRetryDelay = cacheinfra.DefaultLockRetryDelay
)

// LockKey returns the store key guarding name.
func LockKey(name string) string {
	return cacheinfra.LockKey(name)
}

// Encode serializes v with codec and prefixes the codec tag.
func Encode(codec Codec, v any) ([]byte, error) {
	return cacheinfra.Encode(codec, v)
}

// Decode reads a tagged payload into dest.
func Decode(data []byte, dest any) error {
	return cacheinfra.Decode(data, dest)
}

// JSONCodec returns the default value codec.
func JSONCodec() Codec { return cacheinfra.JSONCodec() }

// MsgpackCodec returns the msgpack value codec.
func MsgpackCodec() Codec { return cacheinfra.MsgpackCodec() }
