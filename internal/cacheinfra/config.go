package cacheinfra

import (
	"errors"
	"net"
	"sort"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Redis topologies.
const (
	ModeStandalone = "standalone"
	ModeSentinel   = "sentinel"
	ModeCluster    = "cluster"
)

// RedisConfig holds the connection settings for the KV store. It is resolved
// once and reused for every reconnect.
type RedisConfig struct {
	// Mode selects the topology. Empty means standalone.
	Mode string `mapstructure:"mode"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Addrs lists seed nodes for cluster mode or sentinel addresses for
	// sentinel mode. In standalone mode the first entry overrides Host/Port.
	Addrs      []string `mapstructure:"addrs"`
	MasterName string   `mapstructure:"master_name"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`

	// Codec names the value codec used for writes: "json" or "msgpack".
	Codec string `mapstructure:"codec"`

	// ScanBatchSize is the COUNT hint used by Keys and DelPattern.
	ScanBatchSize int64 `mapstructure:"scan_batch_size"`
}

// DefaultRedisConfig returns settings for a local standalone server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Mode:          ModeStandalone,
		Host:          "127.0.0.1",
		Port:          6379,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		PoolSize:      10,
		MaxRetries:    3,
		Codec:         CodecJSON,
		ScanBatchSize: 100,
	}
}

// Validate checks the settings. Failures are configuration errors and are
// never retried.
func (c RedisConfig) Validate() error {
	// the topology decides which of the other fields are required
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.In(ModeStandalone, ModeSentinel, ModeCluster)),
	); err != nil {
		return toConfigError(err)
	}

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.When(c.isStandalone() && len(c.Addrs) == 0, validation.Required)),
		validation.Field(&c.Port, validation.When(c.isStandalone() && len(c.Addrs) == 0, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&c.Addrs, validation.When(!c.isStandalone(), validation.Required)),
		validation.Field(&c.MasterName, validation.When(c.Mode == ModeSentinel, validation.Required)),
		validation.Field(&c.DB, validation.Min(0), validation.Max(15), validation.When(c.Mode == ModeCluster, validation.In(0))),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.MinIdleConns, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(-1)),
		validation.Field(&c.ScanBatchSize, validation.Min(int64(0))),
		validation.Field(&c.Codec, validation.In(CodecJSON, CodecMsgpack)),
	)
	if err != nil {
		return toConfigError(err)
	}

	if c.isStandalone() && len(c.Addrs) > 0 {
		if _, _, splitErr := net.SplitHostPort(c.Addrs[0]); splitErr != nil {
			return &ConfigError{Field: "Addrs", Message: splitErr.Error()}
		}
	}
	return nil
}

func (c RedisConfig) isStandalone() bool {
	return c.Mode == "" || c.Mode == ModeStandalone
}

// Addr returns the standalone address.
func (c RedisConfig) Addr() string {
	if len(c.Addrs) > 0 {
		return c.Addrs[0]
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// scanCount returns the SCAN COUNT hint, falling back to the default.
func (c RedisConfig) scanCount() int64 {
	if c.ScanBatchSize > 0 {
		return c.ScanBatchSize
	}
	return DefaultScanBatchSize
}

// LocalConfig holds the configuration for the in-process sturdyc cache.
type LocalConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int `mapstructure:"capacity"`

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int `mapstructure:"num_shards"`

	// TTL is the default time-to-live for cached entries.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EarlyRefresh configures early refresh behavior. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig `mapstructure:"early_refresh"`

	// MissingRecordStorage makes the cache remember keys whose fetch reported
	// ErrNotFound, so unknown lookups stop reaching the source.
	MissingRecordStorage bool `mapstructure:"missing_record_storage"`

	// EvictionInterval sets how often the cache checks for expired entries.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultLocalConfig returns a LocalConfig sized for path lookups.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		Capacity:             10000,
		NumShards:            64,
		TTL:                  5 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions maps the optional settings onto sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c LocalConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c LocalConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return toConfigError(err)
	}

	if e := c.EarlyRefresh; e != nil {
		err := validation.ValidateStruct(e,
			validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.MaxAsyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0))),
			validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0))),
		)
		if err != nil {
			cfgErr := toConfigError(err)
			var ce *ConfigError
			if errors.As(cfgErr, &ce) {
				ce.Field = "EarlyRefresh." + ce.Field
			}
			return cfgErr
		}
	}
	return nil
}

// toConfigError reduces ozzo validation errors to the first failing field so
// callers get a stable, single ConfigError.
func toConfigError(err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Field: "config", Message: err.Error()}
	}

	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	first := fields[0]
	return &ConfigError{Field: first, Message: verrs[first].Error()}
}
