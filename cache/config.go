package cache

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-permission-cache/internal/cacheinfra"
)

// Topologies accepted by RedisConfig.Mode.
const (
	ModeStandalone = cacheinfra.ModeStandalone
	ModeSentinel   = cacheinfra.ModeSentinel
	ModeCluster    = cacheinfra.ModeCluster
)

// Codec names accepted by RedisConfig.Codec.
const (
	CodecJSON    = cacheinfra.CodecJSON
	CodecMsgpack = cacheinfra.CodecMsgpack
)

// RedisConfig exposes the KV store connection settings.
type RedisConfig struct {
	Mode          string        `mapstructure:"mode"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Addrs         []string      `mapstructure:"addrs"`
	MasterName    string        `mapstructure:"master_name"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PoolSize      int           `mapstructure:"pool_size"`
	MinIdleConns  int           `mapstructure:"min_idle_conns"`
	MaxRetries    int           `mapstructure:"max_retries"`
	Codec         string        `mapstructure:"codec"`
	ScanBatchSize int64         `mapstructure:"scan_batch_size"`
}

// DefaultRedisConfig returns settings for a local standalone server.
func DefaultRedisConfig() RedisConfig {
	return redisFromInternal(cacheinfra.DefaultRedisConfig())
}

// Validate checks whether the configuration values are valid.
func (c RedisConfig) Validate() error {
	return c.toInternal().Validate()
}

// LocalConfig exposes the in-process cache options.
type LocalConfig struct {
	Capacity             int                 `mapstructure:"capacity"`
	NumShards            int                 `mapstructure:"num_shards"`
	TTL                  time.Duration       `mapstructure:"ttl"`
	EvictionPercentage   int                 `mapstructure:"eviction_percentage"`
	EarlyRefresh         *EarlyRefreshConfig `mapstructure:"early_refresh"`
	MissingRecordStorage bool                `mapstructure:"missing_record_storage"`
	EvictionInterval     time.Duration       `mapstructure:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `mapstructure:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultLocalConfig returns a LocalConfig populated with sensible defaults.
func DefaultLocalConfig() LocalConfig {
	return localFromInternal(cacheinfra.DefaultLocalConfig())
}

// Validate checks whether the configuration values are valid.
func (c LocalConfig) Validate() error {
	return c.toInternal().Validate()
}

// Option configures the KV service.
type Option = cacheinfra.RedisOption

// WithLogger sets the logger used by the KV service.
func WithLogger(logger *slog.Logger) Option {
	return cacheinfra.WithLogger(logger)
}

// NewKVService constructs the Redis backed KV service. It does not connect;
// the first operation does. Only configuration errors are returned.
func NewKVService(cfg RedisConfig, opts ...Option) (KVService, error) {
	svc, err := cacheinfra.NewRedisService(cfg.toInternal(), opts...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// NewCacheService constructs the default in-process cache using the provided configuration.
func NewCacheService(cfg LocalConfig) (CacheService, error) {
	svc, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c RedisConfig) toInternal() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Mode:          c.Mode,
		Host:          c.Host,
		Port:          c.Port,
		Addrs:         c.Addrs,
		MasterName:    c.MasterName,
		Username:      c.Username,
		Password:      c.Password,
		DB:            c.DB,
		DialTimeout:   c.DialTimeout,
		ReadTimeout:   c.ReadTimeout,
		WriteTimeout:  c.WriteTimeout,
		PoolSize:      c.PoolSize,
		MinIdleConns:  c.MinIdleConns,
		MaxRetries:    c.MaxRetries,
		Codec:         c.Codec,
		ScanBatchSize: c.ScanBatchSize,
	}
}

func redisFromInternal(cfg cacheinfra.RedisConfig) RedisConfig {
	return RedisConfig{
		Mode:          cfg.Mode,
		Host:          cfg.Host,
		Port:          cfg.Port,
		Addrs:         cfg.Addrs,
		MasterName:    cfg.MasterName,
		Username:      cfg.Username,
		Password:      cfg.Password,
		DB:            cfg.DB,
		DialTimeout:   cfg.DialTimeout,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		PoolSize:      cfg.PoolSize,
		MinIdleConns:  cfg.MinIdleConns,
		MaxRetries:    cfg.MaxRetries,
		Codec:         cfg.Codec,
		ScanBatchSize: cfg.ScanBatchSize,
	}
}

func (c LocalConfig) toInternal() cacheinfra.LocalConfig {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}

	return cacheinfra.LocalConfig{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func localFromInternal(cfg cacheinfra.LocalConfig) LocalConfig {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: cfg.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: cfg.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     cfg.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      cfg.EarlyRefresh.RetryBaseDelay,
		}
	}

	return LocalConfig{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
}
