package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/permission"
	"github.com/goliatone/go-permission-cache/rbacstore"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PERMCACHE"

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Redis      cache.RedisConfig   `mapstructure:"redis"`
	Local      cache.LocalConfig   `mapstructure:"local"`
	Database   rbacstore.DBConfig  `mapstructure:"database"`
	Permission permission.TTLTable `mapstructure:"permission"`
	Centers    CentersConfig       `mapstructure:"centers"`
	Log        LogConfig           `mapstructure:"log"`
}

// CentersConfig overrides center cache lifetimes by center name.
type CentersConfig struct {
	TTLs map[string]time.Duration `mapstructure:"ttls"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Redis:      cache.DefaultRedisConfig(),
		Local:      cache.DefaultLocalConfig(),
		Database:   rbacstore.DefaultDBConfig(),
		Permission: permission.DefaultTTLTable(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a file and environment variables.
// Environment variables use the prefix "PERMCACHE" and the dot character
// in keys is replaced by an underscore. For example, "redis.password"
// becomes "PERMCACHE_REDIS_PASSWORD".
//
// With an empty path, "permcache.{yaml,json,toml}" is looked up in the
// working directory and skipped when absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("permcache")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Local.Validate(); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if _, err := c.Log.level(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(c.Level))
	return level, err
}

// Logger builds a logger writing to w.
func (c LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
