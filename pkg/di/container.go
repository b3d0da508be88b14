package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/centercache"
	"github.com/goliatone/go-permission-cache/config"
	"github.com/goliatone/go-permission-cache/permission"
	"github.com/goliatone/go-permission-cache/rbacstore"
)

// Container provides dependency injection for the permission cache stack.
// It builds every service once and hands out the same instances, so the KV
// connection and the database pool are shared by all consumers.
type Container struct {
	config        *config.Config
	logger        *slog.Logger
	kv            cache.KVService
	local         cache.CacheService
	keySerializer cache.KeySerializer
	db            *bun.DB
	ownsDB        bool
	store         *rbacstore.Store
	permissions   *permission.Service
	centers       *centercache.Service
}

type options struct {
	logger  *slog.Logger
	db      *bun.DB
	kv      cache.KVService
	loaders map[string]centercache.Loader
}

// Option customizes NewContainer.
type Option func(*options)

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDB uses an already open database instead of opening one from the
// config. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(o *options) {
		o.db = db
	}
}

// WithKVService uses an existing KV service instead of building one.
func WithKVService(kv cache.KVService) Option {
	return func(o *options) {
		o.kv = kv
	}
}

// WithCenterLoader registers a center page loader.
func WithCenterLoader(center string, loader centercache.Loader) Option {
	return func(o *options) {
		if o.loaders == nil {
			o.loaders = map[string]centercache.Loader{}
		}
		o.loaders[center] = loader
	}
}

// NewContainer validates cfg and wires the KV service, the in-process cache,
// the RBAC store and the permission and center caches. The KV service
// connects lazily; the database is opened and pinged here unless WithDB is
// given.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := cfg.Redis.Validate(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	local, err := cache.NewCacheService(cfg.Local)
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}

	kv := o.kv
	if kv == nil {
		kv, err = cache.NewKVService(cfg.Redis, cache.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("kv service: %w", err)
		}
	}

	db, ownsDB := o.db, false
	if db == nil {
		db, err = rbacstore.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		ownsDB = true
	}

	store := rbacstore.New(db)

	centerOpts := []centercache.Option{
		centercache.WithLogger(o.logger),
		centercache.WithTTLs(cfg.Centers.TTLs),
	}
	for center, loader := range o.loaders {
		centerOpts = append(centerOpts, centercache.WithLoader(center, loader))
	}

	return &Container{
		config:        cfg,
		logger:        o.logger,
		kv:            kv,
		local:         local,
		keySerializer: cache.NewDefaultKeySerializer(),
		db:            db,
		ownsDB:        ownsDB,
		store:         store,
		permissions: permission.NewService(kv, store,
			permission.WithLogger(o.logger),
			permission.WithTTL(cfg.Permission),
			permission.WithPathCache(local),
			permission.WithWriter(store),
		),
		centers: centercache.New(kv, centerOpts...),
	}, nil
}

// NewContainerWithDefaults loads configuration from the working directory
// and the environment, then builds the container.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, cfg, opts...)
}

// Config returns the configuration used by this container.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the shared logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// KV returns the singleton KV service.
func (c *Container) KV() cache.KVService {
	return c.kv
}

// CacheService returns the singleton in-process cache.
func (c *Container) CacheService() cache.CacheService {
	return c.local
}

// KeySerializer returns the singleton key serializer instance.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// DB returns the database handle.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Store returns the RBAC store.
func (c *Container) Store() *rbacstore.Store {
	return c.store
}

// Permissions returns the permission cache.
func (c *Container) Permissions() *permission.Service {
	return c.permissions
}

// Centers returns the center page cache.
func (c *Container) Centers() *centercache.Service {
	return c.centers
}

// Close disconnects the KV service and closes the database when the
// container opened it.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.kv.Disconnect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("kv: %w", err))
	}
	if c.ownsDB {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ReadThrough caches the result of load in the container's KV service under
// a key built from prefix and args.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function.
// Example: ReadThrough[Report](ctx, container, "report", time.Minute, load, orgID)
func ReadThrough[T any](ctx context.Context, c *Container, prefix string, ttl time.Duration, load cache.LoadFn[T], args ...any) (T, bool, error) {
	key := c.keySerializer.SerializeKey(prefix, args...)
	return cache.ReadThrough(ctx, c.kv, key, ttl, load)
}
