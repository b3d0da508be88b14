package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ClientFactory builds a go-redis client for the given settings. It must not
// perform I/O; the service pings the client itself.
type ClientFactory func(cfg RedisConfig) (redis.UniversalClient, error)

// RedisOption configures a RedisService.
type RedisOption func(*RedisService)

// WithLogger sets the logger used for connection and operation failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClientFactory replaces the default go-redis client constructor.
func WithClientFactory(factory ClientFactory) RedisOption {
	return func(s *RedisService) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// Health is the result of a health check.
type Health struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Latency time.Duration `json:"latency"`
}

// Health statuses.
const (
	HealthUp   = "up"
	HealthDown = "down"
)

// RedisService is a reconnect tolerant handle onto a Redis deployment. The
// connection is established lazily by the first operation and concurrent
// callers share a single connect attempt.
type RedisService struct {
	cfg     RedisConfig
	codec   Codec
	logger  *slog.Logger
	factory ClientFactory

	mu        sync.RWMutex
	client    redis.UniversalClient
	connected bool

	connects singleflight.Group
	attempts atomic.Int64
}

// NewRedisService validates cfg and returns a disconnected service.
// Configuration errors are returned here and nowhere else.
func NewRedisService(cfg RedisConfig, opts ...RedisOption) (*RedisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	s := &RedisService{
		cfg:     cfg,
		codec:   codec,
		logger:  slog.Default(),
		factory: NewRedisClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "redis"))

	return s, nil
}

// NewRedisClient is the default ClientFactory.
func NewRedisClient(cfg RedisConfig) (redis.UniversalClient, error) {
	switch cfg.Mode {
	case "", ModeStandalone:
		return redis.NewClient(&redis.Options{
			Addr:         cfg.Addr(),
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	case ModeSentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.Addrs,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
			MinIdleConns:  cfg.MinIdleConns,
			MaxRetries:    cfg.MaxRetries,
		}), nil
	case ModeCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	default:
		return nil, &ConfigError{Field: "Mode", Message: fmt.Sprintf("unsupported mode %q", cfg.Mode)}
	}
}

// Config returns the resolved connection settings.
func (s *RedisService) Config() RedisConfig {
	return s.cfg
}

// IsConnected reports whether the last connect attempt succeeded and no
// connectivity failure has been observed since.
func (s *RedisService) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ConnectAttempts returns how many times the service pinged the server to
// establish a connection.
func (s *RedisService) ConnectAttempts() int64 {
	return s.attempts.Load()
}

// Connect establishes the connection if needed. Concurrent callers wait on
// the same attempt. Connectivity failures are logged and reported as
// ErrUnavailable; the service stays usable and retries on the next call.
func (s *RedisService) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}

	ch := s.connects.DoChan("connect", func() (any, error) {
		return nil, s.connect(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureConnected is an alias of Connect kept for callers that only need the
// guarantee, not the attempt.
func (s *RedisService) EnsureConnected(ctx context.Context) error {
	return s.Connect(ctx)
}

func (s *RedisService) connect(ctx context.Context) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	client := s.client
	if client == nil {
		c, err := s.factory(s.cfg)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		client = c
		s.client = c
	}
	s.mu.Unlock()

	s.attempts.Add(1)
	start := time.Now()

	pingCtx := ctx
	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("redis connection failed, continuing without cache",
			slog.String("mode", s.mode()),
			slog.Any("error", err),
		)
		return &OpError{Op: "connect", Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("redis connected",
		slog.String("mode", s.mode()),
		slog.Duration("latency", time.Since(start)),
	)
	return nil
}

// Disconnect closes the underlying client. A later operation reconnects.
func (s *RedisService) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.connected = false
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return &OpError{Op: "disconnect", Err: err}
	}
	s.logger.InfoContext(ctx, "redis disconnected")
	return nil
}

// conn returns a connected client, connecting first when needed.
func (s *RedisService) conn(ctx context.Context) (redis.UniversalClient, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil, &OpError{Op: "connect", Err: ErrUnavailable}
	}
	return client, nil
}

// fail logs err and wraps it. Connectivity failures flip the service back to
// disconnected so the next call reconnects.
func (s *RedisService) fail(ctx context.Context, op, key string, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}

	if isConnectivityError(err) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s.logger.ErrorContext(ctx, "redis operation failed",
		slog.String("op", op),
		slog.String("key", key),
		slog.Any("error", err),
	)
	return &OpError{Op: op, Key: key, Err: err}
}

func isConnectivityError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (s *RedisService) mode() string {
	if s.cfg.Mode == "" {
		return ModeStandalone
	}
	return s.cfg.Mode
}

func (s *RedisService) isCluster() bool {
	return s.cfg.Mode == ModeCluster
}

// Ping round-trips to the server.
func (s *RedisService) Ping(ctx context.Context) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return s.fail(ctx, "ping", "", err)
	}
	return nil
}

// HealthCheck pings the server and reports status with latency. It never
// returns an error; failures are reported as HealthDown.
func (s *RedisService) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	if err := s.Ping(ctx); err != nil {
		return Health{Status: HealthDown, Message: err.Error(), Latency: time.Since(start)}
	}
	return Health{Status: HealthUp, Message: "redis is reachable", Latency: time.Since(start)}
}

// Info returns the raw INFO output for the given sections.
func (s *RedisService) Info(ctx context.Context, sections ...string) (string, error) {
	client, err := s.conn(ctx)
	if err != nil {
		return "", err
	}
	info, err := client.Info(ctx, sections...).Result()
	if err != nil {
		return "", s.fail(ctx, "info", strings.Join(sections, ","), err)
	}
	return info, nil
}

// FlushDB removes every key in the selected database.
func (s *RedisService) FlushDB(ctx context.Context) error {
	client, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		return s.fail(ctx, "flushdb", "", err)
	}
	s.logger.WarnContext(ctx, "redis database flushed", slog.Int("db", s.cfg.DB))
	return nil
}
