package centercache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/internal/logctx"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrUnknownCenter is returned when no loader is given or registered for a
// center.
var ErrUnknownCenter = errors.New("centercache: unknown center")

// Data is the payload of a center page. Each section is cached under its own
// tier: Statistics is shared by everyone, List by everyone with the same
// role, UserSpecific by one user. Nil sections are not written.
//
// Sections read back from the cache are in their decoded generic form
// (maps, slices, strings, float64), not the loader's concrete types.
type Data struct {
	Statistics   any `json:"statistics,omitempty" msgpack:"statistics,omitempty"`
	List         any `json:"list,omitempty" msgpack:"list,omitempty"`
	UserSpecific any `json:"userSpecific,omitempty" msgpack:"userSpecific,omitempty"`
}

func (d Data) empty() bool {
	return d.Statistics == nil && d.List == nil && d.UserSpecific == nil
}

// Meta describes how a result was produced.
type Meta struct {
	FromCache    bool          `json:"fromCache"`
	ResponseTime time.Duration `json:"responseTime"`
	UserID       int64         `json:"userId"`
	UserRole     string        `json:"userRole"`
}

// Result is what GetCenterData returns.
type Result struct {
	Data
	Meta Meta `json:"meta"`
}

// Request identifies who is asking for which center.
type Request struct {
	Center string
	UserID int64
	Role   string
}

// Loader builds a center payload from the source of truth.
type Loader func(ctx context.Context, req Request) (Data, error)

// Service caches center page payloads on top of the scalar cache contract.
type Service struct {
	store   cache.Store
	ttls    map[string]time.Duration
	loaders *xsync.MapOf[string, Loader]
	stats   *xsync.MapOf[string, *counters]
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the fallback logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTTLs overrides the lifetime of the named centers.
func WithTTLs(ttls map[string]time.Duration) Option {
	return func(s *Service) {
		for center, ttl := range ttls {
			if ttl > 0 {
				s.ttls[canonicalCenter(center)] = ttl
			}
		}
	}
}

// WithLoader registers the loader used when GetCenterData gets none.
func WithLoader(center string, loader Loader) Option {
	return func(s *Service) {
		s.Register(center, loader)
	}
}

// New builds a Service backed by store.
func New(store cache.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		ttls:    DefaultTTLs(),
		loaders: xsync.NewMapOf[string, Loader](),
		stats:   xsync.NewMapOf[string, *counters](),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register sets the loader for center, replacing any previous one.
func (s *Service) Register(center string, loader Loader) {
	if loader == nil {
		s.loaders.Delete(canonicalCenter(center))
		return
	}
	s.loaders.Store(canonicalCenter(center), loader)
}

// TTLFor returns the lifetime of a center's entries.
func (s *Service) TTLFor(center string) time.Duration {
	if ttl, ok := s.ttls[canonicalCenter(center)]; ok {
		return ttl
	}
	return DefaultTTL
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logctx.Or(ctx, s.logger)
}

// GetCenterData returns the payload for a center page. It is served from
// the cache when at least one tier is present, unless ctx carries
// WithForceRefresh. Otherwise loader runs (or the registered loader when
// loader is nil) and its sections are written back. Cache failures count as
// a miss; loader errors are returned.
func (s *Service) GetCenterData(ctx context.Context, center string, userID int64, role string, loader Loader) (Result, error) {
	start := s.now()
	center = canonicalCenter(center)
	stats := s.counters(center)
	stats.requests.Inc()

	req := Request{Center: center, UserID: userID, Role: role}
	meta := func(fromCache bool) Meta {
		return Meta{
			FromCache:    fromCache,
			ResponseTime: s.now().Sub(start),
			UserID:       userID,
			UserRole:     role,
		}
	}

	if !forceRefreshFromContext(ctx) {
		if cached, ok := s.read(ctx, req); ok {
			stats.hits.Inc()
			return Result{Data: cached, Meta: meta(true)}, nil
		}
	}

	if loader == nil {
		registered, ok := s.loaders.Load(center)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownCenter, center)
		}
		loader = registered
	}

	data, err := loader(ctx, req)
	if err != nil {
		s.log(ctx).Error("failed to load center data", slog.String("center", center), slog.Any("error", err))
		return Result{}, err
	}
	stats.misses.Inc()

	s.write(ctx, req, data)
	return Result{Data: data, Meta: meta(false)}, nil
}

func (s *Service) read(ctx context.Context, req Request) (Data, bool) {
	var (
		data Data
		errs []error
	)
	sections := []struct {
		key  string
		dest *any
	}{
		{StatsKey(req.Center), &data.Statistics},
		{RoleKey(req.Center, req.Role), &data.List},
		{UserKey(req.Center, req.UserID), &data.UserSpecific},
	}
	for _, section := range sections {
		if _, err := s.store.Get(ctx, section.key, section.dest); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.log(ctx).Warn("failed to read center cache", slog.String("center", req.Center), slog.Any("error", err))
		return Data{}, false
	}
	return data, !data.empty()
}

func (s *Service) write(ctx context.Context, req Request, data Data) {
	ttl := s.TTLFor(req.Center)

	var errs []error
	if data.Statistics != nil {
		errs = append(errs, s.store.Set(ctx, StatsKey(req.Center), data.Statistics, ttl))
	}
	if data.List != nil {
		errs = append(errs, s.store.Set(ctx, RoleKey(req.Center, req.Role), data.List, ttl))
	}
	if data.UserSpecific != nil {
		errs = append(errs, s.store.Set(ctx, UserKey(req.Center, req.UserID), data.UserSpecific, ttl))
	}

	if err := errors.Join(errs...); err != nil {
		s.log(ctx).Warn("failed to write center cache", slog.String("center", req.Center), slog.Any("error", err))
		return
	}
	s.log(ctx).Debug("center cache written", slog.String("center", req.Center), slog.Duration("ttl", ttl))
}

// ClearCenterCache invalidates one tier of a center and returns the number
// of keys removed:
//
//   - userID and role set: the user's entry
//   - role set: the role's entry
//   - neither: every entry of the center
func (s *Service) ClearCenterCache(ctx context.Context, center string, userID int64, role string) int64 {
	center = canonicalCenter(center)

	var (
		deleted int64
		errs    []error
	)
	switch {
	case userID != 0 && role != "":
		n, err := s.store.Del(ctx, UserKey(center, userID))
		deleted, errs = n, append(errs, err)
	case role != "":
		n, err := s.store.Del(ctx, RoleKey(center, role))
		deleted, errs = n, append(errs, err)
	default:
		n, err := s.store.Del(ctx, StatsKey(center))
		deleted, errs = n, append(errs, err)
		for _, pattern := range []string{
			keys.SerializeKey(PrefixRole, center, "*"),
			keys.SerializeKey(PrefixUser, center, "*"),
		} {
			n, err := s.store.DelPattern(ctx, pattern)
			deleted += n
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.log(ctx).Error("failed to clear center cache", slog.String("center", center), slog.Any("error", err))
	} else {
		s.log(ctx).Info("cleared center cache", slog.String("center", center), slog.Int64("deleted", deleted))
	}
	return deleted
}

// ClearAll removes every center entry.
func (s *Service) ClearAll(ctx context.Context) int64 {
	var deleted int64
	for _, prefix := range []string{PrefixStats, PrefixRole, PrefixUser} {
		n, err := s.store.DelPattern(ctx, prefix+"*")
		if err != nil {
			s.log(ctx).Error("failed to clear center caches", slog.String("prefix", prefix), slog.Any("error", err))
		}
		deleted += n
	}
	return deleted
}
