package permission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/internal/logctx"
)

// ErrNoWriter is returned by mutations when the service has no Writer.
var ErrNoWriter = errors.New("permission: no writer configured")

// Service answers permission questions through a read-through cache over a
// relational Source.
//
// Exported query methods never return errors. Any failure is logged and the
// method answers with its deny default: an empty list, false, or a zero Info.
// The lower case resolve methods keep the error so tests and internal
// callers can tell an empty answer from a failed one.
type Service struct {
	kv     Backend
	source Source
	writer Writer
	paths  cache.CacheService
	ttl    TTLTable
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the fallback logger. A logger carried by the request
// context takes precedence.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTTL overrides the lifetimes. Zero entries keep their default.
func WithTTL(ttl TTLTable) Option {
	return func(s *Service) {
		s.ttl = ttl.withDefaults()
	}
}

// WithPathCache memoizes path to code lookups in process.
func WithPathCache(paths cache.CacheService) Option {
	return func(s *Service) {
		s.paths = paths
	}
}

// WithWriter enables AssignRole, RevokeRole and GrantPermission.
func WithWriter(writer Writer) Option {
	return func(s *Service) {
		s.writer = writer
	}
}

// NewService builds a Service on top of kv and source.
func NewService(kv Backend, source Source, opts ...Option) *Service {
	s := &Service{
		kv:     kv,
		source: source,
		ttl:    DefaultTTLTable(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetimes in use.
func (s *Service) TTL() TTLTable {
	return s.ttl
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logctx.Or(ctx, s.logger)
}

// GetUserPermissions returns the user's effective permission codes.
func (s *Service) GetUserPermissions(ctx context.Context, userID int64) []string {
	perms, err := s.resolveUserPermissions(ctx, userID)
	if err != nil {
		s.log(ctx).Error("failed to resolve user permissions", slog.Int64("userId", userID), slog.Any("error", err))
		return []string{}
	}
	return perms
}

// GetRolePermissions returns the codes granted to a role. Super admin roles
// are not expanded here.
func (s *Service) GetRolePermissions(ctx context.Context, roleCode string) []string {
	perms, err := s.resolveRolePermissions(ctx, roleCode)
	if err != nil {
		s.log(ctx).Error("failed to resolve role permissions", slog.String("role", roleCode), slog.Any("error", err))
		return []string{}
	}
	return perms
}

// GetDynamicRoutes returns the permission records used to build navigation,
// ordered by sort then id.
func (s *Service) GetDynamicRoutes(ctx context.Context, userID int64) []Route {
	routes, err := s.resolveDynamicRoutes(ctx, userID)
	if err != nil {
		s.log(ctx).Error("failed to resolve dynamic routes", slog.Int64("userId", userID), slog.Any("error", err))
		return []Route{}
	}
	return routes
}

// CheckPermission reports whether the user holds code.
func (s *Service) CheckPermission(ctx context.Context, userID int64, code string) bool {
	ok, err := s.resolveCheck(ctx, userID, code)
	if err != nil {
		s.log(ctx).Error("permission check failed", slog.Int64("userId", userID), slog.String("code", code), slog.Any("error", err))
		return false
	}
	return ok
}

// CheckPermissions checks many codes against a single fetch of the user's
// permission set. On failure every code maps to false.
func (s *Service) CheckPermissions(ctx context.Context, userID int64, codes []string) map[string]bool {
	out := make(map[string]bool, len(codes))
	for _, code := range codes {
		out[code] = false
	}

	perms, err := s.resolveUserPermissions(ctx, userID)
	if err != nil {
		s.log(ctx).Error("batch permission check failed", slog.Int64("userId", userID), slog.Any("error", err))
		return out
	}

	held := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		held[p] = struct{}{}
	}
	for _, code := range codes {
		_, out[code] = held[code]
	}
	return out
}

// CheckPathPermission reports whether the user may access path. A path with
// no registered permission is denied.
func (s *Service) CheckPathPermission(ctx context.Context, userID int64, path string) bool {
	ok, err := s.resolvePathCheck(ctx, userID, path)
	if err != nil {
		s.log(ctx).Error("path permission check failed", slog.Int64("userId", userID), slog.String("path", path), slog.Any("error", err))
		return false
	}
	return ok
}

// GetUserPermissionInfo returns roles, admin flag and permissions in one value.
func (s *Service) GetUserPermissionInfo(ctx context.Context, userID int64) Info {
	info, err := s.resolveInfo(ctx, userID)
	if err != nil {
		s.log(ctx).Error("failed to resolve permission info", slog.Int64("userId", userID), slog.Any("error", err))
		return emptyInfo(userID)
	}
	return info
}

func emptyInfo(userID int64) Info {
	return Info{UserID: userID, Permissions: []string{}, Roles: []string{}}
}
