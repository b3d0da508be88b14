package permission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/internal/logctx"
	"github.com/goliatone/go-permission-cache/pkg/testsupport"
	"github.com/goliatone/go-permission-cache/rbacstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource records how often each query reaches the database and can
// be switched into a failing mode.
type countingSource struct {
	Source

	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func (c *countingSource) hit(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	return c.fail
}

func (c *countingSource) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingSource) setFail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *countingSource) UserRoles(ctx context.Context, userID int64) ([]rbacstore.Role, error) {
	if err := c.hit("UserRoles"); err != nil {
		return nil, err
	}
	return c.Source.UserRoles(ctx, userID)
}

func (c *countingSource) ActivePermissions(ctx context.Context) ([]rbacstore.Permission, error) {
	if err := c.hit("ActivePermissions"); err != nil {
		return nil, err
	}
	return c.Source.ActivePermissions(ctx)
}

func (c *countingSource) UserPermissions(ctx context.Context, userID int64) ([]rbacstore.Permission, error) {
	if err := c.hit("UserPermissions"); err != nil {
		return nil, err
	}
	return c.Source.UserPermissions(ctx, userID)
}

func (c *countingSource) RolePermissions(ctx context.Context, roleCode string) ([]rbacstore.Permission, error) {
	if err := c.hit("RolePermissions"); err != nil {
		return nil, err
	}
	return c.Source.RolePermissions(ctx, roleCode)
}

func (c *countingSource) PermissionCodeByPath(ctx context.Context, path string) (string, bool, error) {
	if err := c.hit("PermissionCodeByPath"); err != nil {
		return "", false, err
	}
	return c.Source.PermissionCodeByPath(ctx, path)
}

type fixture struct {
	svc   *Service
	src   *countingSource
	store *rbacstore.Store
	mr    *miniredis.Miniredis
	kv    cache.KVService
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	store := rbacstore.New(testsupport.NewSeededDB(t))
	src := &countingSource{Source: store, calls: map[string]int{}}
	mr, kv := testsupport.NewRedis(t)

	base := []Option{WithLogger(logctx.Discard()), WithWriter(store)}
	svc := NewService(kv, src, append(base, opts...)...)
	return fixture{svc: svc, src: src, store: store, mr: mr, kv: kv}
}

func TestService_TeacherScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	assert.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))
	assert.True(t, f.svc.CheckPermission(ctx, 42, "view_students"))

	// repeated reads are served from the cache
	assert.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))
	assert.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	assert.Equal(t, 1, f.src.count("UserRoles"))
	assert.Equal(t, 1, f.src.count("UserPermissions"))

	assert.True(t, f.mr.Exists("userPermissions:42"))
	assert.True(t, f.mr.Exists("permissionCheck:42:delete_school"))
	assert.True(t, f.mr.Exists("permissionCheck:42:view_students"))
}

func TestService_NegativeResultIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))

	denied, found, err := cache.Get[bool](ctx, f.kv, PermissionCheckKey(42, "delete_school"))
	require.NoError(t, err)
	assert.True(t, found, "a denial must be stored, not treated as a miss")
	assert.False(t, denied)
}

func TestService_StaleUntilCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	require.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))

	// role changes made behind the cache's back are not seen until cleared
	require.NoError(t, f.store.AssignRole(ctx, 42, 2))
	assert.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	assert.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))

	assert.Equal(t, int64(2), f.svc.ClearUserCache(ctx, 42))

	assert.Equal(t,
		[]string{"view_students", "edit_grades", "delete_school", "view_reports"},
		f.svc.GetUserPermissions(ctx, 42))
	assert.True(t, f.svc.CheckPermission(ctx, 42, "delete_school"))
}

func TestService_AdminWildcard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the admin role has no role_permissions rows at all
	assert.Equal(t,
		[]string{"view_students", "edit_grades", "delete_school", "view_reports"},
		f.svc.GetUserPermissions(ctx, 7))
	assert.True(t, f.svc.CheckPermission(ctx, 7, "delete_school"))
	assert.False(t, f.svc.CheckPermission(ctx, 7, "legacy_export"), "inactive permissions are never granted")
	assert.Equal(t, 0, f.src.count("UserPermissions"))

	routes := f.svc.GetDynamicRoutes(ctx, 7)
	ids := make([]int64, 0, len(routes))
	for _, r := range routes {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 10, 11, 12, 13}, ids)

	info := f.svc.GetUserPermissionInfo(ctx, 7)
	assert.True(t, info.IsAdmin)
	assert.Equal(t, []string{"admin"}, info.Roles)
	assert.Len(t, info.Permissions, 4)

	// role level lookups do not expand the wildcard
	assert.Empty(t, f.svc.GetRolePermissions(ctx, "admin"))
}

func TestService_UsersWithoutRolesAreNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, userID := range []int64{9, 1000} {
		assert.Equal(t, []string{}, f.svc.GetUserPermissions(ctx, userID))
		assert.Equal(t, []Route{}, f.svc.GetDynamicRoutes(ctx, userID))
		assert.Equal(t, emptyInfo(userID), f.svc.GetUserPermissionInfo(ctx, userID))

		assert.False(t, f.mr.Exists(UserPermissionsKey(userID)))
		assert.False(t, f.mr.Exists(DynamicRoutesKey(userID)))
		assert.False(t, f.mr.Exists(UserPermissionInfoKey(userID)))
	}

	// once a role is granted the very next read sees it
	require.NoError(t, f.store.AssignRole(ctx, 1000, 3))
	assert.Equal(t, []string{"view_students", "view_reports"}, f.svc.GetUserPermissions(ctx, 1000))
}

// noGrantsSource reports active roles but no granted permissions.
type noGrantsSource struct {
	Source
}

func (noGrantsSource) UserPermissions(context.Context, int64) ([]rbacstore.Permission, error) {
	return []rbacstore.Permission{}, nil
}

func TestService_EmptyResultsAreNotCached(t *testing.T) {
	store := rbacstore.New(testsupport.NewSeededDB(t))
	mr, kv := testsupport.NewRedis(t)
	svc := NewService(kv, noGrantsSource{Source: store}, WithLogger(logctx.Discard()), WithWriter(store))
	ctx := context.Background()

	assert.Equal(t, []string{}, svc.GetUserPermissions(ctx, 42))
	assert.Equal(t, []Route{}, svc.GetDynamicRoutes(ctx, 42))
	assert.False(t, mr.Exists(UserPermissionsKey(42)))
	assert.False(t, mr.Exists(DynamicRoutesKey(42)))

	assert.Empty(t, svc.GetRolePermissions(ctx, "ghost"))
	assert.False(t, mr.Exists(RolePermissionsKey("ghost")))

	// the admin role has no role_permissions rows of its own
	assert.Empty(t, svc.GetRolePermissions(ctx, "admin"))
	assert.False(t, mr.Exists(RolePermissionsKey("admin")))

	// a later grant is visible without any invalidation
	svc.source = store
	assert.Equal(t, []string{"view_students", "edit_grades"}, svc.GetUserPermissions(ctx, 42))
	assert.True(t, mr.Exists(UserPermissionsKey(42)))
}

func TestService_FailClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.src.setFail(errors.New("database is down"))

	assert.False(t, f.svc.CheckPermission(ctx, 42, "view_students"))
	assert.False(t, f.svc.CheckPathPermission(ctx, 42, "/students"))
	assert.Equal(t, []string{}, f.svc.GetUserPermissions(ctx, 42))
	assert.Equal(t, []string{}, f.svc.GetRolePermissions(ctx, "teacher"))
	assert.Equal(t, []Route{}, f.svc.GetDynamicRoutes(ctx, 42))
	assert.Equal(t, emptyInfo(42), f.svc.GetUserPermissionInfo(ctx, 42))
	assert.Equal(t,
		map[string]bool{"view_students": false, "edit_grades": false},
		f.svc.CheckPermissions(ctx, 42, []string{"view_students", "edit_grades"}))

	_, err := f.svc.resolveUserPermissions(ctx, 42)
	assert.Error(t, err, "internal resolvers keep the failure")

	// failures are never cached
	assert.Empty(t, f.mr.Keys())

	f.src.setFail(nil)
	assert.True(t, f.svc.CheckPermission(ctx, 42, "view_students"))
}

func TestService_BatchConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	codes := []string{"view_students", "delete_school", "view_reports"}

	batch := f.svc.CheckPermissions(ctx, 8, codes)
	assert.Equal(t, map[string]bool{
		"view_students": true,
		"delete_school": false,
		"view_reports":  true,
	}, batch)

	for _, code := range codes {
		assert.Equal(t, batch[code], f.svc.CheckPermission(ctx, 8, code), code)
	}
	assert.Equal(t, 1, f.src.count("UserPermissions"))

	// the batch itself has no key of its own
	stats := f.svc.GetCacheStats(ctx)
	assert.Equal(t, 1, stats.UserPermissions)
	assert.Equal(t, 3, stats.PermissionChecks)
}

func TestService_PathPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "granted", path: "/students", want: true},
		{name: "registered but not granted", path: "/school/delete", want: false},
		{name: "unregistered", path: "/nowhere", want: false},
		{name: "registered without code", path: "/dashboard", want: false},
		{name: "inactive permission", path: "/legacy", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.CheckPathPermission(ctx, 42, tt.path))
			assert.True(t, f.mr.Exists(PathPermissionKey(42, tt.path)), "result must be cached")
		})
	}

	before := f.src.count("PermissionCodeByPath")
	assert.False(t, f.svc.CheckPathPermission(ctx, 42, "/nowhere"))
	assert.Equal(t, before, f.src.count("PermissionCodeByPath"))
}

func TestService_PathCodeMemo(t *testing.T) {
	local, err := cache.NewCacheService(cache.DefaultLocalConfig())
	require.NoError(t, err)

	f := newFixture(t, WithPathCache(local))
	ctx := context.Background()

	assert.True(t, f.svc.CheckPathPermission(ctx, 42, "/students"))
	assert.True(t, f.svc.CheckPathPermission(ctx, 8, "/students"))
	assert.False(t, f.svc.CheckPathPermission(ctx, 42, "/nowhere"))
	assert.False(t, f.svc.CheckPathPermission(ctx, 8, "/nowhere"))

	assert.Equal(t, 2, f.src.count("PermissionCodeByPath"), "one lookup per path across users")
}

func TestService_ClearUserCacheScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.GetRolePermissions(ctx, "principal")
	f.svc.GetUserPermissions(ctx, 42)
	f.svc.GetDynamicRoutes(ctx, 42)
	f.svc.GetUserPermissionInfo(ctx, 42)
	f.svc.CheckPermission(ctx, 42, "delete_school")
	f.svc.CheckPathPermission(ctx, 42, "/students")
	f.svc.GetUserPermissions(ctx, 8)
	f.svc.CheckPermission(ctx, 8, "view_reports")

	assert.Equal(t, int64(6), f.svc.ClearUserCache(ctx, 42))

	for _, key := range f.mr.Keys() {
		assert.NotContains(t, key, ":42", "user 42 entry survived: %s", key)
	}
	assert.True(t, f.mr.Exists(RolePermissionsKey("principal")))
	assert.True(t, f.mr.Exists(UserPermissionsKey(8)))
	assert.True(t, f.mr.Exists(PermissionCheckKey(8, "view_reports")))

	rolesBefore := f.src.count("RolePermissions")
	f.svc.GetRolePermissions(ctx, "principal")
	assert.Equal(t, rolesBefore, f.src.count("RolePermissions"), "unrelated role entry must stay cached")

	usersBefore := f.src.count("UserPermissions")
	f.svc.GetUserPermissions(ctx, 42)
	assert.Equal(t, usersBefore+1, f.src.count("UserPermissions"), "cleared user must be recomputed")
}

func TestService_ClearRoleAndAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.GetRolePermissions(ctx, "teacher")
	f.svc.GetRolePermissions(ctx, "principal")
	f.svc.GetUserPermissions(ctx, 42)
	f.svc.CheckPathPermission(ctx, 42, "/reports")

	assert.Equal(t, int64(1), f.svc.ClearRoleCache(ctx, "teacher"))
	assert.Equal(t, int64(0), f.svc.ClearRoleCache(ctx, "teacher"))
	assert.True(t, f.mr.Exists(RolePermissionsKey("principal")))

	f.mr.Set("unrelated", "kept")
	stats := f.svc.GetCacheStats(ctx)
	assert.Equal(t, Stats{
		UserPermissions:  1,
		RolePermissions:  1,
		PermissionChecks: 1,
		PathPermissions:  1,
	}, stats)

	assert.Equal(t, int64(stats.Total()), f.svc.ClearAllCache(ctx))
	assert.Equal(t, Stats{}, f.svc.GetCacheStats(ctx))
	assert.True(t, f.mr.Exists("unrelated"))
}

func TestService_TTLs(t *testing.T) {
	f := newFixture(t, WithTTL(TTLTable{PermissionCheck: time.Minute}))
	ctx := context.Background()

	f.svc.CheckPermission(ctx, 42, "view_students")
	f.svc.GetRolePermissions(ctx, "teacher")

	assert.Equal(t, 30*time.Minute, f.mr.TTL(UserPermissionsKey(42)))
	assert.Equal(t, time.Hour, f.mr.TTL(RolePermissionsKey("teacher")))
	assert.Equal(t, time.Minute, f.mr.TTL(PermissionCheckKey(42, "view_students")))
	assert.Equal(t, 10*time.Minute, f.svc.TTL().PathPermission)

	f.mr.FastForward(2 * time.Minute)
	assert.False(t, f.mr.Exists(PermissionCheckKey(42, "view_students")))
	assert.True(t, f.mr.Exists(UserPermissionsKey(42)))
}

func TestService_RedisOutageDegradesToSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mr.Close()

	assert.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	assert.True(t, f.svc.CheckPermission(ctx, 42, "view_students"))
	assert.False(t, f.svc.CheckPermission(ctx, 42, "delete_school"))
	assert.Equal(t, Stats{}, f.svc.GetCacheStats(ctx))

	// every read is a miss while the store is down
	assert.GreaterOrEqual(t, f.src.count("UserPermissions"), 3)
}

func TestService_Mutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))
	require.NoError(t, f.svc.AssignRole(ctx, 42, 3))
	assert.Equal(t, []string{"view_students", "edit_grades", "view_reports"}, f.svc.GetUserPermissions(ctx, 42))

	require.NoError(t, f.svc.RevokeRole(ctx, 42, 3))
	assert.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetUserPermissions(ctx, 42))

	require.Equal(t, []string{"view_students", "edit_grades"}, f.svc.GetRolePermissions(ctx, "teacher"))
	require.False(t, f.svc.CheckPermission(ctx, 8, "delete_school"))

	require.NoError(t, f.svc.GrantPermission(ctx, 1, 12))
	assert.Equal(t, []string{"view_students", "edit_grades", "delete_school"}, f.svc.GetRolePermissions(ctx, "teacher"))
	assert.True(t, f.svc.CheckPermission(ctx, 8, "delete_school"))
	assert.True(t, f.svc.CheckPermission(ctx, 42, "delete_school"))
}

func TestService_MutationsWithoutWriter(t *testing.T) {
	_, kv := testsupport.NewRedis(t)
	svc := NewService(kv, rbacstore.New(testsupport.NewSeededDB(t)), WithLogger(logctx.Discard()))
	ctx := context.Background()

	assert.ErrorIs(t, svc.AssignRole(ctx, 42, 3), ErrNoWriter)
	assert.ErrorIs(t, svc.RevokeRole(ctx, 42, 3), ErrNoWriter)
	assert.ErrorIs(t, svc.GrantPermission(ctx, 1, 12), ErrNoWriter)
}

func TestService_ConcurrentChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.CheckPermission(ctx, 42, "edit_grades")
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d", i)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "userPermissions:42", UserPermissionsKey(42))
	assert.Equal(t, "rolePermissions:teacher", RolePermissionsKey("teacher"))
	assert.Equal(t, "dynamicRoutes:42", DynamicRoutesKey(42))
	assert.Equal(t, "userPermissionInfo:42", UserPermissionInfoKey(42))
	assert.Equal(t, "permissionCheck:42:view_students", PermissionCheckKey(42, "view_students"))
	assert.Equal(t, "pathPermission:42:/students/grades", PathPermissionKey(42, "/students/grades"))
	assert.Equal(t, []string{"permissionCheck:42:*", "pathPermission:42:*"}, userPatterns(42))
}

func TestPermissionCodes(t *testing.T) {
	perms := []rbacstore.Permission{
		{Code: "a"}, {Code: ""}, {Code: "b"}, {Code: "a"},
	}
	assert.Equal(t, []string{"a", "b"}, permissionCodes(perms))
	assert.Equal(t, []string{}, permissionCodes(nil))
}
