package di

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/config"
	"github.com/goliatone/go-permission-cache/permission"
	"github.com/goliatone/go-permission-cache/pkg/testsupport"
)

// TestConcurrentAccess tests concurrent permission checks across users
func TestConcurrentAccess(t *testing.T) {
	container := newTestContainer(t)
	perms := container.Permissions()
	ctx := context.Background()

	expected := map[int64]map[string]bool{
		42: {"view_students": true, "edit_grades": true, "view_reports": false, "delete_school": false},
		7:  {"view_students": true, "edit_grades": true, "view_reports": true, "delete_school": true},
		8:  {"view_students": true, "edit_grades": true, "view_reports": true, "delete_school": false},
		9:  {"view_students": false, "edit_grades": false, "view_reports": false, "delete_school": false},
	}
	users := []int64{42, 7, 8, 9}
	codes := []string{"view_students", "edit_grades", "view_reports", "delete_school"}

	const numGoroutines = 50
	const operationsPerGoroutine = 20

	var wg sync.WaitGroup
	errors := make(chan error, numGoroutines*operationsPerGoroutine)

	// Launch concurrent workers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := 0; j < operationsPerGoroutine; j++ {
				userID := users[(workerID+j)%len(users)]
				code := codes[j%len(codes)]

				if got := perms.CheckPermission(ctx, userID, code); got != expected[userID][code] {
					errors <- fmt.Errorf("worker %d: CheckPermission(%d, %s) = %v", workerID, userID, code, got)
				}

				// Batch check every 5th iteration
				if j%5 == 0 {
					results := perms.CheckPermissions(ctx, userID, codes)
					for _, c := range codes {
						if results[c] != expected[userID][c] {
							errors <- fmt.Errorf("worker %d: CheckPermissions(%d)[%s] = %v", workerID, userID, c, results[c])
						}
					}
				}
			}
		}(i)
	}

	// Wait for all workers to complete
	wg.Wait()
	close(errors)

	var errorCount int
	for err := range errors {
		t.Error(err)
		errorCount++
		if errorCount > 10 { // Limit error output
			t.Error("... and more errors")
			break
		}
	}
	if errorCount > 0 {
		t.Fatalf("Concurrent access test failed with %d errors", errorCount)
	}

	stats := perms.GetCacheStats(ctx)
	// user 9 only holds an inactive role and is never cached
	if stats.UserPermissions != 3 {
		t.Errorf("expected 3 cached permission sets, got %d", stats.UserPermissions)
	}
}

// TestCacheExpiryFlow tests that entries disappear after their TTL and are
// rebuilt on the next read.
func TestCacheExpiryFlow(t *testing.T) {
	mr, _ := testsupport.NewRedis(t)
	container := newContainerOn(t, mr.Addr(), withConfig(func(cfg *config.Config) {
		cfg.Permission.UserPermissions = 2 * time.Second
	}))
	perms := container.Permissions()
	ctx := context.Background()

	perms.GetUserPermissions(ctx, 42)
	key := permission.UserPermissionsKey(42)
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be cached", key)
	}

	mr.FastForward(3 * time.Second)
	if mr.Exists(key) {
		t.Fatalf("expected %s to expire", key)
	}

	if got := perms.GetUserPermissions(ctx, 42); len(got) != 2 {
		t.Errorf("expected the permission set to be rebuilt, got %v", got)
	}
	if !mr.Exists(key) {
		t.Errorf("expected %s to be cached again", key)
	}
}

// BenchmarkKeySerializationPerformance benchmarks key serialization with
// the argument shapes used by the caches.
func BenchmarkKeySerializationPerformance(b *testing.B) {
	serializer := cache.NewDefaultKeySerializer()

	testCases := []struct {
		name   string
		prefix string
		args   []any
	}{
		{
			name:   "user_id",
			prefix: permission.PrefixUserPermissions,
			args:   []any{int64(42)},
		},
		{
			name:   "user_and_code",
			prefix: permission.PrefixPermissionCheck,
			args:   []any{int64(42), "view_students"},
		},
		{
			name:   "slice_args",
			prefix: "report",
			args:   []any{[]string{"a", "b", "c"}, []int{1, 2, 3, 4, 5}},
		},
		{
			name:   "map_args",
			prefix: "report",
			args: []any{
				map[string]any{
					"key1": "value1",
					"key2": 42,
					"key3": true,
				},
			},
		},
	}

	for _, tc := range testCases {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = serializer.SerializeKey(tc.prefix, tc.args...)
			}
		})
	}
}

// BenchmarkCachedVsStore compares warm cached checks against direct store
// lookups.
func BenchmarkCachedVsStore(b *testing.B) {
	container := newTestContainer(b)
	perms := container.Permissions()
	store := container.Store()
	ctx := context.Background()

	perms.CheckPermission(ctx, 42, "view_students")

	b.Run("cached_check", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = perms.CheckPermission(ctx, 42, "view_students")
		}
	})

	b.Run("store_lookup", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := store.UserPermissions(ctx, 42); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkConcurrentChecks(b *testing.B) {
	container := newTestContainer(b)
	perms := container.Permissions()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			userID := []int64{42, 7, 8}[i%3]
			_ = perms.CheckPermission(ctx, userID, "edit_grades")
			i++
		}
	})
}
