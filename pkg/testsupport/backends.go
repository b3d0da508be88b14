package testsupport

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-permission-cache/cache"
	"github.com/goliatone/go-permission-cache/internal/logctx"
	"github.com/goliatone/go-permission-cache/rbacstore"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// SeedFile is the RBAC snapshot shared by the package tests.
const SeedFile = "rbac_seed.json"

var dbCounter atomic.Int64

// NewRedis starts an in-memory Redis server and a KV service pointed at it.
// Both are shut down when the test ends.
func NewRedis(t testing.TB) (*miniredis.Miniredis, cache.KVService) {
	t.Helper()

	mr := miniredis.RunT(t)
	kv := NewKVService(t, mr.Addr())
	return mr, kv
}

// NewKVService builds a quiet KV service for addr with retries disabled, so
// tests that stop the server fail fast.
func NewKVService(t testing.TB, addr string) cache.KVService {
	t.Helper()

	cfg := cache.DefaultRedisConfig()
	cfg.Addrs = []string{addr}
	cfg.MaxRetries = -1
	cfg.DialTimeout = time.Second

	kv, err := cache.NewKVService(cfg, cache.WithLogger(logctx.Discard()))
	if err != nil {
		t.Fatalf("failed to create kv service: %v", err)
	}
	t.Cleanup(func() { _ = kv.Disconnect(context.Background()) })
	return kv
}

// NewSQLiteDB opens a private in-memory SQLite database with the RBAC schema.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	sqldb, err := sql.Open(rbacstore.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// an in-memory database lives as long as its last connection
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	if err := rbacstore.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// LoadSeed reads the shared RBAC snapshot.
func LoadSeed(t testing.TB) rbacstore.SeedData {
	t.Helper()

	var seed rbacstore.SeedData
	LoadFixtureJSON(t, SharedFixturePath(SeedFile), &seed)
	return seed
}

// NewSeededDB is NewSQLiteDB loaded with the shared RBAC snapshot.
func NewSeededDB(t testing.TB) *bun.DB {
	t.Helper()

	db := NewSQLiteDB(t)
	if err := rbacstore.Seed(context.Background(), db, LoadSeed(t)); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}
	return db
}
