package testsupport

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFixture(t *testing.T) {
	path := TempFile(t, "test.txt", []byte("test fixture content"))

	result := LoadFixture(t, path)
	if string(result) != "test fixture content" {
		t.Errorf("expected fixture content, got %q", result)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	path := TempFile(t, "test.json", []byte(`{"name":"test","value":42}`))

	var result struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	LoadFixtureJSON(t, path, &result)

	if result.Name != "test" || result.Value != 42 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestTempFile_RemovedWithTest(t *testing.T) {
	var path string
	t.Run("inner", func(t *testing.T) {
		path = TempFile(t, "gone.txt", []byte("x"))
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected temp file to exist: %v", err)
		}
	})

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be removed, stat err = %v", err)
	}
}

func TestFixturePath(t *testing.T) {
	if got := FixturePath("a.json"); got != filepath.Join("testdata", "a.json") {
		t.Errorf("unexpected path %s", got)
	}

	shared := SharedFixturePath(SeedFile)
	if !filepath.IsAbs(shared) {
		t.Errorf("expected absolute path, got %s", shared)
	}
	if _, err := os.Stat(shared); err != nil {
		t.Errorf("expected shared seed to exist: %v", err)
	}
}

func TestLoadSeed(t *testing.T) {
	seed := LoadSeed(t)

	if len(seed.Roles) == 0 || len(seed.Permissions) == 0 {
		t.Fatalf("expected roles and permissions in seed, got %+v", seed)
	}

	var admins int
	for _, r := range seed.Roles {
		if r.IsSuperAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Errorf("expected exactly one super admin role, got %d", admins)
	}
}

func TestNewSeededDB_IsolatedPerTest(t *testing.T) {
	a := NewSeededDB(t)
	b := NewSQLiteDB(t)
	ctx := context.Background()

	countA, err := a.NewSelect().Table("roles").Count(ctx)
	if err != nil {
		t.Fatalf("count a: %v", err)
	}
	countB, err := b.NewSelect().Table("roles").Count(ctx)
	if err != nil {
		t.Fatalf("count b: %v", err)
	}

	if countA == 0 {
		t.Error("expected seeded roles")
	}
	if countB != 0 {
		t.Errorf("expected empty database, got %d roles", countB)
	}
}

func TestNewRedis(t *testing.T) {
	mr, kv := NewRedis(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("k") {
		t.Error("expected key to reach miniredis")
	}
}

func TestNewRedis_Quiet(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, kv := NewRedis(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}
