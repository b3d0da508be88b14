package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-permission-cache/pkg/testsupport"
)

// setupCLI writes a config pointing at miniredis and a fresh SQLite file and
// loads the shared RBAC snapshot through the migrate command.
func setupCLI(t *testing.T) string {
	t.Helper()

	mr, _ := testsupport.NewRedis(t)
	dsn := filepath.Join(t.TempDir(), "rbac.db")

	cfg := fmt.Sprintf(`
redis:
  addrs: [%q]
  max_retries: -1
database:
  driver: sqlite3
  dsn: %q
log:
  level: error
`, mr.Addr(), dsn)
	path := testsupport.TempFile(t, "permcache.yaml", []byte(cfg))

	_, err := run(t, "--config", path, "migrate", "--seed", testsupport.SharedFixturePath(testsupport.SeedFile))
	require.NoError(t, err)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	a := &app{}
	err := a.run(context.Background(), &out, io.Discard, args)
	if a.container != nil {
		t.Error("container should be closed after a run")
	}
	return out.String(), err
}

func TestCLI_Check(t *testing.T) {
	path := setupCLI(t)

	out, err := run(t, "--config", path, "check", "42", "view_students")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, "--config", path, "check", "42", "delete_school")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = run(t, "--config", path, "check", "8", "view_reports", "delete_school")
	require.NoError(t, err)

	var results map[string]bool
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Equal(t, map[string]bool{"view_reports": true, "delete_school": false}, results)

	out, err = run(t, "--config", path, "check-path", "42", "/students/grades")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestCLI_InfoAndRoutes(t *testing.T) {
	path := setupCLI(t)

	out, err := run(t, "--config", path, "info", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"is_admin": true`)

	out, err = run(t, "--config", path, "routes", "42")
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "/students/grades"`)
}

func TestCLI_StatsAndClear(t *testing.T) {
	path := setupCLI(t)

	_, err := run(t, "--config", path, "check", "42", "view_students")
	require.NoError(t, err)

	out, err := run(t, "--config", path, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_permissions": 1`)
	assert.Contains(t, out, `"permission_checks": 1`)

	out, err = run(t, "--config", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "total")

	out, err = run(t, "--config", path, "clear", "user", "42")
	require.NoError(t, err)
	assert.Equal(t, "deleted 2 entries\n", out)

	out, err = run(t, "--config", path, "clear", "all")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 entries\n", out)

	out, err = run(t, "--config", path, "clear", "center", "--all")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 entries\n", out)

	_, err = run(t, "--config", path, "clear", "center")
	assert.Error(t, err)
}

func TestCLI_RoleMutations(t *testing.T) {
	path := setupCLI(t)

	out, err := run(t, "--config", path, "check", "42", "view_reports")
	require.NoError(t, err)
	require.Equal(t, "false\n", out)

	_, err = run(t, "--config", path, "role", "assign", "42", "3")
	require.NoError(t, err)

	out, err = run(t, "--config", path, "check", "42", "view_reports")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = run(t, "--config", path, "role", "revoke", "42", "3")
	require.NoError(t, err)

	out, err = run(t, "--config", path, "check", "42", "view_reports")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestCLI_Health(t *testing.T) {
	path := setupCLI(t)

	out, err := run(t, "--config", path, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "redis\tok")
	assert.Contains(t, out, "database\tok")
}

func TestCLI_Errors(t *testing.T) {
	path := setupCLI(t)

	_, err := run(t, "--config", path, "check", "abc", "view_students")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid user id"), "got %v", err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	assert.Error(t, err)

	_, err = run(t, "--config", path, "check", "42")
	assert.Error(t, err)
}
