//go:build integration
// +build integration

package postgres

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/observability"
)

// setupPostgres starts a disposable PostgreSQL container, runs the schema
// migrations against it, and returns a live connection.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("midden_test"),
		pgcontainer.WithUsername("midden"),
		pgcontainer.WithPassword("midden_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		pgcontainer.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Ping())

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	require.NoError(t, RunMigrations(ctx, db, logger))

	return db
}

func TestIntegration_SeededRolesAndPermissions(t *testing.T) {
	db := setupPostgres(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	viewerID, err := users.FindRoleIDByName(ctx, "Viewer")
	require.NoError(t, err)
	assert.Equal(t, int64(3), viewerID)

	adminID, err := users.FindRoleIDByName(ctx, "Admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), adminID)
}

func TestIntegration_RegisterLoginVerifyRoundTrip(t *testing.T) {
	db := setupPostgres(t)
	users := NewUserRepository(db)
	codes := NewCodeRepository(db)
	ctx := context.Background()

	viewerID, err := users.FindRoleIDByName(ctx, "Viewer")
	require.NoError(t, err)

	created, err := users.Insert(ctx, "alice", "alice@example.com", "$2a$10$hash", viewerID)
	require.NoError(t, err)

	// Duplicate username maps to the sentinel.
	_, err = users.Insert(ctx, "alice", "other@example.com", "$2a$10$hash", viewerID)
	assert.ErrorIs(t, err, auth.ErrDuplicateUser)

	found, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	identity, err := users.LoadIdentity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Viewer", identity.Role)
	assert.Equal(t, []string{"read:public"}, identity.Permissions)

	// Code lifecycle: insert, match while fresh, reject once expired.
	now := time.Now()
	require.NoError(t, codes.Insert(ctx, created.ID, "123456", now.Add(10*time.Minute)))

	matched, err := codes.Match(ctx, created.ID, "123456", now)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = codes.Match(ctx, created.ID, "123456", now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.False(t, matched)

	require.NoError(t, codes.DeleteForUser(ctx, created.ID))
	matched, err = codes.Match(ctx, created.ID, "123456", now)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestIntegration_ExpiredCodeSweep(t *testing.T) {
	db := setupPostgres(t)
	users := NewUserRepository(db)
	codes := NewCodeRepository(db)
	ctx := context.Background()

	viewerID, err := users.FindRoleIDByName(ctx, "Viewer")
	require.NoError(t, err)
	user, err := users.Insert(ctx, "bob", "bob@example.com", "$2a$10$hash", viewerID)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, codes.Insert(ctx, user.ID, "111111", now.Add(-time.Minute)))
	require.NoError(t, codes.Insert(ctx, user.ID, "222222", now.Add(10*time.Minute)))

	removed, err := codes.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	matched, err := codes.Match(ctx, user.ID, "222222", now)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestIntegration_DirectoryOperations(t *testing.T) {
	db := setupPostgres(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	adminID, err := users.FindRoleIDByName(ctx, "Admin")
	require.NoError(t, err)
	editorID, err := users.FindRoleIDByName(ctx, "Editor")
	require.NoError(t, err)
	viewerID, err := users.FindRoleIDByName(ctx, "Viewer")
	require.NoError(t, err)

	root, err := users.Insert(ctx, "root", "root@example.com", "$2a$10$hash", adminID)
	require.NoError(t, err)
	alice, err := users.Insert(ctx, "alice", "alice@example.com", "$2a$10$hash", viewerID)
	require.NoError(t, err)

	listed, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Admin", listed[0].Role)

	role, err := users.RoleName(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "Admin", role)

	require.NoError(t, users.UpdateRole(ctx, alice.ID, editorID))
	identity, err := users.LoadIdentity(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Editor", identity.Role)
	assert.Contains(t, identity.Permissions, "write:content")

	require.NoError(t, users.Delete(ctx, alice.ID))
	_, err = users.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	assert.ErrorIs(t, users.Delete(ctx, alice.ID), auth.ErrNotFound)
}
