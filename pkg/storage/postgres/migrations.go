package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/middenhq/midden/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles and permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(50) UNIQUE NOT NULL
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(100) UNIQUE NOT NULL,
					description TEXT
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(100) UNIQUE NOT NULL,
					email VARCHAR(255) UNIQUE NOT NULL,
					password_hash TEXT NOT NULL,
					role_id BIGINT REFERENCES roles(id),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
			`,
		},
		{
			Version:     3,
			Description: "Create verification_codes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS verification_codes (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					code VARCHAR(6) NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_verification_codes_user_id ON verification_codes(user_id);
				CREATE INDEX IF NOT EXISTS idx_verification_codes_expires_at ON verification_codes(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Seed built-in roles and permissions",
			SQL: `
				INSERT INTO roles (id, name) VALUES
					(1, 'Admin'),
					(2, 'Editor'),
					(3, 'Viewer')
				ON CONFLICT (id) DO NOTHING;
				SELECT setval('roles_id_seq', GREATEST((SELECT MAX(id) FROM roles), 3));

				INSERT INTO permissions (slug, description) VALUES
					('read:users', 'List users in the directory'),
					('write:users', 'Modify and remove users'),
					('read:content', 'Read managed content'),
					('write:content', 'Create and edit managed content'),
					('read:public', 'Read public resources')
				ON CONFLICT (slug) DO NOTHING;

				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = 'Admin'
				ON CONFLICT DO NOTHING;

				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = 'Editor'
				  AND p.slug IN ('read:users', 'read:content', 'write:content', 'read:public')
				ON CONFLICT DO NOTHING;

				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = 'Viewer' AND p.slug = 'read:public'
				ON CONFLICT DO NOTHING;
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	// Create migration tracking table
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
