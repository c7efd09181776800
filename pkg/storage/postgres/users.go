package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/middenhq/midden/pkg/auth"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// UserRepository provides user, role and permission persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns the user with the given username, or auth.ErrNotFound.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	query := `SELECT id, username, email, password_hash, role_id FROM users WHERE username = $1`

	var user auth.User
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.RoleID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// LoadIdentity resolves a user's role name and permission slugs in a single
// query. Permissions are read fresh on every call, so role changes take
// effect on the next token issued.
func (r *UserRepository) LoadIdentity(ctx context.Context, userID int64) (*auth.Identity, error) {
	query := `
		SELECT u.id, u.username, u.email, r.name,
		       COALESCE(ARRAY_AGG(p.slug) FILTER (WHERE p.slug IS NOT NULL), '{}')
		FROM users u
		JOIN roles r ON u.role_id = r.id
		LEFT JOIN role_permissions rp ON r.id = rp.role_id
		LEFT JOIN permissions p ON rp.permission_id = p.id
		WHERE u.id = $1
		GROUP BY u.id, u.username, u.email, r.name`

	var identity auth.Identity
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&identity.ID, &identity.Username, &identity.Email, &identity.Role,
		pq.Array(&identity.Permissions),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if identity.Permissions == nil {
		identity.Permissions = []string{}
	}

	return &identity, nil
}

// Insert creates a user and returns the stored row. Unique violations on
// username or email map to auth.ErrDuplicateUser.
func (r *UserRepository) Insert(ctx context.Context, username, email, passwordHash string, roleID int64) (*auth.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, role_id`

	var user auth.User
	err := r.db.QueryRowContext(ctx, query, username, email, passwordHash, roleID).Scan(
		&user.ID, &user.Username, &user.Email, &user.RoleID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, auth.ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// UserRecord is a directory listing row.
type UserRecord struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// List returns all users with their role names, ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]UserRecord, error) {
	query := `
		SELECT u.id, u.username, u.email, COALESCE(r.name, '')
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.id
		ORDER BY u.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []UserRecord{}
	for rows.Next() {
		var rec UserRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Email, &rec.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}

	return users, nil
}

// RoleName returns the role name of the given user, or auth.ErrNotFound if
// the user does not exist. A user without a role yields an empty string.
func (r *UserRepository) RoleName(ctx context.Context, userID int64) (string, error) {
	query := `
		SELECT COALESCE(r.name, '')
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.id
		WHERE u.id = $1`

	var name string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query role name: %w", err)
	}

	return name, nil
}

// UpdateRole assigns a new role to a user.
func (r *UserRepository) UpdateRole(ctx context.Context, userID, roleID int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET role_id = $1 WHERE id = $2`, roleID, userID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// Delete removes a user. Verification codes cascade.
func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// FindRoleIDByName resolves a role name to its id, or auth.ErrNotFound.
func (r *UserRepository) FindRoleIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, auth.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query role: %w", err)
	}
	return id, nil
}
