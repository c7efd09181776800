package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CodeRepository persists short-lived verification codes.
type CodeRepository struct {
	db *sql.DB
}

// NewCodeRepository creates a new verification code repository
func NewCodeRepository(db *sql.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Insert stores a code for a user with its expiry timestamp.
func (r *CodeRepository) Insert(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	query := `INSERT INTO verification_codes (user_id, code, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, userID, code, expiresAt); err != nil {
		return fmt.Errorf("failed to insert verification code: %w", err)
	}
	return nil
}

// Match reports whether an unexpired code exists for the user. Expired rows
// never match even if the sweeper has not removed them yet.
func (r *CodeRepository) Match(ctx context.Context, userID int64, code string, now time.Time) (bool, error) {
	query := `SELECT id FROM verification_codes WHERE user_id = $1 AND code = $2 AND expires_at > $3 LIMIT 1`

	var id int64
	err := r.db.QueryRowContext(ctx, query, userID, code, now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to match verification code: %w", err)
	}
	return true, nil
}

// DeleteForUser removes every code belonging to a user.
func (r *CodeRepository) DeleteForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete verification codes: %w", err)
	}
	return nil
}

// DeleteExpired removes codes whose expiry is at or before now and returns
// the number of rows removed.
func (r *CodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return removed, nil
}
