package auth

import "errors"

// Failure kinds recognized by the HTTP layer. Handlers map these to status
// codes and stable client messages; anything else surfaces as a 500.
var (
	// ErrInvalidCredentials covers both unknown username and wrong password,
	// so callers cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidOrExpiredCode is returned when no unexpired verification code
	// matches the submitted (user, code) pair.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrInvalidToken covers malformed, expired, and wrongly-signed tokens
	// uniformly; the distinction is never surfaced to the caller.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUser is returned when a registration collides with an
	// existing username or email.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrServer marks unexpected storage faults that must not leak detail.
	ErrServer = errors.New("server error")
)
