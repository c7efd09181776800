package auth

import "time"

// User is a stored account as the credential check sees it.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	RoleID       int64  `json:"role_id"`
}

// Identity is the fully-resolved authenticated principal: the user row joined
// with its role and the aggregated permission slugs. It is what gets encoded
// into token claims and attached to the request context.
type Identity struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the identity carries the permission slug.
// Membership is an exact string match; there are no wildcard or hierarchy
// semantics.
func (i *Identity) HasPermission(slug string) bool {
	for _, p := range i.Permissions {
		if p == slug {
			return true
		}
	}
	return false
}

// VerificationCode is a stored one-time 2FA code. The code is kept as a
// fixed-width string to preserve leading zeros.
type VerificationCode struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Reserved guest credentials. The guest identity is static and never touches
// storage; guest logins skip 2FA entirely.
const (
	GuestUsername = "guest"
	GuestPassword = "guest"
)

// GuestIdentity returns the static non-persisted guest identity.
func GuestIdentity() *Identity {
	return &Identity{
		Username:    GuestUsername,
		Role:        "Viewer",
		Permissions: []string{"read:public"},
	}
}
