package api

import (
	"context"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/storage/postgres"
)

// AuthService is the two-step login flow consumed by the auth handlers.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	Verify(ctx context.Context, userID int64, code string) (*auth.VerifyResult, error)
}

// Registrar covers the two storage calls registration makes: resolve the
// default role, then insert the user.
type Registrar interface {
	FindRoleIDByName(ctx context.Context, name string) (int64, error)
	Insert(ctx context.Context, username, email, passwordHash string, roleID int64) (*auth.User, error)
}

// Directory covers the user management operations behind the protected
// routes.
type Directory interface {
	List(ctx context.Context) ([]postgres.UserRecord, error)
	RoleName(ctx context.Context, userID int64) (string, error)
	UpdateRole(ctx context.Context, userID, roleID int64) error
	Delete(ctx context.Context, userID int64) error
}

// RegisterRequest is the payload for POST /register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyRequest is the payload for POST /verify-2fa
type VerifyRequest struct {
	UserID int64  `json:"userId"`
	Code   string `json:"code"`
}

// UpdateRoleRequest is the payload for PATCH /users/{id}/role
type UpdateRoleRequest struct {
	RoleID int64 `json:"roleId"`
}

// RegisteredUser is the user echo in the registration response.
type RegisteredUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenUser is the identity echo attached to token responses.
type TokenUser struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}
