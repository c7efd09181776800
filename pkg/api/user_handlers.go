package api

import (
	"errors"
	"net/http"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/httputil"
	"github.com/middenhq/midden/pkg/observability"
)

// adminRole marks users exempt from directory mutation.
const adminRole = "Admin"

// UserHandlers handles the protected user directory routes.
type UserHandlers struct {
	directory Directory
	logger    *observability.Logger
}

// NewUserHandlers creates new user management handlers
func NewUserHandlers(directory Directory, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{directory: directory, logger: logger}
}

// List returns every user with its role name, ordered by id.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list users")
		httputil.WriteInternalError(w, "Database error")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// Delete removes a user. Admin users cannot be deleted.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.directory.RoleName(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to check user role")
		httputil.WriteInternalError(w, "Database error")
		return
	}
	if role == adminRole {
		httputil.WriteForbidden(w, "Cannot delete an Admin user")
		return
	}

	if err := h.directory.Delete(r.Context(), userID); err != nil {
		h.logger.WithError(err).Error("Failed to delete user")
		httputil.WriteInternalError(w, "Database error")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"message": "User deleted successfully"})
}

// UpdateRole assigns a new role to a user. Admin users cannot be changed.
func (h *UserHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RoleID == 0 {
		httputil.WriteBadRequest(w, "roleId is required")
		return
	}

	role, err := h.directory.RoleName(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		h.logger.WithError(err).Error("Failed to check user role")
		httputil.WriteInternalError(w, "Database error")
		return
	}
	if role == adminRole {
		httputil.WriteForbidden(w, "Cannot modify role of an Admin user")
		return
	}

	if err := h.directory.UpdateRole(r.Context(), userID, req.RoleID); err != nil {
		h.logger.WithError(err).Error("Failed to update user role")
		httputil.WriteInternalError(w, "Database error")
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"message": "User role updated"})
}
