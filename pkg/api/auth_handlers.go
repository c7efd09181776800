package api

import (
	"errors"
	"net/http"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/httputil"
	"github.com/middenhq/midden/pkg/observability"
)

// defaultRole is assigned to newly registered users. defaultRoleID is used
// when the role row is missing, matching the seeded Viewer id.
const (
	defaultRole   = "Viewer"
	defaultRoleID = 3
)

// AuthHandlers handles registration and the two-step login flow.
type AuthHandlers struct {
	service AuthService
	users   Registrar
	hasher  auth.PasswordHasher
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthHandlers creates new authentication handlers
func NewAuthHandlers(service AuthService, users Registrar, hasher auth.PasswordHasher, logger *observability.Logger, metrics *observability.Metrics) *AuthHandlers {
	return &AuthHandlers{
		service: service,
		users:   users,
		hasher:  hasher,
		logger:  logger,
		metrics: metrics,
	}
}

// Banner responds to GET / with a plain liveness line.
func (h *AuthHandlers) Banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("At least this looks OK!"))
}

// Register creates a new account with the default Viewer role.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "username, email and password are required")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		httputil.WriteInternalError(w, "Server error")
		return
	}

	roleID, err := h.users.FindRoleIDByName(r.Context(), defaultRole)
	if errors.Is(err, auth.ErrNotFound) {
		roleID = defaultRoleID
	} else if err != nil {
		h.logger.WithError(err).Error("Failed to resolve default role")
		httputil.WriteInternalError(w, "Server error")
		return
	}

	user, err := h.users.Insert(r.Context(), req.Username, req.Email, hash, roleID)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			httputil.WriteConflict(w, "Username or email already exists")
			return
		}
		h.logger.WithError(err).Error("Failed to insert user")
		httputil.WriteInternalError(w, "Server error")
		return
	}

	httputil.WriteCreated(w, map[string]interface{}{
		"message": "User registered",
		"user": RegisteredUser{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
	})
}

// Login checks credentials and starts the verification step. The guest
// identity gets its token immediately.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.observeLogin("invalid_credentials")
			httputil.WriteUnauthorized(w, "Invalid credentials")
			return
		}
		h.observeLogin("error")
		h.logger.WithError(err).Error("Login failed")
		httputil.WriteInternalError(w, "Server error")
		return
	}

	if result.Guest {
		h.observeLogin("guest")
		httputil.WriteSuccess(w, map[string]interface{}{
			"message": "Login successful",
			"token":   result.Token,
			"user": TokenUser{
				Username:    result.Identity.Username,
				Role:        result.Identity.Role,
				Permissions: result.Identity.Permissions,
			},
		})
		return
	}

	h.observeLogin("code_sent")
	if h.metrics != nil {
		h.metrics.VerificationCodesIssued.Inc()
	}

	response := map[string]interface{}{
		"message": "Verification code sent to your email",
		"userId":  result.UserID,
	}
	if result.DevCode != "" {
		response["dev_code"] = result.DevCode
		if h.metrics != nil {
			h.metrics.CodeDeliveriesTotal.WithLabelValues("skipped").Inc()
		}
	}
	httputil.WriteSuccess(w, response)
}

// Verify exchanges a valid code for a signed token.
func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.Verify(r.Context(), req.UserID, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOrExpiredCode) {
			h.observeVerification("rejected")
			httputil.WriteBadRequest(w, "Invalid or expired code")
			return
		}
		h.observeVerification("error")
		h.logger.WithError(err).Error("Verification failed")
		httputil.WriteInternalError(w, "Server error")
		return
	}

	h.observeVerification("accepted")
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.Inc()
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Login successful",
		"token":   result.Token,
		"user": TokenUser{
			Username:    result.Identity.Username,
			Role:        result.Identity.Role,
			Permissions: result.Identity.Permissions,
		},
	})
}

func (h *AuthHandlers) observeLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *AuthHandlers) observeVerification(outcome string) {
	if h.metrics != nil {
		h.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	}
}
