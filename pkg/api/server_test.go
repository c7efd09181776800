package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/middleware"
)

func newTestServer(t *testing.T, issuer *auth.TokenIssuer) *Server {
	t.Helper()
	logger := testLogger()
	return NewServer(ServerOptions{
		Auth:          newAuthHandlers(&fakeAuthService{loginResult: &auth.LoginResult{UserID: 1}}, &fakeRegistrar{roleID: 3}),
		Users:         NewUserHandlers(&fakeDirectory{roles: map[int64]string{2: "Viewer"}}, logger),
		Authenticator: middleware.NewAuthenticator(issuer, logger, nil),
		Gate:          middleware.NewPermissionGate(logger, nil),
	})
}

func signedToken(t *testing.T, issuer *auth.TokenIssuer, permissions ...string) string {
	t.Helper()
	token, err := issuer.Issue(&auth.Identity{ID: 1, Username: "alice", Role: "Editor", Permissions: permissions})
	require.NoError(t, err)
	return token
}

func TestServer_PublicRoutes(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	server := newTestServer(t, issuer)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "At least this looks OK!", rec.Body.String())
}

func TestServer_ProtectedRoutesRequireToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	server := newTestServer(t, issuer)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/users"},
		{"DELETE", "/users/2"},
		{"PATCH", "/users/2/role"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestServer_PermissionSlugsPerRoute(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	server := newTestServer(t, issuer)

	// read:users grants the listing but not mutation.
	token := signedToken(t, issuer, "read:users")

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("DELETE", "/users/2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_WriteUsersAllowsMutation(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	server := newTestServer(t, issuer)

	token := signedToken(t, issuer, "write:users")

	req := httptest.NewRequest("DELETE", "/users/2", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
