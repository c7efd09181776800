package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/middenhq/midden/pkg/auth"
	"github.com/middenhq/midden/pkg/contextkeys"
)

func requestWithIdentity(identity *auth.Identity) *http.Request {
	req := httptest.NewRequest("GET", "/users", nil)
	return req.WithContext(contextkeys.WithIdentity(req.Context(), identity))
}

func TestPermissionGate_Allowed(t *testing.T) {
	gate := NewPermissionGate(testLogger(), nil)

	called := false
	handler := gate.Require("read:users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(&auth.Identity{
		Username:    "alice",
		Role:        "Editor",
		Permissions: []string{"read:users", "read:content"},
	}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestPermissionGate_Denied(t *testing.T) {
	gate := NewPermissionGate(testLogger(), nil)

	called := false
	handler := gate.Require("write:users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(&auth.Identity{
		Username:    "bob",
		Role:        "Viewer",
		Permissions: []string{"read:public"},
	}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)

	var body struct {
		Error    string `json:"error"`
		Required string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Forbidden: You do not have permission to perform this action", body.Error)
	assert.Equal(t, "write:users", body.Required)
}

func TestPermissionGate_ExactSlugMatchOnly(t *testing.T) {
	gate := NewPermissionGate(testLogger(), nil)
	handler := gate.Require("write:users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Holding read:users does not imply write:users; there is no hierarchy.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithIdentity(&auth.Identity{
		Permissions: []string{"read:users", "write:content"},
	}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissionGate_Unauthenticated(t *testing.T) {
	gate := NewPermissionGate(testLogger(), nil)

	called := false
	handler := gate.Require("read:users")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/users", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "User not authenticated", body["error"])
}
